// internal/workers/inference/openai-route/validation.go
package openairoute

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"inference-gateway/internal/common/errors"
	"inference-gateway/internal/common/validation"
)

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"openai_route"},
		Properties: map[string]validation.Property{
			"openai_route": {
				Type:        "string",
				Description: "Abstract route selecting the upstream capability",
				MinLength:   validation.IntPtr(1),
			},
			"openai_input": {
				Type:        "object",
				Nullable:    true,
				Description: "Request payload forwarded to the upstream as JSON",
			},
			"method": {
				Type:        "string",
				Nullable:    true,
				Description: "HTTP method, default POST",
			},
			"headers": {
				Type:        "object",
				Nullable:    true,
				Description: "Extra headers forwarded to the upstream",
			},
		},
	}
}

// InputValidator turns raw job variables into a JobRequest.
type InputValidator struct {
	schema *validation.Validator
}

func NewInputValidator() (*InputValidator, error) {
	v, err := validation.Compile(GetInputSchema())
	if err != nil {
		return nil, err
	}
	return &InputValidator{schema: v}, nil
}

// Parse fails with INVALID_INPUT when the route is missing or empty or when
// openai_input is neither an object nor null.
func (iv *InputValidator) Parse(variables []byte) (*JobRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(variables))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("decode: %v", err))
	}

	result, err := iv.schema.Validate(doc)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		details := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			details = append(details, e.Field+": "+e.Message)
		}
		return nil, errors.NewInvalidInputError(strings.Join(details, "; "))
	}

	fields := doc.(map[string]interface{})
	req := &JobRequest{
		Route:   fields["openai_route"].(string),
		Method:  http.MethodPost,
		Headers: map[string]string{},
	}
	if payload, ok := fields["openai_input"].(map[string]interface{}); ok {
		req.Payload = payload
	}
	if method, ok := fields["method"].(string); ok {
		req.Method = strings.ToUpper(method)
	}
	if headers, ok := fields["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Headers[k] = s
			} else {
				req.Headers[k] = fmt.Sprint(v)
			}
		}
	}

	return req, nil
}

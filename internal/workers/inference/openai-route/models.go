// internal/workers/inference/openai-route/models.go
package openairoute

import (
	"encoding/json"
	"strings"

	"inference-gateway/internal/common/errors"
)

// JobRequest is a validated job. Payload nil means the job carried no
// openai_input.
type JobRequest struct {
	Route   string
	Payload map[string]interface{}
	Method  string
	Headers map[string]string
}

// Stream reports whether the payload asks for an incremental response.
func (r *JobRequest) Stream() bool {
	stream, _ := r.Payload["stream"].(bool)
	return stream
}

type FrameKind int

const (
	FrameResult FrameKind = iota
	FrameError
	FrameLine
)

func (k FrameKind) String() string {
	switch k {
	case FrameResult:
		return "result"
	case FrameError:
		return "error"
	case FrameLine:
		return "line"
	default:
		return "unknown"
	}
}

// Frame is one outbound unit: a parsed upstream result, an error
// descriptor, or one reframed stream line.
type Frame struct {
	Kind   FrameKind
	Result json.RawMessage
	Error  string
	Line   string
	// Code classifies error frames; it is not part of the wire form.
	Code errors.ErrorCode
}

func ResultFrame(raw json.RawMessage) Frame {
	return Frame{Kind: FrameResult, Result: raw}
}

func ErrorFrame(message string) Frame {
	return Frame{Kind: FrameError, Error: message}
}

// FailureFrame renders err through the gateway error taxonomy.
func FailureFrame(err error) Frame {
	stdErr := errors.Normalize(err)
	return Frame{Kind: FrameError, Error: stdErr.Message, Code: stdErr.Code}
}

func LineFrame(line string) Frame {
	return Frame{Kind: FrameLine, Line: line}
}

// MarshalJSON renders results as-is, errors as {"error": ...} and lines as
// JSON strings.
func (f Frame) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FrameResult:
		if len(f.Result) == 0 {
			return []byte("null"), nil
		}
		return f.Result, nil
	case FrameError:
		return json.Marshal(map[string]string{"error": f.Error})
	default:
		return json.Marshal(f.Line)
	}
}

// Text is the frame's wire text: the JSON document for results and errors,
// the raw line for stream lines.
func (f Frame) Text() string {
	if f.Kind == FrameLine {
		return f.Line
	}
	data, _ := f.MarshalJSON()
	return string(data)
}

// SSE renders the frame as one server-sent event. Lines that already carry
// the "data: " prefix are not prefixed twice.
func (f Frame) SSE() string {
	text := f.Text()
	if f.Kind == FrameLine && strings.HasPrefix(text, dataPrefix) {
		return text + "\n\n"
	}
	return dataPrefix + text + "\n\n"
}

// Output is the Zeebe completion payload: the aggregated frame sequence.
type Output struct {
	Frames     []Frame `json:"frames"`
	FrameCount int     `json:"frameCount"`
	Route      string  `json:"route,omitempty"`
}

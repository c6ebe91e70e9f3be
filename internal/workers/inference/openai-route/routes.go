// internal/workers/inference/openai-route/routes.go
package openairoute

import "net/http"

type RouteKind int

const (
	// RouteGeneric issues one call and yields one frame.
	RouteGeneric RouteKind = iota
	// RouteGeneration may stream when the payload sets "stream": true.
	RouteGeneration
)

type RouteBinding struct {
	UpstreamPath string
	Method       string
	Kind         RouteKind
}

var routeTable = map[string]RouteBinding{
	"/v1/models":           {UpstreamPath: "/v1/model/list", Method: http.MethodGet, Kind: RouteGeneric},
	"/v1/model/list":       {UpstreamPath: "/v1/model/list", Method: http.MethodGet, Kind: RouteGeneric},
	"/v1/model":            {UpstreamPath: "/v1/model", Method: http.MethodGet, Kind: RouteGeneric},
	"/v1/auth/permission":  {UpstreamPath: "/v1/auth/permission", Method: http.MethodGet, Kind: RouteGeneric},
	"/v1/token/encode":     {UpstreamPath: "/v1/token/encode", Method: http.MethodPost, Kind: RouteGeneric},
	"/v1/token/decode":     {UpstreamPath: "/v1/token/decode", Method: http.MethodPost, Kind: RouteGeneric},
	"/v1/completions":      {UpstreamPath: "/v1/completions", Method: http.MethodPost, Kind: RouteGeneration},
	"/v1/chat/completions": {UpstreamPath: "/v1/chat/completions", Method: http.MethodPost, Kind: RouteGeneration},
	"/v1/embeddings":       {UpstreamPath: "/v1/embeddings", Method: http.MethodPost, Kind: RouteGeneration},
}

// Resolve is an exact, case-sensitive lookup.
func Resolve(route string) (RouteBinding, bool) {
	b, ok := routeTable[route]
	return b, ok
}

// EffectiveMethod picks the upstream method. Generic routes always use the
// table's method; generation routes honor the job's method when it is GET or
// POST. ok is false for any other declared method.
func (b RouteBinding) EffectiveMethod(declared string) (string, bool) {
	if b.Kind == RouteGeneric {
		return b.Method, true
	}
	switch declared {
	case http.MethodGet, http.MethodPost:
		return declared, true
	default:
		return declared, false
	}
}

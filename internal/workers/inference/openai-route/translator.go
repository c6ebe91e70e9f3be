// internal/workers/inference/openai-route/translator.go
package openairoute

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"strconv"
	"time"

	"inference-gateway/internal/common/errors"
	commonhttp "inference-gateway/internal/common/http"
	"inference-gateway/internal/common/logger"
	"inference-gateway/internal/common/metrics"
)

// Upstream is the slice of the shared upstream client the translator needs.
type Upstream interface {
	Do(ctx context.Context, req commonhttp.Request) (*commonhttp.Response, error)
	ReadAll(resp *commonhttp.Response) ([]byte, error)
	Classify(err error) error
}

// Translator maps a JobRequest onto one upstream call and yields the
// resulting frames in order.
type Translator struct {
	upstream    Upstream
	stripPrefix bool
	chunkSize   int
	logger      logger.Logger
}

func NewTranslator(upstream Upstream, config *Config, log logger.Logger) *Translator {
	chunkSize := config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	return &Translator{
		upstream:    upstream,
		stripPrefix: config.StripDataPrefix,
		chunkSize:   chunkSize,
		logger:      log,
	}
}

// Translate never fails: every problem becomes an error frame and ends the
// sequence, except stream decode errors which only affect their chunk.
func (t *Translator) Translate(ctx context.Context, req *JobRequest) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		binding, ok := Resolve(req.Route)
		if !ok {
			yield(FailureFrame(errors.NewUnsupportedRouteError(req.Route)))
			return
		}

		method, ok := binding.EffectiveMethod(req.Method)
		if !ok {
			yield(FailureFrame(errors.NewUnsupportedMethodError(req.Method)))
			return
		}

		body, err := requestBody(method, req.Payload)
		if err != nil {
			yield(FailureFrame(err))
			return
		}

		start := time.Now()
		resp, err := t.upstream.Do(ctx, commonhttp.Request{
			Method:  method,
			Path:    binding.UpstreamPath,
			Body:    body,
			Headers: req.Headers,
		})
		if err != nil {
			metrics.UpstreamRequestDuration.WithLabelValues(req.Route, "error").Observe(time.Since(start).Seconds())
			t.logger.Warn("Upstream call failed", map[string]interface{}{
				"route": req.Route,
				"error": err,
			})
			yield(FailureFrame(err))
			return
		}
		metrics.UpstreamRequestDuration.WithLabelValues(req.Route, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

		if !resp.IsSuccess() {
			yield(t.httpErrorFrame(resp))
			return
		}

		if binding.Kind == RouteGeneration && req.Stream() {
			t.stream(resp, yield)
			return
		}

		yield(t.resultFrame(resp))
	}
}

func requestBody(method string, payload map[string]interface{}) ([]byte, error) {
	if method == http.MethodGet || payload == nil {
		return nil, nil
	}
	return json.Marshal(payload)
}

// httpErrorFrame surfaces the upstream's raw body as the error text.
func (t *Translator) httpErrorFrame(resp *commonhttp.Response) Frame {
	data, err := t.upstream.ReadAll(resp)
	if err != nil {
		return FailureFrame(err)
	}
	return FailureFrame(errors.NewUpstreamHTTPError(resp.StatusCode, string(data)))
}

func (t *Translator) resultFrame(resp *commonhttp.Response) Frame {
	data, err := t.upstream.ReadAll(resp)
	if err != nil {
		return FailureFrame(err)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return FailureFrame(errors.NewUpstreamDecodeError(err))
	}
	return ResultFrame(compact.Bytes())
}

// stream re-emits reframed lines. A read failure mid-stream ends the job
// with one error frame after the lines already produced.
func (t *Translator) stream(resp *commonhttp.Response, yield func(Frame) bool) {
	defer resp.Body.Close()

	var readErr error
	chunks := func(yieldChunk func([]byte) bool) {
		buf := make([]byte, t.chunkSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !yieldChunk(chunk) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				readErr = t.upstream.Classify(err)
				return
			}
		}
	}

	reframer := NewReframer(t.stripPrefix)
	for frame := range reframer.Reframe(chunks) {
		if !yield(frame) {
			return
		}
	}

	if readErr != nil {
		yield(FailureFrame(readErr))
		return
	}
	if pending := reframer.Pending(); pending != "" {
		t.logger.Debug("Discarding unterminated stream tail", map[string]interface{}{
			"bytes": len(pending),
		})
	}
}

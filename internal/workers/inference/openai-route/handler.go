// internal/workers/inference/openai-route/handler.go
package openairoute

import (
	"context"
	"iter"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"inference-gateway/internal/common/camunda"
	"inference-gateway/internal/common/errors"
	"inference-gateway/internal/common/logger"
	"inference-gateway/internal/common/metrics"
)

const (
	TaskType = "openai-route"

	SourceZeebe = "zeebe"
	SourceHTTP  = "http"
)

// Admitter is consulted once per valid job before it touches the upstream.
type Admitter interface {
	Enter(ctx context.Context, route string) (func(), error)
}

// JobRecorder receives one record per finished job.
type JobRecorder interface {
	RecordJob(ctx context.Context, route, status string, duration time.Duration, frames int)
}

type Handler struct {
	config       *Config
	validator    *InputValidator
	translator   *Translator
	admission    Admitter
	recorder     JobRecorder
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler wires the job pipeline. recorder may be nil.
func NewHandler(config *Config, upstream Upstream, admission Admitter, recorder JobRecorder, log logger.Logger) (*Handler, error) {
	validator, err := NewInputValidator()
	if err != nil {
		return nil, err
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		validator:    validator,
		translator:   NewTranslator(upstream, config, log),
		admission:    admission,
		recorder:     recorder,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}, nil
}

// Handle serves one Zeebe job: the frame sequence is drained and the job is
// completed with the aggregate. Job-level failures are frames; only a
// rejected completion fails the job.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx := context.Background()
	if h.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.JobTimeout)
		defer cancel()
	}

	output := h.Execute(ctx, SourceZeebe, []byte(job.Variables))

	retry := *camunda.DefaultRetryConfig
	retry.MaxRetries = h.config.CompleteRetries
	if err := camunda.CompleteJob(context.Background(), client, job.Key, output, &retry); err != nil {
		stdErr := errors.NewJobCompletionFailedError(err)
		metrics.GatewayJobsFailed.WithLabelValues(SourceZeebe, string(stdErr.Code)).Inc()
		h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
		return stdErr
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey": job.Key,
		"route":  output.Route,
		"frames": output.FrameCount,
	})
	return nil
}

// Execute drains the frame sequence into an Output.
func (h *Handler) Execute(ctx context.Context, source string, variables []byte) *Output {
	output := &Output{Frames: []Frame{}}
	for frame := range h.process(ctx, source, variables, &output.Route) {
		output.Frames = append(output.Frames, frame)
	}
	output.FrameCount = len(output.Frames)
	return output
}

// Process yields the job's frames lazily, in upstream order.
func (h *Handler) Process(ctx context.Context, source string, variables []byte) iter.Seq[Frame] {
	var route string
	return h.process(ctx, source, variables, &route)
}

func (h *Handler) process(ctx context.Context, source string, variables []byte, route *string) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		start := time.Now()

		req, err := h.validator.Parse(variables)
		if err != nil {
			stdErr := errors.Normalize(err)
			h.logger.Warn("invalid job input", map[string]interface{}{
				"details": stdErr.Details,
			})
			h.finish(ctx, source, "", start, 1, stdErr.Code)
			yield(FailureFrame(stdErr))
			return
		}
		*route = req.Route

		release, err := h.admission.Enter(ctx, req.Route)
		if err != nil {
			stdErr := errors.NewAdmissionAbortedError(err)
			h.finish(ctx, source, req.Route, start, 1, stdErr.Code)
			yield(FailureFrame(stdErr))
			return
		}
		defer release()

		active := metrics.GatewayJobsActive.WithLabelValues(source)
		active.Inc()
		defer active.Dec()

		// a job whose last frame is an error counts as failed
		frames := 0
		var code errors.ErrorCode
		for frame := range h.translator.Translate(ctx, req) {
			frames++
			code = frame.Code
			metrics.GatewayFramesEmitted.WithLabelValues(frame.Kind.String()).Inc()
			if !yield(frame) {
				break
			}
		}
		h.finish(ctx, source, req.Route, start, frames, code)
	}
}

// finish records metrics for a job. An empty code means success.
func (h *Handler) finish(ctx context.Context, source, route string, start time.Time, frames int, code errors.ErrorCode) {
	duration := time.Since(start)
	metrics.GatewayJobDuration.WithLabelValues(source).Observe(duration.Seconds())

	status := "success"
	if code != "" {
		status = "error"
		metrics.GatewayJobsFailed.WithLabelValues(source, string(code)).Inc()
	} else {
		metrics.GatewayJobsCompleted.WithLabelValues(source, route).Inc()
	}
	if h.recorder != nil {
		h.recorder.RecordJob(ctx, route, status, duration, frames)
	}

	h.logger.Debug("job frames drained", map[string]interface{}{
		"source":     source,
		"route":      route,
		"frames":     frames,
		"status":     status,
		"durationMs": duration.Milliseconds(),
	})
}

// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inference-gateway/internal/common/logger"
	openairoute "inference-gateway/internal/workers/inference/openai-route"
)

const (
	RequestIDHeader = "X-Request-Id"

	streamEnd = "data: [DONE]\n\n"
)

// JobProcessor yields one job's frames. openairoute.Handler satisfies it.
type JobProcessor interface {
	Process(ctx context.Context, source string, variables []byte) iter.Seq[openairoute.Frame]
}

// CheckFunc reports whether a dependency is ready.
type CheckFunc func(ctx context.Context) error

// JobRequest is the body of /runsync and /stream.
type JobRequest struct {
	Input json.RawMessage `json:"input"`
}

// RunSyncResponse carries every frame of the job in order.
type RunSyncResponse struct {
	ID     string              `json:"id"`
	Output []openairoute.Frame `json:"output"`
}

type Server struct {
	processor    JobProcessor
	logger       logger.Logger
	httpServer   *http.Server
	checkTimeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

func New(addr string, processor JobProcessor, log logger.Logger) *Server {
	s := &Server{
		processor:    processor,
		logger:       log.WithFields(map[string]interface{}{"component": "job-server"}),
		checkTimeout: 5 * time.Second,
		checks:       make(map[string]CheckFunc),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// RegisterCheck adds a readiness check consulted by /ready.
func (s *Server) RegisterCheck(name string, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/runsync", s.handleRunSync)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is not
// reported.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Job server listening", map[string]interface{}{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("job server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRunSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	input, ok := decodeJob(w, r)
	if !ok {
		return
	}

	id := requestID(r)
	log := s.logger.WithFields(map[string]interface{}{"requestId": id})
	start := time.Now()

	resp := RunSyncResponse{ID: id, Output: []openairoute.Frame{}}
	for frame := range s.processor.Process(r.Context(), openairoute.SourceHTTP, input) {
		resp.Output = append(resp.Output, frame)
	}

	log.Info("runsync job finished", map[string]interface{}{
		"frames":     len(resp.Output),
		"durationMs": time.Since(start).Milliseconds(),
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	input, ok := decodeJob(w, r)
	if !ok {
		return
	}

	id := requestID(r)
	log := s.logger.WithFields(map[string]interface{}{"requestId": id})
	start := time.Now()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(RequestIDHeader, id)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	frames := 0
	for frame := range s.processor.Process(r.Context(), openairoute.SourceHTTP, input) {
		if _, err := fmt.Fprint(w, frame.SSE()); err != nil {
			log.Warn("Client went away mid-stream", map[string]interface{}{
				"frames": frames,
				"error":  err,
			})
			return
		}
		flusher.Flush()
		frames++
	}
	fmt.Fprint(w, streamEnd)
	flusher.Flush()

	log.Info("stream job finished", map[string]interface{}{
		"frames":     frames,
		"durationMs": time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(r.Context(), s.checkTimeout)
	defer cancel()

	failures := map[string]string{}
	for _, name := range names {
		s.mu.RLock()
		check := s.checks[name]
		s.mu.RUnlock()
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		s.logger.Warn("Readiness check failed", map[string]interface{}{"failures": failures})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not_ready",
			"failures": failures,
			"time":     time.Now().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// decodeJob returns the raw job variables. A missing input is passed on as
// null so the job fails validation with the usual error frame.
func decodeJob(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}
	if len(req.Input) == 0 {
		return []byte("null"), true
	}
	return req.Input, true
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"inference-gateway/internal/common/errors"
)

// DefaultTimeout bounds every upstream call, body included.
const DefaultTimeout = 300 * time.Second

// ClientConfig configures the pooled upstream client.
type ClientConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// Client is the process-wide upstream client. It is safe for concurrent use
// and must be closed once at shutdown.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport
	baseURL    string
	timeout    time.Duration
}

// Request is one upstream call.
type Request struct {
	Method  string
	Path    string
	Body    []byte
	Headers map[string]string
}

// Response exposes the upstream status and an open body. Closing the body
// releases the connection and the call's deadline.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		// streamed generations must reach the reframer uncompressed
		DisableCompression: true,
	}

	return &Client{
		// no http.Client.Timeout: the deadline lives on the per-call context
		// so it also covers reading a streamed body
		httpClient: &http.Client{Transport: transport},
		transport:  transport,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
	}
}

// BaseURL returns the upstream root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the per-call deadline.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Do issues one upstream call. A non-2xx status is not an error: the caller
// gets the response and decides. Transport failures come back as
// UPSTREAM_TIMEOUT or UPSTREAM_CONNECTION_ERROR.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		cancel()
		return nil, errors.NewUpstreamConnectionError(err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, c.Classify(err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
	}, nil
}

// ReadAll drains and closes the response body.
func (c *Client) ReadAll(resp *Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.Classify(err)
	}
	return data, nil
}

// Classify maps a transport or body-read failure onto the gateway taxonomy.
func (c *Client) Classify(err error) error {
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if isTimeout(err) {
		return errors.NewUpstreamTimeoutError(c.timeout, err)
	}
	return errors.NewUpstreamConnectionError(err)
}

// Close drops pooled connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

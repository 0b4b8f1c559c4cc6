// Package client talks to the job service over HTTP. It implements the
// starter and poller used by the runner panel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ncobase/jobpanel/config"
	"github.com/ncobase/jobpanel/ctxutil"
	"github.com/ncobase/jobpanel/ecode"
	"github.com/ncobase/jobpanel/job/structs"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ncobase/jobpanel/client"

// Error is a failure reported by the job service.
type Error struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ecode.Text(e.Code)
}

// Client calls the job service endpoints through a circuit breaker.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
	cb       *gobreaker.CircuitBreaker
	tracer   trace.Tracer
}

// New returns a client for cfg.Endpoint.
func New(cfg *config.Client) (*Client, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, errors.New("client endpoint is empty")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid client endpoint: %w", err)
	}

	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}

	c := &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		timeout:  cfg.RequestTimeout,
		http:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		tracer:   otel.Tracer(tracerName),
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "jobpanel",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isSuccessful,
	})
	return c, nil
}

// isSuccessful keeps rejected requests from tripping the breaker; only
// transport failures and server errors count.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status < http.StatusInternalServerError
	}
	return false
}

// Start submits a scrape job.
func (c *Client) Start(ctx context.Context, params structs.JobParameters) (*structs.JobHandle, error) {
	var res structs.StartResponse
	if err := c.call(ctx, "client.Start", http.MethodPost, "/api/scrape/start", nil, params, &res); err != nil {
		return nil, err
	}
	if res.JobID == "" {
		return nil, errors.New("start response is missing log_id")
	}
	handle := res.Handle()
	return &handle, nil
}

// StartTest queues the diagnostic job.
func (c *Client) StartTest(ctx context.Context) (*structs.StartResponse, error) {
	var res structs.StartResponse
	if err := c.call(ctx, "client.StartTest", http.MethodPost, "/api/scrape/test", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Poll fetches the log text written after since and the job status.
func (c *Client) Poll(ctx context.Context, jobID string, since int64) (*structs.PollResponse, error) {
	q := url.Values{}
	q.Set("log_id", jobID)
	q.Set("since", strconv.FormatInt(since, 10))

	var res structs.PollResponse
	if err := c.call(ctx, "client.Poll", http.MethodGet, "/api/scrape/log", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetJob returns one job record.
func (c *Client) GetJob(ctx context.Context, id string) (*structs.Job, error) {
	var res structs.Job
	if err := c.call(ctx, "client.GetJob", http.MethodGet, "/api/scrape/jobs/"+url.PathEscape(id), nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListJobs returns the most recent jobs.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]*structs.Job, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var res []*structs.Job
	if err := c.call(ctx, "client.ListJobs", http.MethodGet, "/api/scrape/jobs", q, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) call(ctx context.Context, name, method, path string, query url.Values, body, out any) error {
	ctx, span := c.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", method), attribute.String("http.route", path)))
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.do(ctx, method, path, query, body, out)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("job service unavailable: %w", err)
		}
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if traceID := ctxutil.GetTraceID(ctx); traceID != "" {
		req.Header.Set(ctxutil.TraceHeader, traceID)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return decodeError(res.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError reads the failure envelope, falling back to the raw body.
func decodeError(status int, data []byte) error {
	apiErr := &Error{Status: status}
	if err := json.Unmarshal(data, apiErr); err != nil || (apiErr.Code == 0 && apiErr.Message == "") {
		apiErr.Code = ecode.RequestErr
		if status >= http.StatusInternalServerError {
			apiErr.Code = ecode.ServerErr
		}
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
	}
	return apiErr
}

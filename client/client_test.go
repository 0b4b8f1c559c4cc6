package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ncobase/jobpanel/config"
	"github.com/ncobase/jobpanel/ctxutil"
	"github.com/ncobase/jobpanel/ecode"
	"github.com/ncobase/jobpanel/job/structs"
	"github.com/ncobase/jobpanel/net/resp"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.Handler, threshold uint32) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(&config.Client{
		Endpoint:         srv.URL + "/",
		RequestTimeout:   2 * time.Second,
		BreakerInterval:  time.Minute,
		BreakerTimeout:   time.Minute,
		BreakerThreshold: threshold,
	})
	require.NoError(t, err)
	return c
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(&config.Client{})
	assert.Error(t, err)
	_, err = New(nil)
	assert.Error(t, err)
}

func TestStart(t *testing.T) {
	var got structs.JobParameters
	var traceID string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/scrape/start", r.URL.Path)
		traceID = r.Header.Get(ctxutil.TraceHeader)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		resp.Success(w, &structs.StartResponse{JobID: "JOB-1"})
	}), 5)

	ctx := ctxutil.SetTraceID(context.Background(), "trace-1")
	params := structs.JobParameters{ItemsPerSource: 10, RateLimitPerSecond: 2, RequestTimeoutSeconds: 30}
	handle, err := c.Start(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, "JOB-1", handle.JobID)
	assert.Equal(t, params, got)
	assert.Equal(t, "trace-1", traceID)
}

func TestStartMissingID(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp.Success(w, map[string]string{"message": "queued"})
	}), 5)

	_, err := c.Start(context.Background(), structs.DefaultJobParameters())
	assert.Error(t, err)
}

func TestPoll(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/scrape/log", r.URL.Path)
		assert.Equal(t, "JOB-1", r.URL.Query().Get("log_id"))
		assert.Equal(t, "17", r.URL.Query().Get("since"))
		_, _ = w.Write([]byte(`{"offset":42,"chunk":"a\nb\n","status":{"status":"running"}}`))
	}), 5)

	res, err := c.Poll(context.Background(), "JOB-1", 17)
	require.NoError(t, err)
	require.NotNil(t, res.Offset)
	assert.Equal(t, int64(42), *res.Offset)
	assert.Equal(t, "a\nb\n", res.Chunk)
	assert.Equal(t, structs.StatusRunning, res.JobStatus())
}

func TestPollWithoutStatus(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chunk":""}`))
	}), 5)

	res, err := c.Poll(context.Background(), "JOB-1", 0)
	require.NoError(t, err)
	assert.Nil(t, res.Offset)
	assert.Equal(t, structs.StatusUnknown, res.JobStatus())
}

func TestErrorEnvelope(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp.Fail(w, resp.FromCode(ecode.QueueFull))
	}), 5)

	_, err := c.Start(context.Background(), structs.DefaultJobParameters())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, ecode.QueueFull, apiErr.Code)
	assert.Equal(t, ecode.Text(ecode.QueueFull), apiErr.Error())
}

func TestErrorWithoutEnvelope(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}), 5)

	_, err := c.Poll(context.Background(), "JOB-1", 0)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ecode.ServerErr, apiErr.Code)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		resp.Fail(w, resp.InternalServer(""))
	}), 2)

	for i := 0; i < 2; i++ {
		_, err := c.Poll(context.Background(), "JOB-1", 0)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, c.cb.State())

	_, err := c.Poll(context.Background(), "JOB-1", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), hits.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp.Fail(w, resp.FromCode(ecode.JobNotFound))
	}), 1)

	for i := 0; i < 3; i++ {
		_, err := c.GetJob(context.Background(), "missing")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, c.cb.State())
}

func TestListJobs(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		resp.Success(w, []*structs.Job{{ID: "a"}, {ID: "b"}})
	}), 5)

	jobs, err := c.ListJobs(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
}

func TestStartTest(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/scrape/test", r.URL.Path)
		resp.Success(w, &structs.StartResponse{JobID: "test_1", Message: "Test job queued"})
	}), 5)

	res, err := c.StartTest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test_1", res.JobID)
}

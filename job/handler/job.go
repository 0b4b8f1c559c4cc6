// Package handler provides HTTP endpoints for scrape jobs.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/jobpanel/concurrency/worker"
	"github.com/ncobase/jobpanel/ecode"
	"github.com/ncobase/jobpanel/job"
	jobRepo "github.com/ncobase/jobpanel/job/data/repository"
	"github.com/ncobase/jobpanel/job/logstore"
	"github.com/ncobase/jobpanel/job/structs"
	"github.com/ncobase/jobpanel/logging/logger"
	"github.com/ncobase/jobpanel/net/resp"
	"github.com/ncobase/jobpanel/validator"
)

// Service is the job service behind the endpoints. *job.Manager implements
// it.
type Service interface {
	Start(ctx context.Context, params structs.JobParameters) (*structs.StartResponse, error)
	StartTest(ctx context.Context) (*structs.StartResponse, error)
	Log(ctx context.Context, id string, since int64) (*structs.PollResponse, error)
	GetJob(ctx context.Context, id string) (*structs.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*structs.Job, error)
	Stats(ctx context.Context) (*job.Stats, error)
}

// JobHandler handles job HTTP requests.
type JobHandler struct {
	service Service
	logger  *logger.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(service Service, logger *logger.Logger) *JobHandler {
	return &JobHandler{
		service: service,
		logger:  logger,
	}
}

// Start queues a scrape job. Omitted parameters take their defaults.
func (h *JobHandler) Start(c *gin.Context) {
	params := structs.DefaultJobParameters()
	if err := c.ShouldBindJSON(&params); err != nil && !errors.Is(err, io.EOF) {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	res, err := h.service.Start(c.Request.Context(), params)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp.Success(c.Writer, res)
}

// StartTest queues the diagnostic job.
func (h *JobHandler) StartTest(c *gin.Context) {
	res, err := h.service.StartTest(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	resp.Success(c.Writer, res)
}

// Log returns the log text after since and the job status.
func (h *JobHandler) Log(c *gin.Context) {
	id := c.Query("log_id")
	if id == "" {
		resp.Fail(c.Writer, resp.BadRequest(ecode.FieldIsRequired("log_id")))
		return
	}

	var since int64
	if raw := c.Query("since"); raw != "" && raw != "null" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			resp.Fail(c.Writer, resp.BadRequest(ecode.FieldIsInvalid("since")))
			return
		}
		since = v
	}

	res, err := h.service.Log(c.Request.Context(), id, since)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp.Success(c.Writer, res)
}

// GetJob retrieves a job by ID.
func (h *JobHandler) GetJob(c *gin.Context) {
	res, err := h.service.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp.Success(c.Writer, res)
}

// ListJobs lists the most recent jobs.
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			resp.Fail(c.Writer, resp.BadRequest(ecode.FieldIsInvalid("limit")))
			return
		}
		limit = v
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if jobs == nil {
		jobs = []*structs.Job{}
	}

	resp.Success(c.Writer, jobs)
}

// GetStats returns job statistics.
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	resp.Success(c.Writer, stats)
}

// fail maps service errors to response envelopes.
func (h *JobHandler) fail(c *gin.Context, err error) {
	var verr *validator.Error
	switch {
	case errors.As(err, &verr):
		resp.Fail(c.Writer, resp.BadRequest(ecode.Text(ecode.ParamErr), verr.Fields))
	case errors.Is(err, logstore.ErrInvalidID), errors.Is(err, logstore.ErrInvalidOffset):
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
	case errors.Is(err, jobRepo.ErrNotFound):
		resp.Fail(c.Writer, resp.FromCode(ecode.JobNotFound))
	case errors.Is(err, worker.ErrQueueFull):
		resp.Fail(c.Writer, resp.FromCode(ecode.QueueFull))
	case errors.Is(err, worker.ErrPoolStopped):
		resp.Fail(c.Writer, resp.FromCode(ecode.ServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded):
		resp.Fail(c.Writer, resp.FromCode(ecode.Deadline))
	default:
		h.logger.Error(c.Request.Context(), "Job request failed", "path", c.FullPath(), "error", err)
		resp.Fail(c.Writer, resp.InternalServer(ecode.Text(ecode.ServerErr)))
	}
}

// Health reports liveness.
func Health(c *gin.Context) {
	resp.WithStatusCode(c.Writer, http.StatusOK, map[string]string{"status": "healthy"})
}

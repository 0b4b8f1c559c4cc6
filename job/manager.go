// Package job runs scrape jobs in the background and serves their logs and
// status.
package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/jobpanel/concurrency/worker"
	"github.com/ncobase/jobpanel/config"
	"github.com/ncobase/jobpanel/ctxutil"
	"github.com/ncobase/jobpanel/job/data/cache"
	jobRepo "github.com/ncobase/jobpanel/job/data/repository"
	"github.com/ncobase/jobpanel/job/logstore"
	"github.com/ncobase/jobpanel/job/structs"
	"github.com/ncobase/jobpanel/logging/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ncobase/jobpanel/job"

// statusWriteTimeout bounds the final status write, which runs after the
// task context may already be done.
const statusWriteTimeout = 5 * time.Second

const (
	reasonStopped     = "job service stopped before the job ran"
	reasonInterrupted = "job interrupted by a service restart"
)

// Stats summarises the job records by status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Unknown   int `json:"unknown"`

	Pool map[string]int64 `json:"pool,omitempty"`
}

// Manager queues jobs on a worker pool and records their status.
type Manager struct {
	pool         *worker.Pool
	repo         jobRepo.JobRepository
	cache        *cache.StatusCache
	logs         *logstore.Store
	runner       *Runner
	testDuration time.Duration
	logger       *logger.Logger
	tracer       trace.Tracer

	mu     sync.Mutex
	queued map[string]*structs.Job
}

// NewManager marks jobs left unfinished by a previous process as failed and
// starts the worker pool. statusCache may be nil. The returned cleanup stops
// the pool, waiting up to 30 seconds for running jobs, and fails the jobs
// still queued.
func NewManager(ctx context.Context, cfg *config.Jobs, repo jobRepo.JobRepository, statusCache *cache.StatusCache, logger *logger.Logger) (*Manager, func(), error) {
	logs, err := logstore.New(cfg.LogDir, 0)
	if err != nil {
		return nil, nil, err
	}

	pool, stop, err := worker.NewStartedPool(&worker.Config{
		MaxWorkers:  cfg.MaxWorkers,
		QueueSize:   cfg.QueueSize,
		TaskTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	m := &Manager{
		pool:         pool,
		repo:         repo,
		cache:        statusCache,
		logs:         logs,
		runner:       NewRunner(cfg, logs),
		testDuration: cfg.TestDuration,
		logger:       logger,
		tracer:       otel.Tracer(tracerName),
		queued:       map[string]*structs.Job{},
	}

	if err := m.recoverUnfinished(ctx); err != nil {
		stop()
		return nil, nil, err
	}

	cleanup := func() {
		stop()
		m.abandonQueued()
	}
	return m, cleanup, nil
}

// Start validates params and queues a scrape job.
func (m *Manager) Start(ctx context.Context, params structs.JobParameters) (*structs.StartResponse, error) {
	ctx, span := m.tracer.Start(ctx, "job.Start")
	defer span.End()

	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid parameters")
		return nil, err
	}

	job := newJob("scrape", structs.KindScrape, &params)
	span.SetAttributes(attribute.String("job.id", job.ID))

	if err := m.enqueue(ctx, job, func(taskCtx context.Context) structs.StatusInfo {
		return m.runScrape(taskCtx, job)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &structs.StartResponse{JobID: job.ID}, nil
}

// StartTest queues the diagnostic job, which sleeps for the configured
// duration and then completes.
func (m *Manager) StartTest(ctx context.Context) (*structs.StartResponse, error) {
	ctx, span := m.tracer.Start(ctx, "job.StartTest")
	defer span.End()

	job := newJob("test", structs.KindTest, nil)
	span.SetAttributes(attribute.String("job.id", job.ID))

	if err := m.enqueue(ctx, job, func(taskCtx context.Context) structs.StatusInfo {
		return m.runTest(taskCtx, job)
	}); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &structs.StartResponse{JobID: job.ID, Message: "Test job queued"}, nil
}

// Log returns the log text written after since together with the job
// status. A job without a log yields offset 0 and an empty chunk; a job
// without a status record yields unknown.
func (m *Manager) Log(ctx context.Context, id string, since int64) (*structs.PollResponse, error) {
	ctx, span := m.tracer.Start(ctx, "job.Log", trace.WithAttributes(
		attribute.String("job.id", id),
		attribute.Int64("job.since", since),
	))
	defer span.End()

	if _, err := m.logs.Path(id); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// status is read before the log so a terminal status always comes with
	// every line written before it
	status, err := m.status(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	chunk, offset, err := m.logs.ReadSince(id, since)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &structs.PollResponse{Offset: &offset, Chunk: chunk, Status: status}, nil
}

// GetJob returns the job record.
func (m *Manager) GetJob(ctx context.Context, id string) (*structs.Job, error) {
	return m.repo.FindByID(ctx, id)
}

// ListJobs returns the most recent jobs, newest first.
func (m *Manager) ListJobs(ctx context.Context, limit int) ([]*structs.Job, error) {
	return m.repo.List(ctx, limit)
}

// Stats counts the job records by status and reports the worker pool
// metrics.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	counts, err := m.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	s := &Stats{
		Pending:   counts[structs.StatusPending],
		Running:   counts[structs.StatusRunning],
		Completed: counts[structs.StatusCompleted],
		Failed:    counts[structs.StatusFailed],
		Unknown:   counts[structs.StatusUnknown],
	}
	s.Total = s.Pending + s.Running + s.Completed + s.Failed + s.Unknown
	s.Pool = m.pool.GetMetrics()
	return s, nil
}

func newJob(prefix string, kind structs.JobKind, params *structs.JobParameters) *structs.Job {
	now := time.Now()
	return &structs.Job{
		ID:        prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Kind:      kind,
		Params:    params,
		Status:    structs.StatusInfo{Status: structs.StatusQueued},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// enqueue records the job as queued and submits run to the pool. When the
// pool rejects it the job is marked failed.
func (m *Manager) enqueue(ctx context.Context, job *structs.Job, run func(context.Context) structs.StatusInfo) error {
	if err := m.repo.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to record job: %w", err)
	}
	m.cacheStatus(ctx, job)

	m.mu.Lock()
	m.queued[job.ID] = job
	m.mu.Unlock()

	traceID := ctxutil.GetTraceID(ctx)
	err := m.pool.Submit(worker.Task(func(taskCtx context.Context) error {
		if traceID != "" {
			taskCtx = ctxutil.SetTraceID(taskCtx, traceID)
		}
		return m.execute(taskCtx, job, run)
	}))
	if err != nil {
		m.claim(job.ID)
		m.setStatus(ctx, job, structs.StatusInfo{Status: string(structs.StatusFailed), Error: err.Error()})
		m.logger.Error(ctx, "Failed to queue job", "job_id", job.ID, "error", err)
		return fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info(ctx, "Job queued", "job_id", job.ID, "kind", job.Kind)
	return nil
}

func (m *Manager) execute(ctx context.Context, job *structs.Job, run func(context.Context) structs.StatusInfo) error {
	ctx, span := m.tracer.Start(ctx, "job.Execute", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.kind", string(job.Kind)),
	))
	defer span.End()

	if !m.claim(job.ID) {
		return nil
	}
	if ctx.Err() != nil {
		m.abandon(ctx, job, reasonStopped)
		span.SetStatus(codes.Error, reasonStopped)
		return fmt.Errorf("job %s: %s", job.ID, reasonStopped)
	}

	m.logger.Info(ctx, "Executing job", "job_id", job.ID, "kind", job.Kind)

	started := time.Now()
	job.StartedAt = &started
	m.setStatus(ctx, job, structs.StatusInfo{Status: string(structs.StatusRunning)})

	final := run(ctx)

	ended := time.Now()
	job.EndedAt = &ended
	writeCtx, cancel := detached(ctx)
	m.setStatus(writeCtx, job, final)
	cancel()

	if final.JobStatus() == structs.StatusFailed {
		span.SetStatus(codes.Error, final.Error)
		m.logger.Error(ctx, "Job failed", "job_id", job.ID, "error", final.Error, "duration", ended.Sub(started))
		return fmt.Errorf("job %s failed", job.ID)
	}
	m.logger.Info(ctx, "Job completed", "job_id", job.ID, "duration", ended.Sub(started))
	return nil
}

func (m *Manager) runScrape(ctx context.Context, job *structs.Job) structs.StatusInfo {
	code, err := m.runner.Run(ctx, job.ID, *job.Params)
	if err != nil {
		return structs.StatusInfo{Status: string(structs.StatusFailed), Error: err.Error()}
	}
	if code != 0 {
		return structs.StatusInfo{Status: string(structs.StatusFailed), ReturnCode: &code}
	}
	return structs.StatusInfo{Status: string(structs.StatusCompleted), ReturnCode: &code}
}

func (m *Manager) runTest(ctx context.Context, job *structs.Job) structs.StatusInfo {
	_ = m.logs.Appendf(job.ID, "[info] Test job started, sleeping %s", m.testDuration)

	timer := time.NewTimer(m.testDuration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		_ = m.logs.Appendf(job.ID, "[exception] %v", ctx.Err())
		return structs.StatusInfo{Status: string(structs.StatusFailed), Error: ctx.Err().Error()}
	case <-timer.C:
	}

	_ = m.logs.Append(job.ID, "[info] Test job completed")
	return structs.StatusInfo{
		Status: string(structs.StatusCompleted),
		Meta:   map[string]any{"message": "Test job completed successfully"},
	}
}

// claim removes a job from the queued set. It reports false when the job
// was already failed by shutdown.
func (m *Manager) claim(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queued[id]; !ok {
		return false
	}
	delete(m.queued, id)
	return true
}

// abandonQueued fails the jobs the stopped pool never ran.
func (m *Manager) abandonQueued() {
	m.mu.Lock()
	jobs := make([]*structs.Job, 0, len(m.queued))
	for id, job := range m.queued {
		jobs = append(jobs, job)
		delete(m.queued, id)
	}
	m.mu.Unlock()

	for _, job := range jobs {
		m.abandon(context.Background(), job, reasonStopped)
	}
}

// recoverUnfinished fails the jobs a previous process left queued or
// running. Their tasks are gone, so no status would ever follow.
func (m *Manager) recoverUnfinished(ctx context.Context) error {
	jobs, err := m.repo.ListUnfinished(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unfinished jobs: %w", err)
	}
	for _, job := range jobs {
		m.abandon(ctx, job, reasonInterrupted)
	}
	if len(jobs) > 0 {
		m.logger.Warn(ctx, "Marked unfinished jobs as failed", "count", len(jobs))
	}
	return nil
}

// abandon logs reason to the job log and records the job as failed.
func (m *Manager) abandon(ctx context.Context, job *structs.Job, reason string) {
	_ = m.logs.Appendf(job.ID, "[exception] %s", reason)
	ended := time.Now()
	job.EndedAt = &ended

	writeCtx, cancel := detached(ctx)
	defer cancel()
	m.setStatus(writeCtx, job, structs.StatusInfo{Status: string(structs.StatusFailed), Error: reason})
	m.logger.Warn(writeCtx, "Job abandoned", "job_id", job.ID, "reason", reason)
}

// detached keeps ctx values such as the trace id but not its cancellation.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
}

// setStatus writes the status to the repository and the cache. Failures are
// logged; the job keeps running.
func (m *Manager) setStatus(ctx context.Context, job *structs.Job, status structs.StatusInfo) {
	job.Status = status
	job.UpdatedAt = time.Now()
	if err := m.repo.Update(ctx, job); err != nil {
		m.logger.Error(ctx, "Failed to update job status", "job_id", job.ID, "error", err)
	}
	m.cacheStatus(ctx, job)
}

func (m *Manager) cacheStatus(ctx context.Context, job *structs.Job) {
	if m.cache == nil {
		return
	}
	status := job.Status
	if err := m.cache.Set(ctx, job.ID, &status); err != nil {
		m.logger.Warn(ctx, "Failed to cache job status", "job_id", job.ID, "error", err)
	}
}

// status reads the cache first and falls back to the repository.
func (m *Manager) status(ctx context.Context, id string) (*structs.StatusInfo, error) {
	if m.cache != nil {
		cached, err := m.cache.Get(ctx, id)
		if err != nil {
			m.logger.Warn(ctx, "Failed to read cached job status", "job_id", id, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	job, err := m.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, jobRepo.ErrNotFound) {
			unknown := structs.UnknownStatus()
			return &unknown, nil
		}
		return nil, err
	}
	status := job.Status
	if status.Status == "" {
		status.Status = string(structs.StatusUnknown)
	}
	return &status, nil
}

// Package repository stores job records in SQLite.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ncobase/jobpanel/job/structs"
)

var ErrNotFound = errors.New("job not found")

type JobRepository interface {
	Create(ctx context.Context, job *structs.Job) error
	Update(ctx context.Context, job *structs.Job) error
	FindByID(ctx context.Context, id string) (*structs.Job, error)
	List(ctx context.Context, limit int) ([]*structs.Job, error)
	Stats(ctx context.Context) (map[structs.JobStatus]int, error)
	ListUnfinished(ctx context.Context) ([]*structs.Job, error)
}

type jobRepository struct {
	db *sql.DB
}

func NewJobRepository(ctx context.Context, db *sql.DB) (JobRepository, error) {
	repo := &jobRepository{db: db}
	if err := repo.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize job schema: %w", err)
	}
	return repo, nil
}

func (r *jobRepository) initSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			params TEXT,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			started_at TEXT,
			ended_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at);
	`)
	return err
}

const selectColumns = `id, kind, params, status, created_at, updated_at, started_at, ended_at`

func (r *jobRepository) Create(ctx context.Context, job *structs.Job) error {
	params, status, err := encode(job)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID,
		string(job.Kind),
		params,
		status,
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		job.UpdatedAt.UTC().Format(time.RFC3339Nano),
		formatTime(job.StartedAt),
		formatTime(job.EndedAt),
	)
	return err
}

func (r *jobRepository) Update(ctx context.Context, job *structs.Job) error {
	params, status, err := encode(job)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET kind = ?, params = ?, status = ?, updated_at = ?, started_at = ?, ended_at = ?
		WHERE id = ?
	`,
		string(job.Kind),
		params,
		status,
		job.UpdatedAt.UTC().Format(time.RFC3339Nano),
		formatTime(job.StartedAt),
		formatTime(job.EndedAt),
		job.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *jobRepository) FindByID(ctx context.Context, id string) (*structs.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

func (r *jobRepository) List(ctx context.Context, limit int) ([]*structs.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*structs.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return jobs, nil
}

// ListUnfinished returns the jobs recorded as queued, pending or running,
// oldest first.
func (r *jobRepository) ListUnfinished(ctx context.Context) ([]*structs.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM jobs
		WHERE json_extract(status, '$.status') IN (?, ?, ?)
		ORDER BY created_at ASC
	`, structs.StatusQueued, string(structs.StatusPending), string(structs.StatusRunning))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*structs.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Stats counts jobs per parsed status.
func (r *jobRepository) Stats(ctx context.Context) (map[structs.JobStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status FROM jobs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[structs.JobStatus]int{
		structs.StatusPending:   0,
		structs.StatusRunning:   0,
		structs.StatusCompleted: 0,
		structs.StatusFailed:    0,
		structs.StatusUnknown:   0,
	}

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var info structs.StatusInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			stats[structs.StatusUnknown]++
			continue
		}
		stats[info.JobStatus()]++
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*structs.Job, error) {
	var (
		j         structs.Job
		kind      string
		params    sql.NullString
		status    string
		createdAt string
		updatedAt string
		startedAt sql.NullString
		endedAt   sql.NullString
	)

	if err := s.Scan(&j.ID, &kind, &params, &status, &createdAt, &updatedAt, &startedAt, &endedAt); err != nil {
		return nil, err
	}

	j.Kind = structs.JobKind(kind)

	if params.Valid && params.String != "" && params.String != "null" {
		var p structs.JobParameters
		if err := json.Unmarshal([]byte(params.String), &p); err != nil {
			return nil, fmt.Errorf("invalid params for job %s: %w", j.ID, err)
		}
		j.Params = &p
	}

	if err := json.Unmarshal([]byte(status), &j.Status); err != nil {
		return nil, fmt.Errorf("invalid status for job %s: %w", j.ID, err)
	}

	var err error
	if j.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	if j.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if j.EndedAt, err = parseTime(endedAt); err != nil {
		return nil, err
	}

	return &j, nil
}

func encode(job *structs.Job) (any, string, error) {
	var params any
	if job.Params != nil {
		data, err := json.Marshal(job.Params)
		if err != nil {
			return nil, "", err
		}
		params = string(data)
	}

	status, err := json.Marshal(job.Status)
	if err != nil {
		return nil, "", err
	}
	return params, string(status), nil
}

func formatTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil, fmt.Errorf("invalid time value: %w", err)
	}
	return &parsed, nil
}

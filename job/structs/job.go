// Package structs defines the job domain models shared by the job service,
// the job client and the runner panel.
package structs

import (
	"strings"
	"time"

	"github.com/ncobase/jobpanel/validator"
)

// Parameter defaults used by the CLI and the start endpoint.
const (
	DefaultItemsPerSource        = 50
	DefaultRateLimitPerSecond    = 1.0
	DefaultRequestTimeoutSeconds = 20
)

// JobParameters are the scrape settings submitted with a job. They are
// immutable once submitted.
type JobParameters struct {
	ItemsPerSource        int     `json:"per_source" validate:"gte=1"`
	RateLimitPerSecond    float64 `json:"rate_limit" validate:"gte=0"`
	RequestTimeoutSeconds int     `json:"timeout" validate:"gte=1"`
}

// DefaultJobParameters returns the parameters the dialog is pre-filled with.
func DefaultJobParameters() JobParameters {
	return JobParameters{
		ItemsPerSource:        DefaultItemsPerSource,
		RateLimitPerSecond:    DefaultRateLimitPerSecond,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
	}
}

// Validate returns a *validator.Error describing every invalid field.
func (p JobParameters) Validate() error {
	return validator.Check(p)
}

// JobHandle identifies one run for the lifetime of a polling session.
type JobHandle struct {
	JobID string `json:"log_id"`
}

// PollCursor is the byte offset already consumed from a job's log stream.
type PollCursor struct {
	Offset int64 `json:"offset"`
}

// Advance returns the cursor moved to offset. A nil offset or one behind
// the cursor leaves it unchanged.
func (c PollCursor) Advance(offset *int64) PollCursor {
	if offset == nil || *offset <= c.Offset {
		return c
	}
	return PollCursor{Offset: *offset}
}

// LogChunk is the ordered, non-empty lines appended since the last poll.
type LogChunk []string

// SplitChunk splits raw log text into non-empty lines.
func SplitChunk(raw string) LogChunk {
	if raw == "" {
		return nil
	}
	var lines LogChunk
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// JobKind distinguishes scrape runs from the diagnostic job.
type JobKind string

const (
	KindScrape JobKind = "scrape"
	KindTest   JobKind = "test"
)

// Job is the server side record of one run.
type Job struct {
	ID        string         `json:"id"`
	Kind      JobKind        `json:"kind"`
	Params    *JobParameters `json:"params,omitempty"`
	Status    StatusInfo     `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
}

// StartResponse is the body returned by the start call.
type StartResponse struct {
	JobID   string `json:"log_id"`
	Message string `json:"message,omitempty"`
}

// Handle returns the handle for the started job.
func (r StartResponse) Handle() JobHandle {
	return JobHandle{JobID: r.JobID}
}

// PollResponse is the body returned by the poll call. Offset and Status may
// be absent.
type PollResponse struct {
	Offset *int64      `json:"offset,omitempty"`
	Chunk  string      `json:"chunk"`
	Status *StatusInfo `json:"status,omitempty"`
}

// JobStatus returns the parsed status, unknown when absent.
func (r *PollResponse) JobStatus() JobStatus {
	if r == nil || r.Status == nil {
		return StatusUnknown
	}
	return ParseStatus(r.Status.Status)
}

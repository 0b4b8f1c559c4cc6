package structs

import "strings"

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusUnknown   JobStatus = "unknown"
)

// StatusQueued is the raw status the job service records before a worker
// picks the job up. It parses as pending.
const StatusQueued = "queued"

// ParseStatus maps a raw status value to a JobStatus. Absent or
// unrecognized values are unknown, never terminal.
func ParseStatus(raw string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StatusPending), StatusQueued:
		return StatusPending
	case string(StatusRunning):
		return StatusRunning
	case string(StatusCompleted):
		return StatusCompleted
	case string(StatusFailed):
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// IsTerminal reports whether no further progress is expected.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s JobStatus) String() string {
	return string(s)
}

// StatusInfo is the status record kept per job and returned by poll.
type StatusInfo struct {
	Status     string         `json:"status,omitempty"`
	Error      string         `json:"error,omitempty"`
	ReturnCode *int           `json:"return_code,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// UnknownStatus is returned when no status has been recorded for a job.
func UnknownStatus() StatusInfo {
	return StatusInfo{Status: string(StatusUnknown)}
}

// JobStatus returns the parsed status.
func (s StatusInfo) JobStatus() JobStatus {
	return ParseStatus(s.Status)
}

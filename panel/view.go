package panel

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ncobase/jobpanel/job/structs"
)

// Starter starts a job.
type Starter interface {
	Start(ctx context.Context, params structs.JobParameters) (*structs.JobHandle, error)
}

// Poller fetches the log text written after since and the job status.
type Poller interface {
	Poll(ctx context.Context, jobID string, since int64) (*structs.PollResponse, error)
}

// Refresher is told when the job listing may have changed.
type Refresher interface {
	RefreshListing()
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func()

func (f RefresherFunc) RefreshListing() { f() }

// View displays the panel. Its methods are called with the panel lock held
// and must not call back into the panel.
type View interface {
	AppendLine(line string)
	Notify(title, message string)
	SetSubmitEnabled(enabled bool)
}

// WriterView writes appended lines and notices to an io.Writer.
type WriterView struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterView returns a view writing to w.
func NewWriterView(w io.Writer) *WriterView {
	return &WriterView{w: w}
}

func (v *WriterView) AppendLine(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, _ = fmt.Fprintln(v.w, line)
}

func (v *WriterView) Notify(title, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, _ = fmt.Fprintf(v.w, "%s: %s\n", title, message)
}

// SetSubmitEnabled does nothing; a terminal has no submit control.
func (v *WriterView) SetSubmitEnabled(bool) {}

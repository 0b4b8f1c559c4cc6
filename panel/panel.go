// Package panel drives one job at a time from submission to a terminal
// status. After a successful start it polls the job log immediately and then
// once per interval, appending new log lines to a View, until the job
// completes or fails or the panel is closed.
//
// States move Idle -> Submitting -> Polling -> Terminal. A failed start goes
// back to Idle. Terminal accepts a new submission.
//
// At most one poll is in flight and at most one poll is scheduled. The next
// poll is scheduled only after the previous one has been applied, so
// responses are consumed in the order they were requested.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ncobase/jobpanel/job/structs"
	"github.com/ncobase/jobpanel/logging/logger"
)

// DefaultPollInterval is the delay between the end of one poll and the start
// of the next.
const DefaultPollInterval = 1500 * time.Millisecond

var (
	// ErrBusy is returned by Submit while a job is being submitted or polled.
	ErrBusy = errors.New("a job is already being submitted or polled")
	// ErrClosed is returned by Submit and Wait once the panel is closed.
	ErrClosed = errors.New("panel is closed")
	// ErrNotStarted is returned by Wait before the first submission.
	ErrNotStarted = errors.New("no job has been submitted")
)

// State is the panel lifecycle state.
type State int

const (
	Idle State = iota
	Submitting
	Polling
	Terminal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Polling:
		return "polling"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is a point in time copy of the panel state.
type Snapshot struct {
	State  State
	Handle *structs.JobHandle
	Cursor structs.PollCursor
	Status structs.JobStatus
	Closed bool
}

// Option configures a Panel.
type Option func(*Panel)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(p *Panel) { p.clock = c }
}

// WithPollInterval sets the delay between polls. Non-positive values keep
// DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Panel) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithCallTimeout bounds each start and poll call. Zero means no bound.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Panel) { p.callTimeout = d }
}

// WithRefresher sets the listing notified on terminal status.
func WithRefresher(r Refresher) Option {
	return func(p *Panel) { p.refresher = r }
}

// WithLogger logs panel transitions.
func WithLogger(l *logger.Logger) Option {
	return func(p *Panel) { p.logger = l }
}

// Panel submits a job and follows its log.
type Panel struct {
	starter     Starter
	poller      Poller
	view        View
	refresher   Refresher
	clock       Clock
	interval    time.Duration
	callTimeout time.Duration
	logger      *logger.Logger

	mu       sync.Mutex
	state    State
	gen      uint64
	baseCtx  context.Context
	handle   *structs.JobHandle
	cursor   structs.PollCursor
	status   structs.JobStatus
	timer    Timer
	inFlight bool
	closed   bool
	run      *run
}

// run is the outcome of one submission. done is closed once the start
// failed, or the terminal status was applied and the listing refreshed, or
// the panel was closed.
type run struct {
	done     chan struct{}
	released bool
	status   structs.JobStatus
	err      error
}

func newRun() *run {
	return &run{done: make(chan struct{})}
}

// release wakes Wait callers of r. p.mu must be held.
func (r *run) release() {
	if !r.released {
		r.released = true
		close(r.done)
	}
}

// New returns an idle panel.
func New(starter Starter, poller Poller, view View, opts ...Option) *Panel {
	p := &Panel{
		starter:  starter,
		poller:   poller,
		view:     view,
		clock:    SystemClock,
		interval: DefaultPollInterval,
		state:    Idle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit starts a job with params and runs the first poll before returning.
// Later polls run on the clock. It returns ErrBusy while a job is being
// submitted or polled and ErrClosed after Close.
func (p *Panel) Submit(ctx context.Context, params structs.JobParameters) (*structs.JobHandle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.state == Submitting || p.state == Polling {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	p.gen++
	gen := p.gen
	p.state = Submitting
	p.baseCtx = context.WithoutCancel(ctx)
	p.handle = nil
	p.cursor = structs.PollCursor{}
	p.status = ""
	r := newRun()
	p.run = r
	p.view.SetSubmitEnabled(false)
	p.mu.Unlock()

	handle, err := p.start(ctx, params)

	p.mu.Lock()
	if p.closed || p.gen != gen {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if err != nil {
		p.state = Idle
		r.err = err
		p.view.Notify("Failed to start", err.Error())
		p.view.SetSubmitEnabled(true)
		r.release()
		p.mu.Unlock()
		p.log(ctx, "Failed to start job", "error", err)
		return nil, err
	}
	p.handle = handle
	p.state = Polling
	p.inFlight = true
	p.view.AppendLine("Started job: " + handle.JobID)
	p.mu.Unlock()

	p.log(ctx, "Job started", "job_id", handle.JobID)
	p.poll(gen)
	return handle, nil
}

func (p *Panel) start(ctx context.Context, params structs.JobParameters) (*structs.JobHandle, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	handle, err := p.starter.Start(ctx, params)
	if err != nil {
		return nil, err
	}
	if handle == nil || handle.JobID == "" {
		return nil, errors.New("start returned no job id")
	}
	return handle, nil
}

// poll runs one poll for run gen and applies its result. The caller has set
// inFlight.
func (p *Panel) poll(gen uint64) {
	p.mu.Lock()
	if p.closed || p.gen != gen || p.state != Polling {
		p.inFlight = false
		p.mu.Unlock()
		return
	}
	handle, cursor, base := *p.handle, p.cursor, p.baseCtx
	p.mu.Unlock()

	ctx, cancel := p.callContext(base)
	next, chunk, status, err := PollOnce(ctx, p.poller, handle, cursor)
	cancel()

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	p.inFlight = false
	if p.closed {
		p.mu.Unlock()
		return
	}

	if err != nil {
		p.view.AppendLine("Error polling: " + err.Error())
		p.schedule(gen)
		p.mu.Unlock()
		p.log(base, "Poll failed", "job_id", handle.JobID, "since", cursor.Offset, "error", err)
		return
	}

	p.cursor = next
	p.status = status
	for _, line := range chunk {
		p.view.AppendLine(line)
	}

	if !status.IsTerminal() {
		p.schedule(gen)
		p.mu.Unlock()
		return
	}

	p.finish(status)
	r := p.run
	r.status = status
	refresher := p.refresher
	p.mu.Unlock()

	p.log(base, "Job finished", "job_id", handle.JobID, "status", status)
	if refresher != nil {
		refresher.RefreshListing()
	}

	// a new submission may have started during the refresh; r still
	// belongs to this run
	p.mu.Lock()
	r.release()
	p.mu.Unlock()
}

// schedule arms the single poll timer. p.mu must be held.
func (p *Panel) schedule(gen uint64) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = p.clock.AfterFunc(p.interval, func() { p.tick(gen) })
}

func (p *Panel) tick(gen uint64) {
	p.mu.Lock()
	if p.closed || p.gen != gen || p.state != Polling || p.inFlight {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.inFlight = true
	p.mu.Unlock()

	p.poll(gen)
}

// finish moves to Terminal. Wait callers are released by poll once the
// listing has been refreshed. p.mu must be held.
func (p *Panel) finish(status structs.JobStatus) {
	p.stopTimer()
	p.state = Terminal
	p.view.AppendLine("Status: " + status.String())
	p.view.SetSubmitEnabled(true)
}

func (p *Panel) stopTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Close cancels the scheduled poll. A poll already in flight is not aborted;
// its result is dropped. The job keeps running on the server. Close is
// idempotent.
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stopTimer()
	if p.run != nil {
		p.run.release()
	}
}

// Wait blocks until the run started by the latest submission reaches a
// terminal status and returns it. A later submission does not affect
// callers already waiting. It returns ErrClosed once the panel is closed,
// the start error when the submission failed, and ErrNotStarted before any
// submission.
func (p *Panel) Wait(ctx context.Context) (structs.JobStatus, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrClosed
	}
	r := p.run
	p.mu.Unlock()
	if r == nil {
		return "", ErrNotStarted
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case r.err != nil:
		return "", r.err
	case r.status.IsTerminal():
		return r.status, nil
	default:
		return "", ErrClosed
	}
}

// Snapshot returns the current state.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		State:  p.state,
		Cursor: p.cursor,
		Status: p.status,
		Closed: p.closed,
	}
	if p.handle != nil {
		h := *p.handle
		s.Handle = &h
	}
	return s
}

func (p *Panel) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.callTimeout > 0 {
		return context.WithTimeout(ctx, p.callTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Panel) log(ctx context.Context, msg string, kv ...any) {
	if p.logger != nil {
		p.logger.Debug(ctx, msg, kv...)
	}
}

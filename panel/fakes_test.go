package panel

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ncobase/jobpanel/job/structs"
)

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due callbacks in order on the calling
// goroutine.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*manualTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.f()
	}
}

// Pending returns the delays of the armed timers.
func (c *manualClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.at-c.now)
		}
	}
	return out
}

type pollCall struct {
	JobID string
	Since int64
}

type pollResult struct {
	res *structs.PollResponse
	err error
}

// scriptedPoller returns queued results in order. When the script is empty
// it reports a running job without output.
type scriptedPoller struct {
	mu      sync.Mutex
	calls   []pollCall
	results []pollResult
	block   chan struct{}
}

func (s *scriptedPoller) Poll(_ context.Context, jobID string, since int64) (*structs.PollResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, pollCall{JobID: jobID, Since: since})
	block := s.block
	s.mu.Unlock()

	if block != nil {
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return &structs.PollResponse{Status: &structs.StatusInfo{Status: "running"}}, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.res, r.err
}

func (s *scriptedPoller) push(res *structs.PollResponse, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, pollResult{res: res, err: err})
}

func (s *scriptedPoller) Calls() []pollCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pollCall(nil), s.calls...)
}

type fakeStarter struct {
	mu     sync.Mutex
	id     string
	err    error
	params []structs.JobParameters
}

func (f *fakeStarter) Start(_ context.Context, params structs.JobParameters) (*structs.JobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return &structs.JobHandle{JobID: f.id}, nil
}

type notice struct {
	Title   string
	Message string
}

type recordingView struct {
	mu      sync.Mutex
	lines   []string
	notices []notice
	enabled []bool
}

func (v *recordingView) AppendLine(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lines = append(v.lines, line)
}

func (v *recordingView) Notify(title, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, notice{Title: title, Message: message})
}

func (v *recordingView) SetSubmitEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled = append(v.enabled, enabled)
}

func (v *recordingView) Lines() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.lines...)
}

func (v *recordingView) Enabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.enabled) == 0 || v.enabled[len(v.enabled)-1]
}

type countingRefresher struct {
	mu sync.Mutex
	n  int
}

func (r *countingRefresher) RefreshListing() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
}

func (r *countingRefresher) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func offset(v int64) *int64 { return &v }

func running(off int64, chunk string) *structs.PollResponse {
	return &structs.PollResponse{Offset: offset(off), Chunk: chunk, Status: &structs.StatusInfo{Status: "running"}}
}

func withStatus(off int64, chunk, status string) *structs.PollResponse {
	return &structs.PollResponse{Offset: offset(off), Chunk: chunk, Status: &structs.StatusInfo{Status: status}}
}

var errNetwork = errors.New("network unreachable")

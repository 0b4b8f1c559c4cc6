package job

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ncobase/jobpanel/config"
	"github.com/ncobase/jobpanel/job/logstore"
	"github.com/ncobase/jobpanel/job/structs"
)

// Runner launches the scrape command and streams its output into the job log.
type Runner struct {
	command []string
	workdir string
	timeout time.Duration
	logs    *logstore.Store
}

// NewRunner returns a runner for the configured command.
func NewRunner(cfg *config.Jobs, logs *logstore.Store) *Runner {
	return &Runner{
		command: cfg.Command,
		workdir: cfg.Workdir,
		timeout: cfg.Timeout,
		logs:    logs,
	}
}

// Args returns the full command line for params.
func (r *Runner) Args(params structs.JobParameters) []string {
	args := make([]string, 0, len(r.command)+6)
	args = append(args, r.command...)
	return append(args,
		"--per-source", strconv.Itoa(params.ItemsPerSource),
		"--rate-limit", strconv.FormatFloat(params.RateLimitPerSecond, 'f', -1, 64),
		"--timeout", strconv.Itoa(params.RequestTimeoutSeconds),
	)
}

// Run executes the scraper and returns its exit code. A non-nil error means
// the process could not be run to completion; the failure has already been
// written to the log as an [exception] line.
func (r *Runner) Run(ctx context.Context, id string, params structs.JobParameters) (int, error) {
	code, err := r.run(ctx, id, params)
	if err != nil {
		_ = r.logs.Appendf(id, "[exception] %v", err)
		return code, err
	}
	_ = r.logs.Appendf(id, "[info] Subprocess completed with return code: %d", code)
	if code != 0 {
		_ = r.logs.Appendf(id, "[error] Scraper exited with code %d", code)
	}
	return code, nil
}

func (r *Runner) run(ctx context.Context, id string, params structs.JobParameters) (int, error) {
	if len(r.command) == 0 {
		return -1, errors.New("no scrape command configured")
	}
	args := r.Args(params)
	rate := strconv.FormatFloat(params.RateLimitPerSecond, 'f', -1, 64)

	r.info(id, "Starting scraper: %s", r.command[0])
	r.info(id, "Config: job_timeout=%s", r.timeout)
	r.info(id, "Parameters: per_source=%d, rate_limit=%s, scraper_timeout=%d",
		params.ItemsPerSource, rate, params.RequestTimeoutSeconds)
	r.info(id, "Overriding source limits to %d per source", params.ItemsPerSource)
	r.info(id, "Overriding rate limit to %s reqs/sec", rate)
	r.info(id, "Overriding timeout to %d seconds", params.RequestTimeoutSeconds)
	r.info(id, "CWD: %s", r.workdir)
	r.info(id, "CMD: %s", strings.Join(args, " "))
	r.info(id, "Starting subprocess...")

	// stdout and stderr share one writer, so exec calls it from one
	// goroutine at a time
	out := r.logs.Writer(id)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.workdir
	cmd.WaitDelay = time.Second
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start subprocess: %w", err)
	}
	r.info(id, "Subprocess started (PID: %d)", cmd.Process.Pid)

	err := cmd.Wait()
	_ = out.Flush()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, fmt.Errorf("scraper stopped: %w", ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("failed to wait for subprocess: %w", err)
	}
	return 0, nil
}

func (r *Runner) info(id, format string, args ...any) {
	_ = r.logs.Append(id, "[info] "+fmt.Sprintf(format, args...))
}

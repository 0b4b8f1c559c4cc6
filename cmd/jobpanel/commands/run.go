package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncobase/jobpanel/client"
	"github.com/ncobase/jobpanel/config"
	"github.com/ncobase/jobpanel/job/structs"
	"github.com/ncobase/jobpanel/logging/logger"
	"github.com/ncobase/jobpanel/panel"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ErrJobFailed is returned when a followed job ends as failed.
var ErrJobFailed = errors.New("job failed")

type runOptions struct {
	params   structs.JobParameters
	interval time.Duration
	endpoint string
	verbose  bool
}

// NewRunCommand creates the run command
func NewRunCommand(opts *rootOptions) *cobra.Command {
	ro := &runOptions{params: structs.DefaultJobParameters()}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a scrape job and follow its log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			c, err := newClient(cfg, ro.endpoint)
			if err != nil {
				return err
			}
			return follow(cmd, cfg, ro, c, c)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&ro.params.ItemsPerSource, "per-source", ro.params.ItemsPerSource, "items to fetch per source")
	flags.Float64Var(&ro.params.RateLimitPerSecond, "rate-limit", ro.params.RateLimitPerSecond, "requests per second")
	flags.IntVar(&ro.params.RequestTimeoutSeconds, "timeout", ro.params.RequestTimeoutSeconds, "request timeout in seconds")
	addFollowFlags(cmd, ro)
	return cmd
}

func addFollowFlags(cmd *cobra.Command, ro *runOptions) {
	cmd.Flags().DurationVar(&ro.interval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().StringVar(&ro.endpoint, "endpoint", "", "job service URL (default from config)")
	cmd.Flags().BoolVarP(&ro.verbose, "verbose", "v", false, "log panel activity to stderr")
}

func newClient(cfg *config.Config, endpoint string) (*client.Client, error) {
	if endpoint != "" {
		cfg.Client.Endpoint = endpoint
	}
	return client.New(cfg.Client)
}

// follow submits through starter and prints the job log until the job ends
// or the command is interrupted. Interrupting stops following; the job keeps
// running on the server.
func follow(cmd *cobra.Command, cfg *config.Config, ro *runOptions, starter panel.Starter, c *client.Client) error {
	out := cmd.OutOrStdout()

	level := logrus.WarnLevel
	if ro.verbose {
		level = logrus.DebugLevel
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), level)

	interval := cfg.Panel.PollInterval
	if ro.interval > 0 {
		interval = ro.interval
	}

	p := panel.New(starter, c, panel.NewWriterView(out),
		panel.WithPollInterval(interval),
		panel.WithCallTimeout(cfg.Client.RequestTimeout),
		panel.WithRefresher(listingPrinter(out, c, cfg.Client.RequestTimeout)),
		panel.WithLogger(log),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		p.Close()
	}()

	if _, err := p.Submit(ctx, ro.params); err != nil {
		return err
	}

	status, err := p.Wait(context.Background())
	if errors.Is(err, panel.ErrClosed) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Stopped following; the job keeps running on the server.")
		return nil
	}
	if err != nil {
		return err
	}
	if status == structs.StatusFailed {
		return ErrJobFailed
	}
	return nil
}

// listingPrinter prints the most recent jobs after a run ends.
func listingPrinter(out io.Writer, c *client.Client, timeout time.Duration) panel.Refresher {
	return panel.RefresherFunc(func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		jobs, err := c.ListJobs(ctx, 5)
		if err != nil {
			fmt.Fprintf(out, "Failed to refresh job list: %v\n", err)
			return
		}
		fmt.Fprintln(out, "Recent jobs:")
		for _, j := range jobs {
			fmt.Fprintf(out, "  %s  %-9s  %s\n", j.ID, j.Status.JobStatus(), j.CreatedAt.Local().Format(time.DateTime))
		}
	})
}

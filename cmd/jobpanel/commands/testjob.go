package commands

import (
	"context"
	"fmt"

	"github.com/ncobase/jobpanel/client"
	"github.com/ncobase/jobpanel/job/structs"
	"github.com/spf13/cobra"
)

// testStarter starts the diagnostic job whatever the parameters.
type testStarter struct {
	c *client.Client
}

func (s testStarter) Start(ctx context.Context, _ structs.JobParameters) (*structs.JobHandle, error) {
	res, err := s.c.StartTest(ctx)
	if err != nil {
		return nil, err
	}
	h := res.Handle()
	return &h, nil
}

// NewTestJobCommand creates the test-job command
func NewTestJobCommand(opts *rootOptions) *cobra.Command {
	ro := &runOptions{params: structs.DefaultJobParameters()}
	var watch bool

	cmd := &cobra.Command{
		Use:   "test-job",
		Short: "Queue the diagnostic job to check that background jobs run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			c, err := newClient(cfg, ro.endpoint)
			if err != nil {
				return err
			}
			if watch {
				return follow(cmd, cfg, ro, testStarter{c: c}, c)
			}

			res, err := c.StartTest(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.JobID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "follow", "f", false, "follow the job until it ends")
	addFollowFlags(cmd, ro)
	return cmd
}

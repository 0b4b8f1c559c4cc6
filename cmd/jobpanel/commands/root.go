// Package commands holds the jobpanel cobra commands.
package commands

import (
	"fmt"

	"github.com/ncobase/jobpanel/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "jobpanel",
		Short:         "Run scrape jobs and follow their logs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(
		NewServeCommand(opts),
		NewRunCommand(opts),
		NewTestJobCommand(opts),
		NewVersionCommand(),
	)

	return rootCmd
}

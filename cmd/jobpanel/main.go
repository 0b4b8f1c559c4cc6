// Command jobpanel serves scrape jobs and follows them from the terminal.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ncobase/jobpanel/cmd/jobpanel/commands"
)

func main() {
	rootCmd := commands.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, commands.ErrJobFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

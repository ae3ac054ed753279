package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ordlab/ordpilot/pkg/ord/ordrt"
	"github.com/ordlab/ordpilot/pkg/validate"
)

// workerCommand creates the hidden worker subcommand. The pipeline re-invokes
// the current executable with this command to validate candidates in an
// isolated process; it reads one JSON request from stdin and writes one JSON
// response envelope to stdout.
func (c *CLI) workerCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Run one validation request from stdin (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validate.ServeWorker(ordrt.New(), os.Stdin, os.Stdout)
		},
	}
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/harun/recall/internal/tracing"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe backend liveness",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := tracing.NewRequestContext(cmd.Context())
	st, err := rt.service.Status(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), st)
}

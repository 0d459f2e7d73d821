package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/recall/internal/tracing"
)

var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Compose the session-start context block",
	Long: `Compose the memory block a coding agent injects at session start:
the user profile plus relevant project and user memories. Prints
nothing when no memories exist, so the agent can skip injection.`,
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	query := strings.Join(args, " ")
	if query == "" {
		query = rt.cfg.Memory.ProjectTag
	}

	ctx := tracing.NewRequestContext(cmd.Context())
	block, err := rt.service.Context(ctx, query)
	if err != nil {
		return err
	}
	if block == "" {
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), block)
	return nil
}

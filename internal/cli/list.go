package cli

import (
	"github.com/spf13/cobra"

	"github.com/harun/recall/internal/tracing"
)

var (
	listScope string
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent memories",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listScope, "scope", "", "memory scope (user or project, default project)")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum entries (default from config)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := tracing.NewRequestContext(cmd.Context())
	items, err := rt.service.List(ctx, listScope, listLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), items)
}

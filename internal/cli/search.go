package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/recall/internal/tracing"
)

var (
	searchScope  string
	searchLimit  int
	searchCenter string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search memories",
	Long: `Search stored memories. Without --scope both the user and project
partitions are searched and the merged results are ranked by
similarity. Superseded facts never appear.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchScope, "scope", "", "restrict to one scope (user or project)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (default from config)")
	searchCmd.Flags().StringVar(&searchCenter, "center-node", "", "rank results around this node id")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := tracing.NewRequestContext(cmd.Context())
	results, err := rt.service.Search(ctx, strings.Join(args, " "), searchScope, searchLimit, searchCenter)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), results)
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/harun/recall/internal/tracing"
)

var graphLimit int

var graphCmd = &cobra.Command{
	Use:   "graph <node-id>",
	Short: "Explore facts around a node",
	Long: `Explore the knowledge graph around one node. Facts are partitioned
into currently valid and superseded so invalidation history stays
visible without polluting search results.`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().IntVar(&graphLimit, "limit", 0, "maximum facts (default from config)")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := tracing.NewRequestContext(cmd.Context())
	view, err := rt.service.Graph(ctx, args[0], graphLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), view)
}

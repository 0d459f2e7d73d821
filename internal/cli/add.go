package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/recall/internal/tracing"
)

var (
	addScope  string
	addSource string
)

var addCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Store a memory",
	Long: `Store a memory in the knowledge graph. Content is classified as
text, json, or message unless --source overrides it. The default scope
is project; use --scope user for durable personal preferences.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addScope, "scope", "", "memory scope (user or project)")
	addCmd.Flags().StringVar(&addSource, "source", "", "content kind override (text, json, message)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := tracing.NewRequestContext(cmd.Context())
	receipt, err := rt.service.Add(ctx, strings.Join(args, " "), addScope, addSource)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), receipt)
}

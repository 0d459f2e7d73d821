package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/recall/internal/tracing"
)

var profileCmd = &cobra.Command{
	Use:   "profile [query]",
	Short: "Show the derived user profile",
	Long: `Derive the user's preference profile from the user scope. Static
entries are durable traits; dynamic entries are situational facts.`,
	RunE: runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := tracing.NewRequestContext(cmd.Context())
	profile, err := rt.service.Profile(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), profile)
}

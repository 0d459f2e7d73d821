package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/recall/internal/tracing"
)

var forgetCmd = &cobra.Command{
	Use:   "forget <memory-id>",
	Short: "Delete one memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

var clearCmd = &cobra.Command{
	Use:   "clear <scope>",
	Short: "Delete everything in one scope",
	Long: `Delete all memories in the named scope (user or project). The scope
must be spelled out; there is no clear-everything shortcut.`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(clearCmd)
}

func runForget(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := tracing.NewRequestContext(cmd.Context())
	if err := rt.service.Forget(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "forgotten: %s\n", args[0])
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := tracing.NewRequestContext(cmd.Context())
	if err := rt.service.Clear(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared scope: %s\n", args[0])
	return nil
}

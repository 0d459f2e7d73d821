package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/recall/pkg/hooks"
)

// hookTimeout bounds one hook invocation. An agent session must never
// hang on memory.
const hookTimeout = 60 * time.Second

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle one agent lifecycle hook",
	Long: `Read a JSON hook request from stdin, run the memory operation it
names, and write a JSON response envelope to stdout. Operation failures
are reported in the envelope with exit code zero.`,
	RunE: runHook,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func runHook(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	handler, err := hooks.NewHandler(hooks.Config{
		Service: rt.service,
		Logger:  rt.log.GetZerolog(),
		In:      cmd.InOrStdin(),
		Out:     cmd.OutOrStdout(),
		Timeout: hookTimeout,
	})
	if err != nil {
		return err
	}
	return handler.Run(cmd.Context())
}

package cli

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

// Execute runs the CLI with the given base context, which should already be
// wired to SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz-battle",
		Short: "Real-time multiplayer quiz battle server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Optional; a missing .env just means plain environment config.
			_ = godotenv.Load(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to an optional env file")
	cmd.AddCommand(newServeCmd())
	return cmd
}

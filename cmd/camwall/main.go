// Command camwall runs the camera wall service and its diagnostics.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := CreateServeCmd()
	root := &cobra.Command{
		Use:   "camwall",
		Short: "Adaptive live-stream camera wall",
		Long: `Plays one HLS live stream per camera reported by the backend, recovering failed streams ` +
			`and adapting quality to buffer health. Runs "serve" when no subcommand is given.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.PersistentFlags().String("env-file", ".env", "Path to a .env file (missing file is ignored)")
	root.AddCommand(serve, CreateProbeCmd())
	return root
}

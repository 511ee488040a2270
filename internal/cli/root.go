// Package cli implements the focusdeck command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "focusdeck",
	Short: "FocusDeck personal productivity daemon",
	Long: `FocusDeck keeps your tasks, projects, clients, and habits in sync
across sessions, meters AI-assisted actions against a weekly token grant,
and exposes everything over a local HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("addr", "127.0.0.1:7333", "Address of the running daemon")
}

func daemonAddr(cmd *cobra.Command) string {
	addr, _ := cmd.Flags().GetString("addr")
	return addr
}

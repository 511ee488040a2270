package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/focusdeck/focusdeck/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("config", daemon.ConfigPath(), "Path to config file")
	serveCmd.Flags().Bool("local-only", false, "Serve every account from the local document store")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the FocusDeck daemon",
	Long:  `Start the daemon: opens the stores, watches local documents, and serves the HTTP API until interrupted.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}
	if localOnly, _ := cmd.Flags().GetBool("local-only"); localOnly {
		cfg.Data.LocalOnly = true
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

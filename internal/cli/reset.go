package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/focusdeck/focusdeck/internal/daemon"
	"github.com/focusdeck/focusdeck/internal/infra/localstore"
)

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().String("config", daemon.ConfigPath(), "Path to config file")
	resetCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
}

var resetCmd = &cobra.Command{
	Use:   "reset ACCOUNT_ID",
	Short: "Delete an account's local document",
	Long: `Remove the per-account local document: cached records, guest account
data, and the guest charge ledger. Durable backend data is not touched.`,
	Args: cobra.ExactArgs(1),
	RunE: runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	accountID := args[0]
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	store, err := localstore.New(cfg.Data.DocumentsDir())
	if err != nil {
		return err
	}
	path := store.Path(accountID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no local document for account %s", accountID)
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Fprintf(os.Stdout, "Delete %s? [y/N] ", path)
		var answer string
		fmt.Fscanln(os.Stdin, &answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(os.Stdout, "Aborted.")
			return nil
		}
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Removed local document for account %s\n", accountID)
	return nil
}

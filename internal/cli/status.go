package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(balanceCmd)
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

func getJSON(addr, path string, out any) error {
	resp, err := httpClient.Get("http://" + addr + path)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s", apiErr.Error.Message)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ─── status ─────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and the active session",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr := daemonAddr(cmd)

	var version struct {
		Version string `json:"version"`
	}
	if err := getJSON(addr, "/api/version", &version); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "FocusDeck %s at %s\n", version.Version, addr)

	var session struct {
		Account struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"account"`
		Degraded bool `json:"degraded"`
	}
	if err := getJSON(addr, "/api/session", &session); err != nil {
		fmt.Fprintln(os.Stdout, "No active session.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "Session: %s (%s)\n", session.Account.Name, session.Account.ID)
	if session.Degraded {
		fmt.Fprintln(os.Stdout, "Warning: serving from local cache, durable backend unreachable.")
	}
	return nil
}

// ─── balance ────────────────────────────────────────────────────────────────

var balanceCmd = &cobra.Command{
	Use:   "balance [ACCOUNT_ID]",
	Short: "Show an account's token balance and recent charges",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBalance,
}

func runBalance(cmd *cobra.Command, args []string) error {
	addr := daemonAddr(cmd)
	query := ""
	if len(args) == 1 {
		query = "?accountId=" + args[0]
	}

	var balance struct {
		AccountID string `json:"accountId"`
		Display   string `json:"display"`
	}
	if err := getJSON(addr, "/api/account/balance"+query, &balance); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Account %s: %s tokens\n", balance.AccountID, balance.Display)

	var ledger struct {
		Transactions []struct {
			Feature   string    `json:"feature"`
			Cost      int64     `json:"cost"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"transactions"`
	}
	if err := getJSON(addr, "/api/ledger/transactions"+query, &ledger); err != nil {
		return err
	}
	if len(ledger.Transactions) == 0 {
		fmt.Fprintln(os.Stdout, "No charges this week.")
		return nil
	}
	fmt.Fprintln(os.Stdout, "Recent charges:")
	for _, tx := range ledger.Transactions {
		fmt.Fprintf(os.Stdout, "  %s  %-12s %d.%02d\n",
			tx.Timestamp.Local().Format("Jan 02 15:04"), tx.Feature, tx.Cost/100, tx.Cost%100)
	}
	return nil
}

package main

import (
	"errors"
	"fmt"

	"github.com/sjperalta/transfer-ledger/internal/config"
	"github.com/spf13/cobra"
)

var errDriftFound = errors.New("drift found")

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().Bool("report-only", false, "Report drift without correcting it")
	reconcileCmd.Flags().Bool("fail-on-drift", false, "Exit non-zero when drift is found")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute cached balances from the ledger",
	Long: `Fold the whole ledger into the company account and every manual driver
balance, compare with the cached values and correct drift unless --report-only
is set. Corrections are written to the audit log.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	reportOnly, _ := cmd.Flags().GetBool("report-only")
	failOnDrift, _ := cmd.Flags().GetBool("fail-on-drift")

	a, err := openApp(cmd.Context(), false, func(p *config.LedgerPolicy) {
		if reportOnly {
			p.ReconcileAutoCorrect = false
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.svcs.Reconciliation.Reconcile(cmd.Context(), nil)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	if report.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "reconciliation skipped: %s\n", report.SkipReason)
		return nil
	}
	if !report.Clean() && failOnDrift {
		return fmt.Errorf("%w: account=%t drivers=%d corrected=%t", errDriftFound,
			report.AccountDrift, len(report.DriverDrifts), report.Corrected)
	}
	return nil
}

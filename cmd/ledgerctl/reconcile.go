package main

import (
	"fmt"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"bitbucket.org/mmdatafocus/cari_backend/workflow"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Audit invoices, delivery notes, cash registers and movements for drift",
	Long: `Runs read-only consistency checks over the ledger and prints every row that
breaks one. Exits non-zero when anything is found so it can gate a cron job.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		findings, err := workflow.RunReconciliationChecks(cmd.Context(), db, config.GetLogger())
		if err != nil {
			return err
		}
		if len(findings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no findings")
			return nil
		}
		if err := printJSON(cmd, findings); err != nil {
			return err
		}
		return fmt.Errorf("%d reconciliation findings", len(findings))
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

package main

import (
	"fmt"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"bitbucket.org/mmdatafocus/cari_backend/workflow"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print a customer's current-account balance",
	Example: `  ledgerctl balance --customer 42
  ledgerctl balance --customer 42 --as-of 2026-09-30`,
	RunE: runBalance,
}

var statementCmd = &cobra.Command{
	Use:   "statement",
	Short: "Print a customer's movements with running balance",
	Example: `  ledgerctl statement --customer 42 --from 2026-10-01 --to 2026-10-31 --opening`,
	RunE:    runStatement,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(statementCmd)

	balanceCmd.Flags().Int("customer", 0, "Customer id (required)")
	balanceCmd.Flags().String("as-of", "", "Only count movements dated on or before this day (YYYY-MM-DD)")
	_ = balanceCmd.MarkFlagRequired("customer")

	statementCmd.Flags().Int("customer", 0, "Customer id (required)")
	statementCmd.Flags().String("from", "", "First movement date (YYYY-MM-DD)")
	statementCmd.Flags().String("to", "", "Last movement date (YYYY-MM-DD)")
	statementCmd.Flags().Bool("opening", false, "Seed the running balance with the balance before --from")
	_ = statementCmd.MarkFlagRequired("customer")
}

func accountService() (*workflow.AccountService, error) {
	db, err := connect()
	if err != nil {
		return nil, err
	}
	return workflow.NewAccountService(db, config.GetLogger()), nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	customerId, _ := cmd.Flags().GetInt("customer")
	asOfStr, _ := cmd.Flags().GetString("as-of")

	asOf, err := utils.ParseOptionalDate(asOfStr)
	if err != nil {
		return fmt.Errorf("invalid --as-of %q: use YYYY-MM-DD", asOfStr)
	}
	accounts, err := accountService()
	if err != nil {
		return err
	}
	summary, err := accounts.Summary(cmd.Context(), customerId, asOf)
	if err != nil {
		return err
	}
	return printJSON(cmd, summary)
}

func runStatement(cmd *cobra.Command, args []string) error {
	customerId, _ := cmd.Flags().GetInt("customer")
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	opening, _ := cmd.Flags().GetBool("opening")

	query := workflow.StatementQuery{CustomerId: customerId, IncludeOpening: opening}
	var err error
	if query.StartDate, err = utils.ParseOptionalDate(fromStr); err != nil {
		return fmt.Errorf("invalid --from %q: use YYYY-MM-DD", fromStr)
	}
	if query.EndDate, err = utils.ParseOptionalDate(toStr); err != nil {
		return fmt.Errorf("invalid --to %q: use YYYY-MM-DD", toStr)
	}

	accounts, err := accountService()
	if err != nil {
		return err
	}
	statement, err := accounts.Statement(cmd.Context(), query)
	if err != nil {
		return err
	}
	return printJSON(cmd, statement)
}

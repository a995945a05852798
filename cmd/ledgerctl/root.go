package main

import (
	"encoding/json"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operations tooling for the current-account ledger",
	Long: `ledgerctl runs maintenance tasks against the ledger database configured
through the same DB_* environment variables (or .env) the API server uses.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		config.GetLogger().WithField("field", "ledgerctl").Error(err.Error())
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func connect() (*gorm.DB, error) {
	db := config.ConnectDatabaseWithRetry()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return db, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

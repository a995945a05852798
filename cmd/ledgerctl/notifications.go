package main

import (
	"fmt"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"bitbucket.org/mmdatafocus/cari_backend/workflow"
	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Inspect and retry ledger notifications",
}

var notificationsRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Send failed notifications that are due, once",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		logger := config.GetLogger()
		settings := config.LoadSettings()

		var mailer workflow.Mailer = workflow.LogMailer{Logger: logger}
		if settings.NotificationTopic != "" {
			mailer = workflow.PubSubMailer{Topic: settings.NotificationTopic}
			defer config.ClosePubSub()
		}
		dispatcher := workflow.NewNotificationDispatcher(db, logger, mailer, settings)
		if batch, _ := cmd.Flags().GetInt("batch-size"); batch > 0 {
			dispatcher.BatchSize = batch
		}

		attempted := dispatcher.RetryOnce(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "attempted %d notifications\n", attempted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.AddCommand(notificationsRetryCmd)

	notificationsRetryCmd.Flags().Int("batch-size", 50, "Maximum notifications claimed in this pass")
}

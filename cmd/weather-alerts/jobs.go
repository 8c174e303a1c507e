package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mr1hm/go-weather-alerts/internal/ingestion"
	"github.com/mr1hm/go-weather-alerts/internal/retention"
)

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingest tick against the alert feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app) error {
				in := ingestion.NewIngestor(ingestion.NewNWSClient(a.cfg.Feed), a.store, a.dispatcher, nil)
				summary, err := in.IngestOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "items_seen=%d alerts_created=%d skipped=%d\n",
					summary.ItemsSeen, summary.AlertsCreated, summary.Skipped)
				return nil
			})
		},
	}
}

func expireCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Delete alerts older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app) error {
				if !cmd.Flags().Changed("days") {
					days = a.cfg.Schedule.RetentionDays
				}
				deleted, err := retention.NewSweeper(a.store, days).ExpireOlderThan(ctx, days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted_count=%d\n", deleted)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Retention window in days (defaults to RETENTION_DAYS)")
	return cmd
}

func notifyTestCmd() *cobra.Command {
	var userID, title, body string
	cmd := &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test notification to one recipient",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app) error {
				sent, err := a.dispatcher.DispatchDirect(ctx, userID, title, body)
				if err != nil {
					return err
				}
				if !sent {
					return fmt.Errorf("notification to %s was not delivered", userID)
				}
				slog.Info("test notification sent", "user_id", userID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Recipient id")
	cmd.Flags().StringVar(&title, "title", "", "Notification title")
	cmd.Flags().StringVar(&body, "body", "", "Notification body")
	cmd.MarkFlagRequired("user")
	return cmd
}

func registerTokenCmd() *cobra.Command {
	var userID, token string
	cmd := &cobra.Command{
		Use:   "register-token",
		Short: "Register or replace the push token of a recipient",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app) error {
				if err := a.store.RegisterPushToken(ctx, userID, token); err != nil {
					return err
				}
				slog.Info("push token registered", "user_id", userID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Recipient id")
	cmd.Flags().StringVar(&token, "token", "", "FCM registration token")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("token")
	return cmd
}

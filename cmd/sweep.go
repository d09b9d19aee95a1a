package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"example.com/backstage/services/rental/internal/core"
)

var sweepAsOf string

var sweepCmd = &cobra.Command{
	Use:   "sweep-overdue",
	Short: "Mark rent payments past their grace period as late",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf := time.Now().UTC()
		if sweepAsOf != "" {
			t, err := time.Parse("2006-01-02", sweepAsOf)
			if err != nil {
				return fmt.Errorf("invalid --as-of date: %w", err)
			}
			asOf = t
		}

		rt, err := openRuntime(runtimeOptions{cache: true, messaging: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		marked, err := rt.services.Tenancy.SweepOverdue(context.Background(), asOf)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		logger.WithField("marked_late", marked).Info("Overdue sweep completed")
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "generate-schedule [tenant-id]",
	Short: "Generate missing rent payment rows for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid tenant id: %w", err)
		}

		rt, err := openRuntime(runtimeOptions{cache: true, messaging: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		payments, err := rt.services.Tenancy.GeneratePaymentSchedule(context.Background(), core.SystemSession("cli"), tenantID)
		if err != nil {
			return fmt.Errorf("schedule generation failed: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"created":   len(payments),
		}).Info("Payment schedule generated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(scheduleCmd)

	sweepCmd.Flags().StringVar(&sweepAsOf, "as-of", "", "Evaluate lateness as of this date (YYYY-MM-DD, default today)")
}

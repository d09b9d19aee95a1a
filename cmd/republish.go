// services/rental/cmd/republish.go
package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	republishLimit  int
	republishDryRun bool
)

var republishCmd = &cobra.Command{
	Use:   "republish",
	Short: "Republish outbox events to the message bus",
	Long: `Republish domain events that were recorded but never delivered to Service Bus.
This command is useful for recovering from queue outages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepublish()
	},
}

func init() {
	rootCmd.AddCommand(republishCmd)

	republishCmd.Flags().IntVarP(&republishLimit, "limit", "l", 1000, "Maximum number of events to process")
	republishCmd.Flags().BoolVar(&republishDryRun, "dry-run", false, "Show what would be republished without actually sending")
}

func runRepublish() error {
	logger.Info("Starting outbox republish...")

	rt, err := openRuntime(runtimeOptions{messaging: !republishDryRun})
	if err != nil {
		return err
	}
	defer rt.Close()

	stats, err := rt.services.Events.Republish(context.Background(), republishLimit, republishDryRun)
	if err != nil {
		return fmt.Errorf("republish failed: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"found":     stats.Found,
		"published": stats.Published,
		"failed":    stats.Failed,
		"dry_run":   republishDryRun,
	}).Info("Republish completed")

	if stats.Failed > 0 {
		logger.Warnf("Failed to republish %d events", stats.Failed)
	}
	return nil
}

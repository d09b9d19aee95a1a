// services/rental/cmd/migrate.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/backstage/services/rental/internal/core"
	"example.com/backstage/services/rental/internal/infrastructure"
)

var migrateAdminEmail string

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Applies all pending database migrations to ensure the schema is up to date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&migrateAdminEmail, "promote-admin", "", "Email of an existing user to grant the admin role")
}

func runMigrations() error {
	logger.Info("Running database migrations...")

	db, err := infrastructure.NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	for _, model := range core.Models() {
		if err := db.Migrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
		logger.Infof("Migrated %T", model)
	}

	if migrateAdminEmail != "" {
		if err := promoteAdmin(db, migrateAdminEmail); err != nil {
			return err
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// promoteAdmin grants the admin role. Admins cannot sign up, so the first
// one is made here.
func promoteAdmin(db *infrastructure.Database, email string) error {
	result := db.DB.Model(&core.User{}).
		Where("lower(email) = lower(?)", email).
		Update("role", core.RoleAdmin)
	if result.Error != nil {
		return fmt.Errorf("failed to promote admin: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no user with email %s", email)
	}
	logger.WithField("email", email).Info("Granted admin role")
	return nil
}

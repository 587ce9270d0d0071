package system

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/autodealer/dealer_backend/pkg/authorize"
	"github.com/autodealer/dealer_backend/pkg/database"
)

func NewMigrateCommand() *cobra.Command {
	var skipPolicies bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the conversation tables and seed RBAC policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cfg)
			defer cancel()

			client, err := database.NewEntClient(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to create ent client: %w", err)
			}
			defer client.Close()

			slog.Info("migrating conversation store", "safe_mode", cfg.Database.Migrations.SafeMode)
			if err := database.MigrateEnt(ctx, client, cfg.Database.Migrations.SafeMode); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			if skipPolicies {
				fmt.Println("Migrations executed, policies untouched.")
				return nil
			}

			auth, cleanup, err := openPolicyStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup(ctx)

			if err := authorize.SeedDefaultPolicies(ctx, auth); err != nil {
				return fmt.Errorf("failed to seed policies: %w", err)
			}

			fmt.Println("Migrations executed successfully.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipPolicies, "skip-policies", false, "only migrate tables, leave Casbin policies as they are")
	return cmd
}

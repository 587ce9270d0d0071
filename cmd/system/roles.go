package system

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/autodealer/dealer_backend/pkg/authorize"
	"github.com/autodealer/dealer_backend/pkg/database"
)

func NewSyncRolesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-roles",
		Short: "Grant every user the Casbin role matching users.role",
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

			auth, cleanup, err := openPolicyStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup(ctx)

			users, err := client.User.All(ctx)
			if err != nil {
				return err
			}

			var synced, skipped int
			for _, u := range users {
				if err := authorize.AssignUserRole(ctx, auth, u.ID.String(), u.Role); err != nil {
					slog.Warn("skipping user", "user_id", u.ID, "role", u.Role, "error", err)
					skipped++
					continue
				}
				synced++
			}

			fmt.Printf("Roles synced: %d users, %d skipped.\n", synced, skipped)
			return nil
		},
	}
}

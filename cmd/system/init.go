package system

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autodealer/dealer_backend/pkg/database"
)

func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the conversation and policy databases if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cfg)
			defer cancel()

			created, err := database.EnsureDatabases(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize databases: %w", err)
			}
			if len(created) == 0 {
				fmt.Println("Databases already exist.")
				return nil
			}
			fmt.Printf("Created databases: %s\n", strings.Join(created, ", "))
			return nil
		},
	}
}

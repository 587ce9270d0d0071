package system

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/autodealer/dealer_backend/pkg/authorize"
	pasetotoken "github.com/autodealer/dealer_backend/pkg/paseto"
)

// NewIssueTokenCommand mints an access token for local testing of the REST
// and socket endpoints. It needs signing material: local_key_hex or
// secret_key_hex.
func NewIssueTokenCommand() *cobra.Command {
	var (
		userID string
		role   string
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint a development access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Server.Environment == "production" {
				return fmt.Errorf("issue-token is disabled in production")
			}

			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user: %w", err)
			}
			if _, ok := authorize.RoleForUserRole(role); !ok {
				return fmt.Errorf("--role: unknown role %q", role)
			}

			mgr, err := pasetotoken.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			tok, err := mgr.IssueAccess(id, role, nil)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (uuid)")
	cmd.Flags().StringVar(&role, "role", "client", "client, agent, manager or admin")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

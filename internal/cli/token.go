package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/service"
)

// TokenCmd returns the token command.
func TokenCmd() *cobra.Command {
	var (
		secret     string
		username   string
		role       string
		businessID uint
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the BFF",
		Long: `Issue an HS256 token signed with JWT_SECRET. Useful for local runs and
for operators calling the API directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("a secret is required (--secret or JWT_SECRET)")
			}
			tok, err := service.NewTokenService(secret, ttl).Issue(domain.Principal{
				Username:   username,
				Role:       role,
				BusinessID: businessID,
			})
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default JWT_SECRET)")
	cmd.Flags().StringVar(&username, "username", "operator", "username claim")
	cmd.Flags().StringVar(&role, "role", domain.RoleBusiness, "admin or business")
	cmd.Flags().UintVar(&businessID, "business", 0, "business id (required for the business role)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

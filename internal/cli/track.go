package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/99minutos/shipping-central/internal/core/ports"
	"github.com/99minutos/shipping-central/internal/core/service"
	"github.com/99minutos/shipping-central/internal/infrastructure/backend"
	"github.com/99minutos/shipping-central/internal/infrastructure/config"
)

// TrackCmd returns the track command.
func TrackCmd() *cobra.Command {
	return trackCmd(func(baseURL, token string, timeout time.Duration) ports.TrackingClient {
		return backend.New(backend.Config{BaseURL: baseURL, ServiceToken: token, Timeout: timeout}, zerolog.Nop())
	})
}

func trackCmd(newTracker func(baseURL, token string, timeout time.Duration) ports.TrackingClient) *cobra.Command {
	var (
		baseURL string
		token   string
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "track <tracking-number>",
		Short: "Consult the carrier tracking of a guide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" || token == "" {
				cfg, err := config.Load(cmd.Context())
				if err != nil {
					return err
				}
				if baseURL == "" {
					baseURL = cfg.Backend.URL
				}
				if token == "" {
					token = cfg.Backend.ServiceToken
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			list := service.NewShipmentList(nil, newTracker(baseURL, token, timeout), zerolog.Nop())
			res, err := list.ConsultNow(ctx, args[0])
			if err != nil {
				return fmt.Errorf("track %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			RenderTracking(out, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "platform API base URL (default BACKEND_URL)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (default BACKEND_SERVICE_TOKEN)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")
	return cmd
}

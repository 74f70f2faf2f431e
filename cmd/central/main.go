package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/99minutos/shipping-central/internal/cli"
)

// @title                       Shipping Central API
// @version                     1.0
// @description                 Guide wizard, shipment list, tracking timeline and event relay for 99minutos businesses.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

func main() {
	rootCmd := &cobra.Command{
		Use:   "central",
		Short: "Shipping central BFF and operator tools",
		Long: `central serves the shipping BFF for the business dashboard and offers
operator commands to track guides, search DANE codes and issue tokens.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.TrackCmd())
	rootCmd.AddCommand(cli.DaneCmd())
	rootCmd.AddCommand(cli.TokenCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

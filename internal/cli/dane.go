package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/99minutos/shipping-central/internal/dane"
)

// DaneCmd returns the dane command.
func DaneCmd() *cobra.Command {
	var (
		limit      int
		department string
		resolve    bool
	)

	cmd := &cobra.Command{
		Use:   "dane <query>",
		Short: "Search the DANE municipality table",
		Long: `Search municipalities by city or department prefix. Accents are optional.

With --resolve the query is taken as a city name and resolved to exactly one
code, the way the guide wizard does it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := dane.New("")
			if err != nil {
				return err
			}
			q := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if resolve {
				code, ok := r.Lookup(q, department)
				if !ok {
					return errors.New("no municipality matches " + q)
				}
				e, _ := r.Get(code)
				RenderDane(out, []dane.Entry{e})
				return nil
			}

			if limit <= 0 {
				return fmt.Errorf("limit must be positive")
			}
			RenderDane(out, r.Search(q, limit))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "max results")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "resolve a city to a single code")
	cmd.Flags().StringVar(&department, "department", "", "department used with --resolve")
	return cmd
}

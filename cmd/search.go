package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/ginjaninja78/billing-inquiry/internal/workbook"
	"github.com/spf13/cobra"
)

var searchSuggest bool

// searchCmd looks up bills from the terminal against the configured store.
var searchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Look up bills by account number or name",
	Example: `  billing search "100-001"
  billing search dela cruz juan
  billing search --suggest mar`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		stats, err := a.billing.Load(ctx)
		if err != nil {
			return err
		}

		query := strings.Join(args, " ")
		var results []types.BillingRecord
		if searchSuggest {
			results = a.billing.Suggest(query)
		} else {
			results = a.billing.Search(query)
		}

		if len(results) == 0 {
			fmt.Printf("No bills match %q (%d records, source: %s)\n", query, stats.Count, stats.Source)
			return nil
		}
		return printRecords(results)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().BoolVar(&searchSuggest, "suggest", false, "Show type-ahead suggestions instead of every match")
}

// printRecords writes records as an aligned table on stdout.
func printRecords(records []types.BillingRecord) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT NO\tNAME\tADDRESS\tAMOUNT\tDUE DATE\tAFTER DUE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.AccountNumber,
			r.AccountName,
			r.Address,
			workbook.FormatAmount(r.Amount, 2),
			r.DueDate,
			workbook.FormatAmount(r.AmountAfterDueDate, 2))
	}
	return w.Flush()
}

package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/subtrack/internal/subscription"
)

func listCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show all subscriptions sorted by name",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sess.Refresh(cmd.Context()); err != nil {
				return a.report(cmd, err)
			}
			items := a.sess.View().Items
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No subscriptions yet.")
				return nil
			}

			var total subscription.Price
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tCATEGORY\tACCOUNT\tEMAIL")
			for _, rec := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					rec.ID, rec.Name, rec.Price, rec.Category, rec.AccountHolder, rec.AccountEmail)
				total += rec.Price
			}
			fmt.Fprintf(tw, "\tTOTAL\t%s\t\t\t\n", total)
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the subscriptions as JSON")
	return cmd
}

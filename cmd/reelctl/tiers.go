package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/reelscout/internal"
	"github.com/DukeRupert/reelscout/internal/domain"
)

type tierRow struct {
	ID           domain.TierID `json:"id"`
	Label        string        `json:"label"`
	Clicks       int           `json:"clicks"`
	Searches     int           `json:"searches"`
	MaxFetchSize int           `json:"maxFetchSize"`
	Features     []string      `json:"features"`
	PriceIDs     []string      `json:"priceIds"`
}

func tierRows(table *domain.TierTable) []tierRow {
	var rows []tierRow
	for _, t := range table.Tiers() {
		row := tierRow{
			ID:           t.ID,
			Label:        t.Label,
			Clicks:       t.Quota(domain.QuotaClicks),
			Searches:     t.Quota(domain.QuotaSearches),
			MaxFetchSize: t.MaxFetchSize,
			Features:     []string{},
			PriceIDs:     []string{},
		}
		for _, f := range t.Features.List() {
			row.Features = append(row.Features, string(f))
		}
		for _, p := range t.PriceIDs {
			if p != "" {
				row.PriceIDs = append(row.PriceIDs, p)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func quotaString(q int) string {
	if q == domain.Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(q)
}

// newTiersCmd prints the tier table built from the configured price IDs.
func newTiersCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Show subscription tiers, quotas and price IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := tierRows(domain.NewTierTable(domain.DefaultTiers(internal.PricesFromEnv())))

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIER\tLABEL\tCLICKS/DAY\tSEARCHES/DAY\tMAX FETCH\tFEATURES\tPRICES")
			for _, r := range rows {
				prices := strings.Join(r.PriceIDs, ",")
				if prices == "" {
					prices = "-"
				}
				features := strings.Join(r.Features, ",")
				if features == "" {
					features = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.Label, quotaString(r.Clicks), quotaString(r.Searches), r.MaxFetchSize, features, prices)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"apyscope/internal/logic"
	"apyscope/pkg/apy"
)

func (a *app) sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List known sources; defaults are marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults := make(map[string]bool)
			for _, s := range a.svcCtx.SourcesConfig.Defaults.Sources {
				defaults[s] = true
			}
			for _, s := range a.svcCtx.Pipeline.Sources() {
				mark := " "
				if defaults[s] {
					mark = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, s)
			}
			return nil
		},
	}
}

func (a *app) marketsCmd() *cobra.Command {
	var sources string
	cmd := &cobra.Command{
		Use:   "markets",
		Short: "List the merged market catalog sorted by TVL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := a.sourcesOrDefault(logic.SplitList(sources))
			markets, err := a.svcCtx.Pipeline.Catalog(cmd.Context(), list)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tID\tTVL_USD")
			for _, m := range markets {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Key, m.ID, m.TotalValueLockedUSD.StringFixed(2))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if dups := apy.DuplicateKeys(markets); len(dups) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d ambiguous market keys\n", len(dups))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sources, "sources", "", "comma separated sources (default: configured defaults)")
	return cmd
}

func (a *app) ratesCmd() *cobra.Command {
	var (
		sources string
		markets []string
		start   string
		end     string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Fetch daily rates of selected markets",
		Long: `Fetch daily rates of the selected markets over an inclusive date window.
Without --out a per market and apy kind summary is printed; with --out the raw
table, incomplete rows included, is written as CSV ("-" for stdout).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := apy.ParseDateRange(start, end, time.Now())
			if err != nil {
				return err
			}
			keys := markets
			if len(keys) == 0 {
				keys = a.svcCtx.SourcesConfig.Defaults.Markets
			}
			sel := apy.Selection{
				Sources: a.sourcesOrDefault(logic.SplitList(sources)),
				Markets: keys,
				Window:  window,
			}
			table, err := a.svcCtx.Pipeline.Rates(cmd.Context(), sel)
			if err != nil {
				return err
			}

			switch out {
			case "":
				return writeSummary(cmd.OutOrStdout(), table, window)
			case "-":
				return apy.WriteCSV(cmd.OutOrStdout(), table)
			default:
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := apy.WriteCSV(f, table); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", table.Len(), out)
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&sources, "sources", "", "comma separated sources (default: configured defaults)")
	cmd.Flags().StringArrayVar(&markets, "markets", nil, `market key "<source>: <name>", repeatable (default: configured defaults)`)
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD (default: ten days ago)")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the raw table as CSV to this file")
	return cmd
}

func (a *app) sourcesOrDefault(sources []string) []string {
	if len(sources) > 0 {
		return sources
	}
	return a.svcCtx.SourcesConfig.Defaults.Sources
}

func writeSummary(w io.Writer, table *apy.RateTable, window apy.DateRange) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "window %s, %d rows, %d incomplete\n", window, table.Len(), table.Incomplete)
	fmt.Fprintln(tw, "MARKET\tAPY_KIND\tDAYS\tMIN\tMAX\tMEAN")
	for _, market := range table.Markets() {
		for _, kind := range table.Kinds() {
			rows := table.Filter(market, kind)
			if len(rows) == 0 {
				continue
			}
			lo, hi, sum := rows[0].APY.Decimal, rows[0].APY.Decimal, decimal.Zero
			for _, r := range rows {
				v := r.APY.Decimal
				lo, hi = decimal.Min(lo, v), decimal.Max(hi, v)
				sum = sum.Add(v)
			}
			mean := sum.Div(decimal.NewFromInt(int64(len(rows))))
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
				market, kind, len(rows), lo.StringFixed(2), hi.StringFixed(2), mean.StringFixed(2))
		}
	}
	return tw.Flush()
}

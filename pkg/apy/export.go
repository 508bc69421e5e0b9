package apy

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"apyscope/pkg/subgraph"
)

// ExportFilename is the suggested download name of the raw rate export.
const ExportFilename = "rates.csv"

// ExportColumns is the header row of the raw export, in column order.
var ExportColumns = []string{
	subgraph.ColSnapshotTimestamp,
	subgraph.ColSnapshotID,
	subgraph.ColSnapshotMarketName,
	subgraph.ColSnapshotMarketID,
	subgraph.ColSnapshotAssetSymbol,
	subgraph.ColRateID,
	subgraph.ColRateValue,
	subgraph.ColRateType,
	subgraph.ColRateSide,
	"subgraph",
	"datetime",
	"apy_kind",
	"apy",
	"market",
}

const exportTimeLayout = "2006-01-02 15:04:05"

// WriteCSV writes every row of t, incomplete ones included, as UTF-8 CSV
// with a header row.
func WriteCSV(w io.Writer, t *RateTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return fmt.Errorf("apy: write csv header: %w", err)
	}
	if t != nil {
		for _, r := range t.Rows {
			if err := cw.Write(record(r)); err != nil {
				return fmt.Errorf("apy: write csv row %s: %w", r.SnapshotID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(r Observation) []string {
	rate, apy := "", ""
	if r.Rate.Valid {
		rate = r.Rate.Decimal.String()
	}
	if r.APY.Valid {
		apy = r.APY.Decimal.String()
	}
	return []string{
		strconv.FormatInt(r.Timestamp, 10),
		r.SnapshotID,
		r.MarketName,
		r.MarketID,
		r.AssetSymbol,
		r.RateID,
		rate,
		r.Type,
		r.Side,
		r.Source,
		r.Datetime.UTC().Format(exportTimeLayout),
		r.APYKind,
		apy,
		r.Market,
	}
}

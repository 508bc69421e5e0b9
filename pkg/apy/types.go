// Package apy turns per-source subgraph results into the merged market catalog
// and the analysis-ready rate table consumed by charts and CSV export.
package apy

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidWindow is returned for unparsable or inverted date windows.
var ErrInvalidWindow = errors.New("apy: invalid date window")

// KeySeparator joins source and market name into the composite market key.
const KeySeparator = ": "

// Market is one lending market within one source.
type Market struct {
	Source              string          `json:"subgraph" msgpack:"source"`
	ID                  string          `json:"markets_id" msgpack:"id"`
	Name                string          `json:"markets_name" msgpack:"name"`
	TotalValueLockedUSD decimal.Decimal `json:"markets_totalValueLockedUSD" msgpack:"tvl"`
	Key                 string          `json:"key" msgpack:"key"`
}

// MarketKey builds the composite selection key for a market.
func MarketKey(source, name string) string {
	return source + KeySeparator + name
}

// RateSnapshot is one (daily snapshot, rate) pair. A snapshot without rates
// is kept as a single row with empty rate fields.
type RateSnapshot struct {
	Source      string              `json:"subgraph" msgpack:"source"`
	SnapshotID  string              `json:"snapshot_id" msgpack:"snapshot_id"`
	Timestamp   int64               `json:"timestamp" msgpack:"ts"`
	MarketID    string              `json:"market_id" msgpack:"market_id"`
	MarketName  string              `json:"market_name" msgpack:"market_name"`
	AssetSymbol string              `json:"asset_symbol" msgpack:"asset_symbol"`
	RateID      string              `json:"rate_id,omitempty" msgpack:"rate_id"`
	Rate        decimal.NullDecimal `json:"rate" msgpack:"rate"`
	Side        string              `json:"side,omitempty" msgpack:"side"`
	Type        string              `json:"type,omitempty" msgpack:"type"`
}

// Observation is a merged rate row with the derived analysis fields.
type Observation struct {
	RateSnapshot
	Datetime time.Time           `json:"datetime" msgpack:"datetime"`
	APYKind  string              `json:"apy_kind,omitempty" msgpack:"apy_kind"`
	APY      decimal.NullDecimal `json:"apy" msgpack:"apy"`
	Market   string              `json:"market" msgpack:"market"`
}

// Complete reports whether the row has everything a chart needs.
func (o Observation) Complete() bool {
	return o.APYKind != "" && o.APY.Valid
}

// MarketSource yields the market catalog of a single source.
type MarketSource interface {
	Markets(ctx context.Context, source string) ([]Market, error)
}

// RateSource yields rate snapshots of selected markets of a single source.
type RateSource interface {
	RateSnapshots(ctx context.Context, source string, marketIDs []string, window DateRange) ([]RateSnapshot, error)
}

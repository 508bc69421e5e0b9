package subgraph

import (
	"context"
	"time"
)

// Messari lending schema entities and caps.
const (
	EntityMarkets              = "markets"
	EntityMarketDailySnapshots = "marketDailySnapshots"

	MarketsCap   = 10_000
	SnapshotsCap = 100_000
)

// Flat column names produced by FetchMarkets.
const (
	ColMarketName = "markets_name"
	ColMarketTVL  = "markets_totalValueLockedUSD"
	ColMarketID   = "markets_id"
)

// Flat column names produced by FetchRateSnapshots.
const (
	ColSnapshotTimestamp   = "marketDailySnapshots_timestamp"
	ColSnapshotID          = "marketDailySnapshots_id"
	ColSnapshotMarketName  = "marketDailySnapshots_market_name"
	ColSnapshotMarketID    = "marketDailySnapshots_market_id"
	ColSnapshotAssetSymbol = "marketDailySnapshots_market_inputToken_symbol"
	ColRateID              = "marketDailySnapshots_rates_id"
	ColRateValue           = "marketDailySnapshots_rates_rate"
	ColRateType            = "marketDailySnapshots_rates_type"
	ColRateSide            = "marketDailySnapshots_rates_side"
)

// MarketsQuery lists every market of a deployment, most recent first.
func MarketsQuery() Query {
	return Query{
		Entity:         EntityMarkets,
		OrderBy:        "timestamp",
		OrderDirection: OrderDesc,
		First:          MarketsCap,
		Fields:         []string{"name", "totalValueLockedUSD", "id"},
	}
}

// RateSnapshotsQuery selects daily snapshots of the given markets whose
// timestamp falls between the UTC midnights of start and end, inclusive.
func RateSnapshotsQuery(marketIDs []string, start, end time.Time) Query {
	ids := make([]string, len(marketIDs))
	copy(ids, marketIDs)
	return Query{
		Entity:         EntityMarketDailySnapshots,
		OrderBy:        "timestamp",
		OrderDirection: OrderDesc,
		First:          SnapshotsCap,
		Where: []Condition{
			{Field: "timestamp", Op: OpLTE, Value: DayStart(end).Unix()},
			{Field: "timestamp", Op: OpGTE, Value: DayStart(start).Unix()},
			{Field: "market", Op: OpIn, Value: ids},
		},
		Fields: []string{
			"timestamp",
			"id",
			"market.name",
			"market.id",
			"market.inputToken.symbol",
			"rates.id",
			"rates.rate",
			"rates.type",
			"rates.side",
		},
	}
}

// FetchMarkets returns the market catalog of one source.
func (c *Client) FetchMarkets(ctx context.Context, source string) (*Table, error) {
	return c.Query(ctx, source, MarketsQuery())
}

// FetchRateSnapshots returns daily rate snapshots for marketIDs within [start, end].
func (c *Client) FetchRateSnapshots(ctx context.Context, source string, marketIDs []string, start, end time.Time) (*Table, error) {
	return c.Query(ctx, source, RateSnapshotsQuery(marketIDs, start, end))
}

// DayStart returns UTC midnight of t's calendar date.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

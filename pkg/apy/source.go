package apy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"apyscope/pkg/subgraph"
)

// SubgraphSource adapts a subgraph client to MarketSource and RateSource.
type SubgraphSource struct {
	Client *subgraph.Client
}

// NewSubgraphSource wraps client.
func NewSubgraphSource(client *subgraph.Client) *SubgraphSource {
	return &SubgraphSource{Client: client}
}

// Markets fetches and decodes the catalog of source.
func (s *SubgraphSource) Markets(ctx context.Context, source string) ([]Market, error) {
	table, err := s.Client.FetchMarkets(ctx, source)
	if err != nil {
		return nil, err
	}
	return MarketsFromTable(source, table)
}

// RateSnapshots fetches and decodes the daily snapshots of marketIDs.
func (s *SubgraphSource) RateSnapshots(ctx context.Context, source string, marketIDs []string, window DateRange) ([]RateSnapshot, error) {
	table, err := s.Client.FetchRateSnapshots(ctx, source, marketIDs, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	return SnapshotsFromTable(source, table)
}

// MarketsFromTable decodes a markets table and tags every row with source.
func MarketsFromTable(source string, t *subgraph.Table) ([]Market, error) {
	out := make([]Market, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		id, _ := t.String(i, subgraph.ColMarketID)
		name, _ := t.String(i, subgraph.ColMarketName)
		tvl := decimal.Zero
		if raw, ok := t.String(i, subgraph.ColMarketTVL); ok && strings.TrimSpace(raw) != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: market %s tvl %q: %v", subgraph.ErrSchemaMismatch, id, raw, err)
			}
			tvl = d
		}
		out = append(out, Market{
			Source:              source,
			ID:                  id,
			Name:                name,
			TotalValueLockedUSD: tvl,
			Key:                 MarketKey(source, name),
		})
	}
	return out, nil
}

// SnapshotsFromTable decodes a daily snapshot table and tags every row with source.
func SnapshotsFromTable(source string, t *subgraph.Table) ([]RateSnapshot, error) {
	out := make([]RateSnapshot, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		row := RateSnapshot{Source: source}
		row.SnapshotID, _ = t.String(i, subgraph.ColSnapshotID)
		row.MarketID, _ = t.String(i, subgraph.ColSnapshotMarketID)
		row.MarketName, _ = t.String(i, subgraph.ColSnapshotMarketName)
		row.AssetSymbol, _ = t.String(i, subgraph.ColSnapshotAssetSymbol)
		row.RateID, _ = t.String(i, subgraph.ColRateID)
		row.Side, _ = t.String(i, subgraph.ColRateSide)
		row.Type, _ = t.String(i, subgraph.ColRateType)

		rawTS, ok := t.String(i, subgraph.ColSnapshotTimestamp)
		if !ok {
			return nil, fmt.Errorf("%w: snapshot %s has no timestamp", subgraph.ErrSchemaMismatch, row.SnapshotID)
		}
		ts, err := strconv.ParseInt(rawTS, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: snapshot %s timestamp %q: %v", subgraph.ErrSchemaMismatch, row.SnapshotID, rawTS, err)
		}
		row.Timestamp = ts

		if raw, ok := t.String(i, subgraph.ColRateValue); ok && strings.TrimSpace(raw) != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: rate %s value %q: %v", subgraph.ErrSchemaMismatch, row.RateID, raw, err)
			}
			row.Rate = decimal.NewNullDecimal(d)
		}
		out = append(out, row)
	}
	return out, nil
}

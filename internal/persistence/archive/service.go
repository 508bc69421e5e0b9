// Package archive records fetched catalogs and rate snapshots in Postgres.
package archive

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"apyscope/pkg/apy"
)

const upsertMarketStmt = `
INSERT INTO public.apy_markets (
    source, market_id, name, tvl_usd, fetched_at
) VALUES (
    $1, $2, $3, $4, $5
)
ON CONFLICT (source, market_id) DO UPDATE SET
    name = EXCLUDED.name,
    tvl_usd = EXCLUDED.tvl_usd,
    fetched_at = EXCLUDED.fetched_at;`

const upsertRateStmt = `
INSERT INTO public.apy_rates (
    source, snapshot_id, rate_id, market_id, market_name, asset_symbol, ts, rate, side, rate_type, fetched_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (source, snapshot_id, rate_id) DO UPDATE SET
    market_name = EXCLUDED.market_name,
    asset_symbol = EXCLUDED.asset_symbol,
    rate = EXCLUDED.rate,
    side = EXCLUDED.side,
    rate_type = EXCLUDED.rate_type,
    fetched_at = EXCLUDED.fetched_at;`

// Service implements the archive hooks on top of a Postgres connection.
type Service struct {
	conn sqlx.SqlConn
	now  func() time.Time
}

// Config enumerates dependencies required to archive data.
type Config struct {
	SQLConn sqlx.SqlConn
	Now     func() time.Time
}

// NewService wires an archive service. Returns nil when no connection is given.
func NewService(cfg Config) *Service {
	if cfg.SQLConn == nil {
		return nil
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{conn: cfg.SQLConn, now: now}
}

// ArchiveMarkets upserts a source catalog in one transaction.
func (s *Service) ArchiveMarkets(ctx context.Context, source string, markets []apy.Market) error {
	if s == nil || s.conn == nil || len(markets) == 0 {
		return nil
	}
	fetchedAt := s.now().UTC()
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, m := range markets {
			if strings.TrimSpace(m.ID) == "" {
				continue
			}
			if _, err := session.ExecCtx(ctx, upsertMarketStmt,
				source,
				m.ID,
				sql.NullString{String: m.Name, Valid: m.Name != ""},
				m.TotalValueLockedUSD,
				fetchedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logx.WithContext(ctx).Infof("archive: stored %d markets source=%s", len(markets), source)
	return nil
}

// ArchiveRates upserts rate snapshot rows in one transaction. Snapshots without
// rates are stored with an empty rate id.
func (s *Service) ArchiveRates(ctx context.Context, source string, rows []apy.RateSnapshot) error {
	if s == nil || s.conn == nil || len(rows) == 0 {
		return nil
	}
	fetchedAt := s.now().UTC()
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, r := range rows {
			if strings.TrimSpace(r.SnapshotID) == "" {
				continue
			}
			if _, err := session.ExecCtx(ctx, upsertRateStmt,
				source,
				r.SnapshotID,
				r.RateID,
				r.MarketID,
				nullString(r.MarketName),
				nullString(r.AssetSymbol),
				time.Unix(r.Timestamp, 0).UTC(),
				r.Rate,
				nullString(r.Side),
				nullString(r.Type),
				fetchedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logx.WithContext(ctx).Infof("archive: stored %d rate rows source=%s", len(rows), source)
	return nil
}

// CountRates returns the number of archived rate rows of source.
func (s *Service) CountRates(ctx context.Context, source string) (int64, error) {
	if s == nil || s.conn == nil {
		return 0, nil
	}
	var n int64
	err := s.conn.QueryRowCtx(ctx, &n, `SELECT COUNT(*) FROM public.apy_rates WHERE source = $1`, source)
	return n, err
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

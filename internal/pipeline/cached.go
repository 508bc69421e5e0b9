package pipeline

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"apyscope/internal/cache"
	"apyscope/pkg/apy"
	"apyscope/pkg/memo"
)

// Archiver receives every freshly fetched catalog and snapshot batch.
type Archiver interface {
	ArchiveMarkets(ctx context.Context, source string, markets []apy.Market) error
	ArchiveRates(ctx context.Context, source string, rows []apy.RateSnapshot) error
}

// Upstream is the remote side of the pipeline.
type Upstream interface {
	apy.MarketSource
	apy.RateSource
}

// cachedSource memoises per-source calls and feeds the archive on misses.
type cachedSource struct {
	upstream Upstream
	cache    *memo.Cache
	ttl      cache.TTLSet
	archive  Archiver
}

func (s *cachedSource) Markets(ctx context.Context, source string) ([]apy.Market, error) {
	return memo.Do(ctx, s.cache, cache.MarketsKey(source), s.ttl.Markets, func(ctx context.Context) ([]apy.Market, error) {
		markets, err := s.upstream.Markets(ctx, source)
		if err != nil {
			return nil, err
		}
		if s.archive != nil {
			if err := s.archive.ArchiveMarkets(ctx, source, markets); err != nil {
				logx.WithContext(ctx).Errorf("pipeline: archive markets source=%s err=%v", source, err)
			}
		}
		return markets, nil
	})
}

func (s *cachedSource) RateSnapshots(ctx context.Context, source string, marketIDs []string, window apy.DateRange) ([]apy.RateSnapshot, error) {
	key := cache.RatesKey(source, marketIDs, window)
	return memo.Do(ctx, s.cache, key, s.ttl.Rates, func(ctx context.Context) ([]apy.RateSnapshot, error) {
		rows, err := s.upstream.RateSnapshots(ctx, source, marketIDs, window)
		if err != nil {
			return nil, err
		}
		if s.archive != nil {
			if err := s.archive.ArchiveRates(ctx, source, rows); err != nil {
				logx.WithContext(ctx).Errorf("pipeline: archive rates source=%s err=%v", source, err)
			}
		}
		return rows, nil
	})
}

package apy

import (
	"context"
	"sort"

	"github.com/zeromicro/go-zero/core/logx"
)

// Option configures the catalog and history fetchers.
type Option func(*fetchOptions)

type fetchOptions struct {
	parallelism int
}

// WithParallelism bounds the per-source calls in flight. One, the default,
// fetches sources sequentially.
func WithParallelism(n int) Option {
	return func(o *fetchOptions) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

func buildOptions(opts []Option) fetchOptions {
	o := fetchOptions{parallelism: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Catalog lists and unions the markets of several sources.
type Catalog struct {
	src  MarketSource
	opts fetchOptions
}

// NewCatalog constructs a catalog fetcher over src.
func NewCatalog(src MarketSource, opts ...Option) *Catalog {
	return &Catalog{src: src, opts: buildOptions(opts)}
}

// ListMarkets fetches every source's catalog, tags rows with their source,
// concatenates them and sorts by TVL descending. No rows are de-duplicated
// across sources. An empty source list issues no remote call.
func (c *Catalog) ListMarkets(ctx context.Context, sources []string) ([]Market, error) {
	sources = NormalizeSources(sources)
	if len(sources) == 0 {
		return []Market{}, nil
	}

	parts, err := fanOut(ctx, sources, c.opts.parallelism, func(ctx context.Context, source string) ([]Market, error) {
		return c.src.Markets(ctx, source)
	})
	if err != nil {
		return nil, err
	}

	var total int
	for _, p := range parts {
		total += len(p)
	}
	markets := make([]Market, 0, total)
	for i, part := range parts {
		for _, m := range part {
			m.Source = sources[i]
			m.Key = MarketKey(m.Source, m.Name)
			markets = append(markets, m)
		}
	}
	SortByTVL(markets)

	if dups := DuplicateKeys(markets); len(dups) > 0 {
		logx.WithContext(ctx).Infof("apy: catalog has %d ambiguous market keys, e.g. %q", len(dups), dups[0])
	}
	return markets, nil
}

// SortByTVL orders markets by locked value, largest first. Ties keep their
// relative order.
func SortByTVL(markets []Market) {
	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].TotalValueLockedUSD.GreaterThan(markets[j].TotalValueLockedUSD)
	})
}

// DuplicateKeys returns composite keys shared by more than one market, in
// first-seen order. Selection cannot tell such markets apart.
func DuplicateKeys(markets []Market) []string {
	counts := make(map[string]int, len(markets))
	var dups []string
	for _, m := range markets {
		counts[m.Key]++
		if counts[m.Key] == 2 {
			dups = append(dups, m.Key)
		}
	}
	return dups
}

// Package pipeline wires the subgraph fetchers, the cache and the optional
// archive into the two calls the transports need: the merged catalog and the
// merged rate table of a selection.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"apyscope/internal/cache"
	"apyscope/pkg/apy"
	"apyscope/pkg/memo"
	"apyscope/pkg/subgraph"
)

// Config enumerates the pipeline dependencies. Upstream is required.
type Config struct {
	Upstream Upstream
	Cache    *memo.Cache
	TTL      cache.TTLSet
	// Archive is optional; a nil value disables archiving.
	Archive Archiver
	// Sources restricts accepted source names. Empty accepts any name.
	Sources     []string
	Parallelism int
	Now         func() time.Time
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	cache   *memo.Cache
	ttl     cache.TTLSet
	catalog *apy.Catalog
	history *apy.History
	known   map[string]struct{}
	sources []string
	now     func() time.Time
}

// New builds a pipeline.
func New(cfg Config) *Pipeline {
	c := cfg.Cache
	if c == nil {
		c = memo.New(nil)
	}
	src := &cachedSource{upstream: cfg.Upstream, cache: c, ttl: cfg.TTL, archive: cfg.Archive}
	opts := []apy.Option{apy.WithParallelism(cfg.Parallelism)}

	p := &Pipeline{
		cache:   c,
		ttl:     cfg.TTL,
		catalog: apy.NewCatalog(src, opts...),
		history: apy.NewHistory(src, opts...),
		sources: apy.NormalizeSources(cfg.Sources),
		now:     cfg.Now,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if len(p.sources) > 0 {
		p.known = make(map[string]struct{}, len(p.sources))
		for _, s := range p.sources {
			p.known[s] = struct{}{}
		}
	}
	return p
}

// Sources lists the accepted source names, sorted.
func (p *Pipeline) Sources() []string {
	return append([]string(nil), p.sources...)
}

func (p *Pipeline) checkSources(sources []string) error {
	if p.known == nil {
		return nil
	}
	for _, s := range sources {
		if _, ok := p.known[s]; !ok {
			return fmt.Errorf("%w: %s", subgraph.ErrUnknownSource, s)
		}
	}
	return nil
}

// Catalog returns the merged catalog of sources sorted by TVL.
func (p *Pipeline) Catalog(ctx context.Context, sources []string) ([]apy.Market, error) {
	sources = apy.NormalizeSources(sources)
	if len(sources) == 0 {
		return []apy.Market{}, nil
	}
	if err := p.checkSources(sources); err != nil {
		return nil, err
	}
	return memo.Do(ctx, p.cache, cache.CatalogKey(sources), p.ttl.Markets, func(ctx context.Context) ([]apy.Market, error) {
		return p.catalog.ListMarkets(ctx, sources)
	})
}

// Rates resolves sel against the current catalog and returns the merged rate
// table. A zero window falls back to the default lookback ending today.
func (p *Pipeline) Rates(ctx context.Context, sel apy.Selection) (*apy.RateTable, error) {
	sel.Sources = apy.NormalizeSources(sel.Sources)
	if sel.Empty() {
		return &apy.RateTable{Rows: []apy.Observation{}}, nil
	}
	if err := p.checkSources(sel.Sources); err != nil {
		return nil, err
	}
	window := sel.Window
	if window.Start.IsZero() && window.End.IsZero() {
		window = apy.DefaultRange(p.now())
	}
	window = apy.NewDateRange(window.Start, window.End)
	if err := window.Validate(); err != nil {
		return nil, err
	}

	markets, err := p.Catalog(ctx, sel.Sources)
	if err != nil {
		return nil, err
	}
	bySource := sel.Resolve(markets)
	if len(bySource) == 0 {
		return &apy.RateTable{Rows: []apy.Observation{}}, nil
	}

	table, err := memo.Do(ctx, p.cache, cache.SelectionRatesKey(bySource, window), p.ttl.Rates, func(ctx context.Context) (apy.RateTable, error) {
		rows, err := p.history.ListRateSnapshots(ctx, bySource, window)
		if err != nil {
			return apy.RateTable{}, err
		}
		merged := apy.Merge(rows)
		if merged.Incomplete > 0 {
			logx.WithContext(ctx).Infof("pipeline: %d of %d rate rows lack side, type or rate window=%s",
				merged.Incomplete, merged.Len(), window)
		}
		return *merged, nil
	})
	if err != nil {
		return nil, err
	}
	if table.Rows == nil {
		table.Rows = []apy.Observation{}
	}
	// msgpack decodes timestamps in the local zone.
	for i := range table.Rows {
		table.Rows[i].Datetime = table.Rows[i].Datetime.UTC()
	}
	return &table, nil
}

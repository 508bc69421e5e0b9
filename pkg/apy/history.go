package apy

import (
	"context"
	"sort"

	"github.com/zeromicro/go-zero/core/logx"
)

// History fetches rate snapshots for selected markets across sources.
type History struct {
	src  RateSource
	opts fetchOptions
}

// NewHistory constructs a rate history fetcher over src.
func NewHistory(src RateSource, opts ...Option) *History {
	return &History{src: src, opts: buildOptions(opts)}
}

// ListRateSnapshots fetches every source with a non-empty market id list over
// the same window, tags rows with their source and concatenates them.
// Sources with no ids are skipped without a remote call. Rows dated outside
// the window are dropped.
func (h *History) ListRateSnapshots(ctx context.Context, bySource map[string][]string, window DateRange) ([]RateSnapshot, error) {
	sources := make([]string, 0, len(bySource))
	for source, ids := range bySource {
		if len(ids) > 0 {
			sources = append(sources, source)
		}
	}
	if len(sources) == 0 {
		return []RateSnapshot{}, nil
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	sort.Strings(sources)

	parts, err := fanOut(ctx, sources, h.opts.parallelism, func(ctx context.Context, source string) ([]RateSnapshot, error) {
		return h.src.RateSnapshots(ctx, source, bySource[source], window)
	})
	if err != nil {
		return nil, err
	}

	var total int
	for _, p := range parts {
		total += len(p)
	}
	rows := make([]RateSnapshot, 0, total)
	outside := 0
	for i, part := range parts {
		for _, r := range part {
			if !window.Contains(r.Timestamp) {
				outside++
				continue
			}
			r.Source = sources[i]
			rows = append(rows, r)
		}
	}
	if outside > 0 {
		logx.WithContext(ctx).Infof("apy: dropped %d snapshots outside %s", outside, window)
	}
	return rows, nil
}

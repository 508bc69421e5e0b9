package apy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"apyscope/pkg/subgraph"
)

// DateLayout is the calendar date format accepted at the edges.
const DateLayout = "2006-01-02"

// DefaultLookback is the width of the default window ending today.
const DefaultLookback = 10 * 24 * time.Hour

// DateRange is an inclusive window of UTC calendar days.
type DateRange struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// NewDateRange truncates both bounds to UTC midnight.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: subgraph.DayStart(start), End: subgraph.DayStart(end)}
}

// DefaultRange covers today and the ten days before it.
func DefaultRange(now time.Time) DateRange {
	return NewDateRange(now.Add(-DefaultLookback), now)
}

// ParseDateRange parses YYYY-MM-DD bounds. Empty bounds fall back to the
// default window relative to now.
func ParseDateRange(start, end string, now time.Time) (DateRange, error) {
	r := DefaultRange(now)
	if s := strings.TrimSpace(start); s != "" {
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: start date %q", ErrInvalidWindow, start)
		}
		r.Start = t
	}
	if e := strings.TrimSpace(end); e != "" {
		t, err := time.Parse(DateLayout, e)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: end date %q", ErrInvalidWindow, end)
		}
		r.End = t
	}
	r = NewDateRange(r.Start, r.End)
	return r, r.Validate()
}

// Validate rejects windows whose start lies after their end.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: both bounds are required", ErrInvalidWindow)
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow,
			r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return nil
}

// Contains reports whether the UTC date of ts lies inside the window.
func (r DateRange) Contains(ts int64) bool {
	day := subgraph.DayStart(time.Unix(ts, 0).UTC())
	return !day.Before(r.Start) && !day.After(r.End)
}

// String renders the window as start..end.
func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// Selection is the user's choice of sources, composite market keys and window.
type Selection struct {
	Sources []string  `json:"sources"`
	Markets []string  `json:"markets"`
	Window  DateRange `json:"window"`
}

// Empty reports whether nothing downstream needs to run.
func (s Selection) Empty() bool {
	return len(s.Sources) == 0 || len(s.Markets) == 0
}

// Resolve maps the selected keys onto market ids grouped by source, using
// the current catalog. Keys missing from the catalog are ignored, as are
// markets of sources that are not selected.
func (s Selection) Resolve(catalog []Market) map[string][]string {
	out := make(map[string][]string)
	if s.Empty() {
		return out
	}
	keys := make(map[string]struct{}, len(s.Markets))
	for _, k := range s.Markets {
		keys[k] = struct{}{}
	}
	sources := make(map[string]struct{}, len(s.Sources))
	for _, src := range s.Sources {
		sources[src] = struct{}{}
	}

	seen := make(map[string]struct{})
	for _, m := range catalog {
		if _, ok := keys[m.Key]; !ok {
			continue
		}
		if _, ok := sources[m.Source]; !ok {
			continue
		}
		id := m.Source + "\x00" + m.ID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out[m.Source] = append(out[m.Source], m.ID)
	}
	for src := range out {
		sort.Strings(out[src])
	}
	return out
}

// NormalizeSources trims, de-duplicates and sorts source names.
func NormalizeSources(sources []string) []string {
	seen := make(map[string]struct{}, len(sources))
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"apyscope/internal/config"
	"apyscope/pkg/apy"
	"apyscope/pkg/memo"
)

// Namespace is the key prefix shared by every apyscope entry.
const Namespace = "apyscope"

// version bumps invalidate every entry written by older payload layouts.
const version = "v1"

// Key is a typed cache key; only the constructors below produce one.
type Key = memo.Key

// TTLSet holds the effective cache lifetimes.
type TTLSet struct {
	Markets time.Duration
	Rates   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Markets: durationOrDefault(cfg.Markets, 24*time.Hour),
		Rates:   durationOrDefault(cfg.Rates, 24*time.Hour),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func formatKey(parts ...string) Key {
	values := make([]string, 0, len(parts)+2)
	values = append(values, Namespace, version)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			clean = "-"
		}
		values = append(values, clean)
	}
	return Key(strings.Join(values, ":"))
}

// digest canonicalises a set of values: trimmed, de-duplicated, sorted and
// hashed so arbitrarily long id lists give fixed-size keys.
func digest(values []string) string {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(set))
	for v := range set {
		sorted = append(sorted, v)
	}
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(sum[:12])
}

func window(r apy.DateRange) string {
	return r.String()
}

// --- Markets ----------------------------------------------------------------

// MarketsKey caches the catalog of one source.
func MarketsKey(source string) Key {
	return formatKey("markets", source)
}

// CatalogKey caches the merged, sorted catalog of a set of sources.
func CatalogKey(sources []string) Key {
	return formatKey("catalog", digest(sources))
}

// --- Rates ------------------------------------------------------------------

// RatesKey caches the snapshots of a set of markets of one source.
func RatesKey(source string, marketIDs []string, r apy.DateRange) Key {
	return formatKey("rates", source, digest(marketIDs), window(r))
}

// SelectionRatesKey caches the merged rate table of a resolved selection.
func SelectionRatesKey(bySource map[string][]string, r apy.DateRange) Key {
	parts := make([]string, 0, len(bySource))
	for source, ids := range bySource {
		if len(ids) == 0 {
			continue
		}
		parts = append(parts, source+"="+digest(ids))
	}
	return formatKey("table", digest(parts), window(r))
}

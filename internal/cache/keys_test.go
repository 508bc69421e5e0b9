package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"apyscope/internal/config"
	"apyscope/pkg/apy"
)

func testWindow(startDay, endDay int) apy.DateRange {
	return apy.NewDateRange(
		time.Date(2023, 1, startDay, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, endDay, 0, 0, 0, 0, time.UTC),
	)
}

func TestKeysAreNamespaced(t *testing.T) {
	assert.Equal(t, Key("apyscope:v1:markets:aave-v2-ethereum"), MarketsKey("aave-v2-ethereum"))
	assert.True(t, strings.HasPrefix(CatalogKey([]string{"a"}).String(), "apyscope:v1:catalog:"))
}

func TestCollectionArgumentsAreCanonical(t *testing.T) {
	assert.Equal(t, CatalogKey([]string{"b", "a"}), CatalogKey([]string{"a", "b", "a", " b "}))
	assert.NotEqual(t, CatalogKey([]string{"a"}), CatalogKey([]string{"a", "b"}))

	w := testWindow(1, 3)
	assert.Equal(t, RatesKey("s", []string{"0x2", "0x1"}, w), RatesKey("s", []string{"0x1", "0x2"}, w))
	assert.NotEqual(t, RatesKey("s", []string{"0x1"}, w), RatesKey("s", []string{"0x1"}, testWindow(1, 4)))
	assert.NotEqual(t, RatesKey("s", []string{"0x1"}, w), RatesKey("t", []string{"0x1"}, w))
}

func TestFunctionIdentityIsPartOfTheKey(t *testing.T) {
	assert.NotEqual(t, MarketsKey("aave-v2-ethereum"), CatalogKey([]string{"aave-v2-ethereum"}))
}

func TestSelectionRatesKey(t *testing.T) {
	w := testWindow(1, 3)
	a := SelectionRatesKey(map[string][]string{"s1": {"0x1", "0x2"}, "s2": {"0x3"}, "s3": nil}, w)
	b := SelectionRatesKey(map[string][]string{"s2": {"0x3"}, "s1": {"0x2", "0x1"}}, w)
	assert.Equal(t, a, b)
	c := SelectionRatesKey(map[string][]string{"s1": {"0x1", "0x2", "0x3"}}, w)
	assert.NotEqual(t, a, c)
}

func TestNewTTLSet(t *testing.T) {
	ttl := NewTTLSet(config.CacheTTL{})
	assert.Equal(t, 24*time.Hour, ttl.Markets)
	assert.Equal(t, 24*time.Hour, ttl.Rates)

	ttl = NewTTLSet(config.CacheTTL{Markets: 60, Rates: -1})
	assert.Equal(t, time.Minute, ttl.Markets)
	assert.Zero(t, ttl.Rates)
}

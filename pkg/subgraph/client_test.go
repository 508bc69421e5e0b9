package subgraph

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxSkip = 5000

var (
	firstRe    = regexp.MustCompile(`first: (\d+)`)
	skipRe     = regexp.MustCompile(`skip: (\d+)`)
	orderByRe  = regexp.MustCompile(`orderBy: (\w+)`)
	orderDirRe = regexp.MustCompile(`orderDirection: (\w+)`)
	whereRe    = regexp.MustCompile(`where: \{([^}]*)\}`)
)

// mockSubgraph answers entity queries the way Graph Node does for the
// arguments the client sends: where filters on scalar fields, a single order
// field with id as tie breaker, first, and skip capped at 5000.
type mockSubgraph struct {
	markets   []map[string]any
	snapshots []map[string]any
	calls     atomic.Int32
	paths     []string
	docs      []string
}

func (m *mockSubgraph) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.calls.Add(1)
		m.paths = append(m.paths, r.URL.Path)
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		m.docs = append(m.docs, req.Query)

		if sm := skipRe.FindStringSubmatch(req.Query); sm != nil {
			if skip, _ := strconv.Atoi(sm[1]); skip > maxSkip {
				writeJSON(w, map[string]any{"errors": []map[string]any{{
					"message": fmt.Sprintf("The 'skip' argument must be between 0 and %d, but is %d", maxSkip, skip),
				}}})
				return
			}
		}

		var entity string
		var records []map[string]any
		switch {
		case strings.Contains(req.Query, EntityMarketDailySnapshots+"("):
			entity, records = EntityMarketDailySnapshots, m.snapshots
		case strings.Contains(req.Query, EntityMarkets+"("):
			entity, records = EntityMarkets, m.markets
		default:
			t.Fatalf("unexpected query: %s", req.Query)
		}
		writeJSON(w, map[string]any{"data": map[string]any{entity: answer(records, req.Query)}})
	}
}

type filter struct {
	field, op, value string
}

func parseWhere(doc string) []filter {
	m := whereRe.FindStringSubmatch(doc)
	if m == nil {
		return nil
	}
	var out []filter
	for _, part := range strings.Split(m[1], ", ") {
		key, value, ok := strings.Cut(part, ": ")
		if !ok || strings.HasPrefix(value, "[") {
			continue
		}
		f := filter{field: key, value: strings.Trim(value, `"`)}
		for _, op := range []string{"_lte", "_gte", "_lt", "_gt"} {
			if strings.HasSuffix(key, op) {
				f.field, f.op = strings.TrimSuffix(key, op), op
				break
			}
		}
		out = append(out, f)
	}
	return out
}

// compareField orders numeric strings by value and anything else as text.
func compareField(a, b any) int {
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	ai, aerr := strconv.ParseInt(as, 10, 64)
	bi, berr := strconv.ParseInt(bs, 10, 64)
	if aerr == nil && berr == nil {
		return cmp.Compare(ai, bi)
	}
	return strings.Compare(as, bs)
}

func (f filter) match(rec map[string]any) bool {
	c := compareField(rec[f.field], f.value)
	switch f.op {
	case "_lt":
		return c < 0
	case "_gt":
		return c > 0
	case "_lte":
		return c <= 0
	case "_gte":
		return c >= 0
	default:
		return c == 0
	}
}

func answer(records []map[string]any, doc string) []map[string]any {
	filters := parseWhere(doc)
	var out []map[string]any
	for _, rec := range records {
		keep := true
		for _, f := range filters {
			if !f.match(rec) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, rec)
		}
	}

	orderBy := CursorField
	if m := orderByRe.FindStringSubmatch(doc); m != nil {
		orderBy = m[1]
	}
	desc := false
	if m := orderDirRe.FindStringSubmatch(doc); m != nil {
		desc = m[1] == string(OrderDesc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareField(out[i][orderBy], out[j][orderBy])
		if c == 0 {
			// Ties come back in descending id order so the client cannot rely on them.
			return compareField(out[i][CursorField], out[j][CursorField]) > 0
		}
		if desc {
			return c > 0
		}
		return c < 0
	})

	first := len(out)
	if m := firstRe.FindStringSubmatch(doc); m != nil {
		first, _ = strconv.Atoi(m[1])
	}
	if skip := skipRe.FindStringSubmatch(doc); skip != nil {
		n, _ := strconv.Atoi(skip[1])
		out = out[min(n, len(out)):]
	}
	if first < len(out) {
		out = out[:first]
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func newMockClient(t *testing.T, mock *mockSubgraph, opts ...Option) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(mock.handler(t))
	base := []Option{
		WithEndpoint(server.URL + "/messari/" + SourcePlaceholder),
		WithHTTPClient(server.Client()),
		WithSources("aave-v2-ethereum", "aave-v3-polygon"),
	}
	return server, NewClient(append(base, opts...)...)
}

func marketRecords(n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, map[string]any{
			"name":                fmt.Sprintf("market-%d", i),
			"totalValueLockedUSD": fmt.Sprintf("%d.5", i*100),
			"id":                  fmt.Sprintf("0x%02d", i),
			"timestamp":           fmt.Sprint(1672531200 - i*86400),
		})
	}
	return out
}

func TestClientFetchMarkets(t *testing.T) {
	mock := &mockSubgraph{markets: marketRecords(3)}
	server, client := newMockClient(t, mock)
	defer server.Close()

	table, err := client.FetchMarkets(context.Background(), "aave-v2-ethereum")
	require.NoError(t, err)
	require.Equal(t, []string{ColMarketName, ColMarketTVL, ColMarketID}, table.Columns)
	require.Equal(t, 3, table.Len())

	name, ok := table.String(1, ColMarketName)
	require.True(t, ok)
	assert.Equal(t, "market-1", name)
	tvl, _ := table.String(2, ColMarketTVL)
	assert.Equal(t, "200.5", tvl)
	assert.Equal(t, []string{"/messari/aave-v2-ethereum"}, mock.paths)
}

func TestClientPaginatesUntilShortPage(t *testing.T) {
	mock := &mockSubgraph{markets: marketRecords(5)}
	server, client := newMockClient(t, mock, WithPageSize(2))
	defer server.Close()

	table, err := client.FetchMarkets(context.Background(), "aave-v3-polygon")
	require.NoError(t, err)
	require.Equal(t, 5, table.Len())
	for i := 0; i < table.Len(); i++ {
		name, _ := table.String(i, ColMarketName)
		assert.Equal(t, fmt.Sprintf("market-%d", i), name)
	}
	// Each full page is followed by one request for the records sharing its
	// last timestamp.
	assert.EqualValues(t, 5, mock.calls.Load())
	for _, doc := range mock.docs {
		assert.NotContains(t, doc, "skip:")
	}
}

func TestClientStopsAtCap(t *testing.T) {
	mock := &mockSubgraph{markets: marketRecords(5)}
	server, client := newMockClient(t, mock, WithPageSize(2))
	defer server.Close()

	q := MarketsQuery()
	q.First = 3
	table, err := client.Query(context.Background(), "aave-v2-ethereum", q)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	last, _ := table.String(2, ColMarketName)
	assert.Equal(t, "market-2", last)
}

func TestClientPagesPastSkipLimit(t *testing.T) {
	const markets, days = 7, 1000
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	var snapshots []map[string]any
	for d := 0; d < days; d++ {
		ts := start.AddDate(0, 0, d).Unix()
		for m := 0; m < markets; m++ {
			snapshots = append(snapshots, map[string]any{
				"timestamp": fmt.Sprint(ts),
				"id":        fmt.Sprintf("0x%02d-%05d", m, d),
				"market":    map[string]any{"name": "m", "id": fmt.Sprintf("0x%02d", m), "inputToken": map[string]any{"symbol": "USDC"}},
			})
		}
	}
	mock := &mockSubgraph{snapshots: snapshots}
	server, client := newMockClient(t, mock)
	defer server.Close()

	end := start.AddDate(0, 0, days-1)
	table, err := client.FetchRateSnapshots(context.Background(), "aave-v2-ethereum", []string{"0x00"}, start, end)
	require.NoError(t, err)
	require.Equal(t, markets*days, table.Len())

	seen := make(map[string]bool, table.Len())
	prev := end.Unix() + 1
	for i := 0; i < table.Len(); i++ {
		id, _ := table.String(i, ColSnapshotID)
		require.False(t, seen[id], "duplicate snapshot %s", id)
		seen[id] = true

		raw, _ := table.String(i, ColSnapshotTimestamp)
		ts, err := strconv.ParseInt(raw, 10, 64)
		require.NoError(t, err)
		require.LessOrEqual(t, ts, prev, "row %d out of order", i)
		prev = ts
	}
	for _, doc := range mock.docs {
		assert.NotContains(t, doc, "skip:")
	}
}

func TestClientEmptyResultIsNotAnError(t *testing.T) {
	mock := &mockSubgraph{}
	server, client := newMockClient(t, mock)
	defer server.Close()

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	table, err := client.FetchRateSnapshots(context.Background(), "aave-v2-ethereum", []string{"0xabc"}, start, start)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Len(t, table.Columns, 9)
}

func TestClientFetchRateSnapshots(t *testing.T) {
	mock := &mockSubgraph{snapshots: []map[string]any{{
		"timestamp": "1672617600",
		"id":        "0xabc-19358",
		"market": map[string]any{
			"name":       "Aave interest bearing USDC",
			"id":         "0xabc",
			"inputToken": map[string]any{"symbol": "USDC"},
		},
		"rates": []any{
			map[string]any{"id": "r1", "rate": "1.25", "type": "VARIABLE", "side": "LENDER"},
			map[string]any{"id": "r2", "rate": "3.5", "type": "VARIABLE", "side": "BORROWER"},
		},
	}}}
	server, client := newMockClient(t, mock)
	defer server.Close()

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	table, err := client.FetchRateSnapshots(context.Background(), "aave-v2-ethereum", []string{"0xabc"}, start, end)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	ts, ok := table.String(0, ColSnapshotTimestamp)
	require.True(t, ok)
	assert.Equal(t, "1672617600", ts)
	side, _ := table.String(1, ColRateSide)
	assert.Equal(t, "BORROWER", side)
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "http status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad gateway", http.StatusBadGateway)
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "http status 502")
			},
		},
		{
			name: "graphql errors",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"errors": []map[string]any{{"message": "Type `Query` has no field `markets`"}}})
			},
			check: func(t *testing.T, err error) {
				var qe QueryErrors
				require.True(t, errors.As(err, &qe))
				assert.Contains(t, err.Error(), "has no field")
			},
		},
		{
			name: "entity missing",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"data": map[string]any{"pools": []any{}}})
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrSchemaMismatch)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(WithEndpoint(server.URL), WithHTTPClient(server.Client()))
			table, err := client.FetchMarkets(context.Background(), "aave-v2-ethereum")
			require.Error(t, err)
			assert.Nil(t, table)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "aave-v2-ethereum", fe.Source)
			assert.Equal(t, EntityMarkets, fe.Entity)
			tt.check(t, err)
		})
	}
}

func TestClientDoesNotRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(WithEndpoint(server.URL), WithHTTPClient(server.Client()))
	_, err := client.FetchMarkets(context.Background(), "aave-v2-ethereum")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClientRejectsUnknownSource(t *testing.T) {
	mock := &mockSubgraph{}
	server, client := newMockClient(t, mock)
	defer server.Close()

	_, err := client.FetchMarkets(context.Background(), "compound-v2-ethereum")
	assert.ErrorIs(t, err, ErrUnknownSource)
	assert.EqualValues(t, 0, mock.calls.Load())
}

func TestClientSourcesSorted(t *testing.T) {
	client := NewClient(WithSources("aave-v3-polygon", "aave-v2-ethereum"))
	assert.Equal(t, []string{"aave-v2-ethereum", "aave-v3-polygon"}, client.Sources())
	assert.True(t, client.Known("aave-v3-polygon"))
	assert.False(t, client.Known("aave-v3-fantom"))
}

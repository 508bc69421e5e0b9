package apy

import "time"

// RateTable is the unified rate table produced by Merge.
type RateTable struct {
	Rows []Observation `json:"rows"`
	// Incomplete counts rows kept for export but excluded from charts.
	Incomplete int `json:"incomplete_rows"`
}

// Merge concatenates per-source snapshot rows and derives datetime, apy_kind,
// apy and market for each. The row count equals the sum of the inputs.
func Merge(parts ...[]RateSnapshot) *RateTable {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	t := &RateTable{Rows: make([]Observation, 0, total)}
	for _, part := range parts {
		for _, r := range part {
			obs := Derive(r)
			if !obs.Complete() {
				t.Incomplete++
			}
			t.Rows = append(t.Rows, obs)
		}
	}
	return t
}

// Derive computes the analysis fields of one row.
func Derive(r RateSnapshot) Observation {
	obs := Observation{
		RateSnapshot: r,
		Datetime:     time.Unix(r.Timestamp, 0).UTC(),
		APY:          r.Rate,
		Market:       r.Source + KeySeparator + r.AssetSymbol,
	}
	if r.Side != "" && r.Type != "" {
		obs.APYKind = r.Side + "_" + r.Type
	}
	return obs
}

// Len returns the number of rows.
func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Chartable returns the rows that carry a complete apy_kind and an apy value.
func (t *RateTable) Chartable() []Observation {
	if t == nil {
		return nil
	}
	out := make([]Observation, 0, max(len(t.Rows)-t.Incomplete, 0))
	for _, r := range t.Rows {
		if r.Complete() {
			out = append(out, r)
		}
	}
	return out
}

// Kinds lists the distinct apy kinds of chartable rows in first-seen order.
func (t *RateTable) Kinds() []string {
	return distinct(t.Chartable(), func(o Observation) string { return o.APYKind })
}

// Markets lists the distinct market labels of chartable rows in first-seen order.
func (t *RateTable) Markets() []string {
	return distinct(t.Chartable(), func(o Observation) string { return o.Market })
}

// Filter returns the chartable rows of one market label and apy kind, the
// slice a histogram is drawn from.
func (t *RateTable) Filter(market, kind string) []Observation {
	var out []Observation
	for _, r := range t.Chartable() {
		if r.Market == market && r.APYKind == kind {
			out = append(out, r)
		}
	}
	return out
}

func distinct(rows []Observation, field func(Observation) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		v := field(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package types

import "apyscope/pkg/apy"

type SourcesResponse struct {
	Sources        []string `json:"sources"`
	DefaultSources []string `json:"default_sources"`
	DefaultMarkets []string `json:"default_markets"`
}

type MarketsRequest struct {
	Sources string `form:"sources,optional"`
}

type MarketsResponse struct {
	Markets       []apy.Market `json:"markets"`
	Count         int          `json:"count"`
	DuplicateKeys []string     `json:"duplicate_keys,omitempty"`
}

type RatesRequest struct {
	Sources   []string `json:"sources,optional"`
	Markets   []string `json:"markets,optional"`
	StartDate string   `json:"start_date,optional"`
	EndDate   string   `json:"end_date,optional"`
}

type RatesResponse struct {
	StartDate  string            `json:"start_date"`
	EndDate    string            `json:"end_date"`
	Rows       []apy.Observation `json:"rows"`
	Total      int               `json:"total"`
	Incomplete int               `json:"incomplete_rows"`
	Kinds      []string          `json:"apy_kinds"`
	Markets    []string          `json:"markets"`
}

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

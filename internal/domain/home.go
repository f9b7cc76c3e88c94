package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Top-level store nodes that are never homes even when they look like one.
var reservedNodes = map[string]struct{}{
	"users":   {},
	"reviews": {},
}

const (
	// BehavioursField marks a node as a behaviour-tracked home.
	BehavioursField = "behaviours"
	// OverviewMetricsField holds the per-home summary block.
	OverviewMetricsField = "overviewMetrics"
)

// IsReservedNode reports whether a top-level key is reserved for non-home data.
func IsReservedNode(key string) bool {
	_, ok := reservedNodes[key]
	return ok
}

// homeAltNames maps operational home codes to the node name used in the store.
// Unlisted codes are stored under their own name.
var homeAltNames = map[string]string{
	"ONCB":      "oneill",
	"MCB":       "millCreek",
	"berkshire": "berkshire",
	"banwell":   "banwell",
}

// AltName resolves the canonical store node for a home code.
func AltName(home string) string {
	if alt, ok := homeAltNames[home]; ok {
		return alt
	}
	return home
}

// Overview metric categories.
const (
	CategoryAntipsychotics = "antipsychotics"
	CategoryWorsened       = "worsened"
	CategoryImproved       = "improved"
)

// MetricCategories in form/display order.
var MetricCategories = []string{CategoryAntipsychotics, CategoryWorsened, CategoryImproved}

// MetricCategory is one stored category of a home's overview metrics.
type MetricCategory struct {
	Percentage int      `json:"percentage"`
	Change     int      `json:"change"`
	Residents  []string `json:"residents"`
}

// OverviewMetrics keeps each category as raw JSON so categories that are not
// being updated are written back exactly as they were read.
type OverviewMetrics map[string]json.RawMessage

// MetricInput is the raw text submitted for one category.
type MetricInput struct {
	Percentage string
	Change     string
	Residents  string
}

// Present reports whether the category is being set. Only the percentage field decides.
func (in MetricInput) Present() bool { return in.Percentage != "" }

// Category converts the raw text into a stored category.
func (in MetricInput) Category() MetricCategory {
	return MetricCategory{
		Percentage: ParseLenientInt(in.Percentage),
		Change:     ParseLenientInt(in.Change),
		Residents:  ParseResidents(in.Residents),
	}
}

// MetricsUpdate holds the submitted inputs keyed by category.
type MetricsUpdate map[string]MetricInput

// HasAny reports whether at least one category is being set.
func (u MetricsUpdate) HasAny() bool {
	for _, c := range MetricCategories {
		if u[c].Present() {
			return true
		}
	}
	return false
}

// Categories returns the parsed categories that are being set.
func (u MetricsUpdate) Categories() map[string]MetricCategory {
	out := make(map[string]MetricCategory)
	for _, c := range MetricCategories {
		if in := u[c]; in.Present() {
			out[c] = in.Category()
		}
	}
	return out
}

// ParseResidents splits a comma separated list, trimming entries and dropping empties.
// It never returns nil so the stored value is always a JSON array.
func ParseResidents(s string) []string {
	out := make([]string, 0)
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// ParseLenientInt reads a leading optionally-signed integer ("12%" -> 12, " -3" -> -3).
// Anything without leading digits, or out of range, is 0.
func ParseLenientInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

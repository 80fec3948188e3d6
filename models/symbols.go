package models

import "strings"

// DefaultUpstreamSuffix is the exchange suffix the chart and quote providers
// use for Warsaw-listed instruments.
const DefaultUpstreamSuffix = ".WA"

// SymbolTable maps lowercase local symbols to the ticker the upstream
// providers understand. The table is immutable after construction and is
// passed into adapters explicitly so tests can substitute alternate mappings.
type SymbolTable struct {
	overrides map[string]string
	suffix    string
}

// NewSymbolTable builds a table with the given explicit overrides (keyed by
// lowercase local symbol). The overrides map is copied.
func NewSymbolTable(overrides map[string]string) *SymbolTable {
	t := &SymbolTable{
		overrides: make(map[string]string, len(overrides)),
		suffix:    DefaultUpstreamSuffix,
	}
	for k, v := range overrides {
		t.overrides[strings.ToLower(k)] = v
	}
	return t
}

// DefaultSymbolTable returns the table used in production: cross-listed and
// otherwise irregular instruments that do not follow the UPPER.WA rule.
func DefaultSymbolTable() *SymbolTable {
	return NewSymbolTable(map[string]string{
		"wig20":  "WIG20.WA",
		"wig":    "WIG.WA",
		"swig80": "SWIG80.WA",
		"mwig40": "MWIG40.WA",
	})
}

// Upstream derives the provider ticker for a lowercase local symbol.
// Resolution order: explicit override, forex heuristic (six lowercase
// letters, e.g. "eurpln" -> "EURPLN=X"), then the exchange suffix rule.
// Pure function: no I/O and deterministic for the same input.
func (t *SymbolTable) Upstream(local string) string {
	local = strings.ToLower(strings.TrimSpace(local))
	if mapped, ok := t.overrides[local]; ok {
		return mapped
	}
	if isForexCode(local) {
		return strings.ToUpper(local) + "=X"
	}
	return strings.ToUpper(local) + t.suffix
}

// UpstreamBatch maps a set of local symbols, preserving order.
func (t *SymbolTable) UpstreamBatch(locals []string) []string {
	out := make([]string, len(locals))
	for i, s := range locals {
		out[i] = t.Upstream(s)
	}
	return out
}

func isForexCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

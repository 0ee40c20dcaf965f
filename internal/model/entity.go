package model

import "strings"

// Entity is a named product under analysis
type Entity struct {
	Name         string `json:"name" yaml:"name" mapstructure:"name"`
	Manufacturer string `json:"manufacturer" yaml:"manufacturer" mapstructure:"manufacturer"`
}

// ID returns the normalized identity of the entity
func (e Entity) ID() string {
	return NormalizeName(e.Name)
}

// NormalizeName lowercases, trims and collapses whitespace, then joins
// the remaining words with underscores. "  Figure   02 " becomes "figure_02".
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// SearchHit is a single result returned by a search provider
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

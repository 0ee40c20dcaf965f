// Package validate ranks candidate sources before they are fetched.
package validate

import (
	"net/url"
	"sort"
	"strings"

	"github.com/ppiankov/genesis/internal/model"
)

// Tier orders sources; lower tiers are fetched first
type Tier int

const (
	// TierReference covers encyclopedias and similar reference works
	TierReference Tier = iota
	// TierOfficial covers standards bodies, academia and government
	TierOfficial
	// TierGeneral is everything else
	TierGeneral
)

func (t Tier) String() string {
	switch t {
	case TierReference:
		return "reference"
	case TierOfficial:
		return "official"
	default:
		return "general"
	}
}

// AuthorityClassifier classifies sources into tiers
type AuthorityClassifier struct {
	reference []string
	official  []string
	domainMap map[string]Tier
}

// NewAuthorityClassifier creates a new authority classifier
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		def := model.DefaultConfig().Authority
		config = &def
	}

	classifier := &AuthorityClassifier{
		domainMap: make(map[string]Tier, len(config.DomainMap)),
	}
	for _, d := range config.ReferenceDomains {
		classifier.reference = append(classifier.reference, strings.ToLower(d))
	}
	for _, d := range config.OfficialDomains {
		classifier.official = append(classifier.official, strings.ToLower(d))
	}
	for domain, tier := range config.DomainMap {
		classifier.domainMap[strings.ToLower(domain)] = ParseTier(tier)
	}

	return classifier
}

// Classify classifies a URL into a tier
func (a *AuthorityClassifier) Classify(rawURL string) Tier {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return TierGeneral
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return TierGeneral
	}

	if tier, ok := a.domainMap[host]; ok {
		return tier
	}
	if hostIn(host, a.reference) {
		return TierReference
	}
	if hostIn(host, a.official) {
		return TierOfficial
	}

	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return TierOfficial
	}

	return TierGeneral
}

// Prioritize returns urls ordered by tier. Order within a tier is kept.
func (a *AuthorityClassifier) Prioritize(urls []string) []string {
	type ranked struct {
		url  string
		tier Tier
	}
	items := make([]ranked, len(urls))
	for i, u := range urls {
		items[i] = ranked{url: u, tier: a.Classify(u)}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].tier < items[j].tier })

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.url
	}
	return out
}

func hostIn(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// ParseTier converts a tier string to Tier
func ParseTier(tier string) Tier {
	switch strings.ToLower(tier) {
	case "reference", "1":
		return TierReference
	case "official", "2":
		return TierOfficial
	default:
		return TierGeneral
	}
}

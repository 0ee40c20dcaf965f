// Package score rates the evidence gathered for each entity by how many
// sources contributed and how authoritative they are.
package score

import (
	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/validate"
)

// Confidence levels
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
	ConfidenceNone   = "none"
)

// Scorer calculates the source quality index per entity
type Scorer struct {
	authority  *validate.AuthorityClassifier
	maxSources int
}

// NewScorer creates a new scorer. maxSources is the per-entity source
// budget that counts as full coverage.
func NewScorer(authority *validate.AuthorityClassifier, maxSources int) *Scorer {
	if authority == nil {
		authority = validate.NewAuthorityClassifier(nil)
	}
	if maxSources <= 0 {
		maxSources = 1
	}
	return &Scorer{authority: authority, maxSources: maxSources}
}

// Assess scores every blob, keeping blob order
func (s *Scorer) Assess(blobs []model.EvidenceBlob) []model.SourceQuality {
	out := make([]model.SourceQuality, 0, len(blobs))
	for _, b := range blobs {
		out = append(out, s.Calculate(b))
	}
	return out
}

// Calculate scores a single blob
func (s *Scorer) Calculate(blob model.EvidenceBlob) model.SourceQuality {
	q := model.SourceQuality{EntityName: blob.EntityName}
	if blob.Empty() {
		q.Confidence = ConfidenceNone
		return q
	}

	for _, u := range blob.SourceURLs {
		switch s.authority.Classify(u) {
		case validate.TierReference:
			q.Reference++
		case validate.TierOfficial:
			q.Official++
		default:
			q.General++
		}
	}
	q.Sources = len(blob.SourceURLs)

	q.Index = s.coverage(q.Sources) + authority(q)
	q.Confidence = confidence(q.Index, q.Sources)
	return q
}

// coverage awards up to 60 points: min(sources / budget, 1) * 60
func (s *Scorer) coverage(sources int) int {
	if sources >= s.maxSources {
		return 60
	}
	return sources * 60 / s.maxSources
}

// authority awards up to 40 points:
// (reference*3 + official*2 + general*1) / (sources*3) * 40
func authority(q model.SourceQuality) int {
	if q.Sources == 0 {
		return 0
	}
	weighted := q.Reference*3 + q.Official*2 + q.General
	return weighted * 40 / (q.Sources * 3)
}

func confidence(index, sources int) string {
	if sources < 2 {
		return ConfidenceLow
	}
	switch {
	case index >= 80:
		return ConfidenceHigh
	case index >= 60:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

package domain

import "time"

// DimensionOverride is one admin-edited dimension set for a finding.
// History per finding is append-only with strictly increasing versions; at
// most one row is Active (published) and at most one is a Draft.
type DimensionOverride struct {
	FindingID  string         `json:"finding_id"`
	Version    int            `json:"version"`
	Dimensions PartialProfile `json:"dimensions"`
	Note       string         `json:"note,omitempty"`
	UpdatedBy  string         `json:"updated_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Active     bool           `json:"active"`
	Draft      bool           `json:"draft"`
}

// OverrideState is the full override picture for one finding:
// {no_override} → {draft_only} → {published} ⇄ {published_with_draft}.
type OverrideState struct {
	Active  *DimensionOverride  `json:"active_override,omitempty"`
	Draft   *DimensionOverride  `json:"draft_override,omitempty"`
	History []DimensionOverride `json:"history"`
}

// NextVersion returns the next version number for this finding.
func (s *OverrideState) NextVersion() int {
	max := 0
	for _, ov := range s.History {
		if ov.Version > max {
			max = ov.Version
		}
	}
	return max + 1
}

// Dimension source values reported on listing/detail responses.
const (
	DimensionsSourceSeed     = "seed"
	DimensionsSourceOverride = "override"
)

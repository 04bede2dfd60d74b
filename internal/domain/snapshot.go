package domain

import "time"

// ConfigSnapshot is an immutable view of the rule tables loaded from the
// configuration store. A snapshot is never mutated after load; reloads swap
// in a fresh snapshot atomically so in-flight resolutions keep a consistent
// view.
type ConfigSnapshot struct {
	Version  string    `json:"version" yaml:"version"`
	LoadedAt time.Time `json:"loadedAt" yaml:"-"`

	// Mapping rules: answers → finding activations.
	Rules []MappingRule `json:"rules" yaml:"rules"`

	// Finding catalog and seed 9-dimension profiles.
	Findings map[string]FindingDef `json:"findings" yaml:"findings"`
	Seeds    map[string]Profile    `json:"seeds" yaml:"seeds"`

	// Category defaults keyed by system_group, used when a referenced
	// finding has no seed profile. Default is the ultimate fallback.
	CategoryDefaults map[string]Profile `json:"category_defaults" yaml:"category_defaults"`
	Default          Profile            `json:"default_profile" yaml:"default_profile"`

	// Per-field overrides from the rules file, layered above seeds.
	RuleOverrides map[string]PartialProfile `json:"rule_overrides" yaml:"rule_overrides"`

	// Hard safety/urgency/liability overrides, bypassing seeds entirely.
	HardOverrides map[string]HardOverride `json:"hard_overrides" yaml:"hard_overrides"`

	// Priority matrix, scanned in file order.
	Matrix []MatrixRule `json:"priority_matrix" yaml:"priority_matrix"`
}

// SeedFor returns the seed profile for a finding, falling back to its
// system_group category default and then the snapshot default.
func (s *ConfigSnapshot) SeedFor(findingID string) Profile {
	if p, ok := s.Seeds[findingID]; ok {
		return p
	}
	if def, ok := s.Findings[findingID]; ok {
		if p, ok := s.CategoryDefaults[def.SystemGroup]; ok {
			return p
		}
	}
	return s.Default
}

// ConfigStore provides the current configuration snapshot to resolutions and
// an invalidation hook for the admin console. Invalidate must be safe to
// call concurrently with in-flight resolutions.
type ConfigStore interface {
	Current() *ConfigSnapshot
	Invalidate() error
}

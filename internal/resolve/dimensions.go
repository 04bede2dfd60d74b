package resolve

import "github.com/openinspect/kestrel/internal/domain"

// MergeLayers overlays partial layers onto a base profile in order; later
// layers win. Nil layers are skipped.
func MergeLayers(base domain.Profile, layers ...*domain.PartialProfile) domain.Profile {
	out := base
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		layer.Apply(&out)
	}
	return out
}

// EffectiveDimensions computes the effective 9-dimension vector for a
// finding: seed profile < rules-file per-field override < hard override <
// published override < draft override (preview mode only). It reports the
// dimension source (seed vs admin override) and the applied override
// version, if any.
func EffectiveDimensions(snap *domain.ConfigSnapshot, findingID string, state *domain.OverrideState, previewDraft bool) (domain.Profile, string, int) {
	seed := snap.SeedFor(findingID)

	var layers []*domain.PartialProfile

	if ro, ok := snap.RuleOverrides[findingID]; ok {
		layers = append(layers, &ro)
	}
	if hard, ok := snap.HardOverrides[findingID]; ok {
		layers = append(layers, hardLayer(hard))
	}

	source := domain.DimensionsSourceSeed
	version := 0
	if state != nil {
		if state.Active != nil {
			layers = append(layers, &state.Active.Dimensions)
			source = domain.DimensionsSourceOverride
			version = state.Active.Version
		}
		if previewDraft && state.Draft != nil {
			layers = append(layers, &state.Draft.Dimensions)
			source = domain.DimensionsSourceOverride
			version = state.Draft.Version
		}
	}

	return MergeLayers(seed, layers...), source, version
}

// hardLayer converts a hard safety/urgency/liability override into a
// partial dimension layer.
func hardLayer(h domain.HardOverride) *domain.PartialProfile {
	layer := &domain.PartialProfile{}
	if h.Safety != "" {
		s := h.Safety
		layer.Safety = &s
	}
	if h.Urgency != "" {
		u := h.Urgency
		layer.Urgency = &u
	}
	if h.Liability != "" {
		l := h.Liability
		layer.Liability = &l
	}
	return layer
}

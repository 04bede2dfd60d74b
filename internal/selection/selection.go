package selection

import "github.com/openinspect/kestrel/internal/domain"

// selectionRow is one entry of the occupancy-driven lookup table.
type selectionRow struct {
	profile string
	modules []string
	weights map[string]int
}

// Derivation table: normalized occupancy → profile, module set, weights.
var occupancyTable = map[string]selectionRow{
	domain.OccupancyOwnerOccupied: {
		profile: domain.ProfileOwner,
		modules: []string{domain.ModuleEnergy, domain.ModuleLifecycle},
		weights: map[string]int{domain.ModuleEnergy: 60, domain.ModuleLifecycle: 40},
	},
	domain.OccupancyInvestment: {
		profile: domain.ProfileInvestor,
		modules: []string{domain.ModuleLifecycle, domain.ModuleRisk},
		weights: map[string]int{domain.ModuleEnergy: 50, domain.ModuleLifecycle: 50},
	},
	domain.OccupancyTenant: {
		profile: domain.ProfileTenant,
		modules: []string{domain.ModuleEnergy},
		weights: map[string]int{domain.ModuleEnergy: 70, domain.ModuleLifecycle: 30},
	},
}

var profileTable = map[string]selectionRow{
	domain.ProfileOwner:    occupancyTable[domain.OccupancyOwnerOccupied],
	domain.ProfileInvestor: occupancyTable[domain.OccupancyInvestment],
	domain.ProfileTenant:   occupancyTable[domain.OccupancyTenant],
}

// legacyRow is the historical default when no upstream signal is
// recognizable.
var legacyRow = selectionRow{
	profile: domain.ProfileInvestor,
	modules: []string{domain.ModuleLifecycle, domain.ModuleRisk},
	weights: map[string]int{domain.ModuleEnergy: 50, domain.ModuleLifecycle: 50},
}

// lifecycleBiasWeights re-weight investor reports toward lifecycle/risk
// when a tenant change is imminent and the goal is not energy-related.
var lifecycleBiasWeights = map[string]int{domain.ModuleEnergy: 35, domain.ModuleLifecycle: 65}

// ResolveReportSelection resolves report profile, module set, and section
// weights with override > snapshot-derived > legacy-fallback precedence.
// It is a pure function: identical inputs always yield identical results.
func ResolveReportSelection(sig domain.Signals, ov *domain.SelectionOverrides) domain.Selection {
	row, fromSignals := derive(sig)

	profile := row.profile
	profileOverridden := false
	if ov != nil && ov.Profile != "" {
		profile = ov.Profile
		profileOverridden = true
		if pr, ok := profileTable[profile]; ok {
			row = pr
		}
	}

	var modules []string
	explicitModules := ov != nil && ov.Modules != nil
	if explicitModules {
		// An explicit module list is honored verbatim, never augmented.
		modules = append([]string(nil), ov.Modules...)
	} else {
		modules = append([]string(nil), row.modules...)
		if profile == domain.ProfileOwner ||
			sig.PrimaryGoal == domain.GoalEnergy || sig.PrimaryGoal == domain.GoalReduceBill {
			modules = appendMissing(modules, domain.ModuleEnergy)
		}
	}

	weights := copyWeights(row.weights)
	if ov != nil && len(ov.Weights) > 0 {
		weights = copyWeights(ov.Weights)
	} else if profile == domain.ProfileInvestor && !profileOverridden &&
		sig.TenantChangeSoon &&
		sig.PrimaryGoal != domain.GoalEnergy && sig.PrimaryGoal != domain.GoalReduceBill {
		weights = copyWeights(lifecycleBiasWeights)
	}

	source := domain.SelectionSourceLegacy
	switch {
	case !ov.IsEmpty():
		source = domain.SelectionSourceOverride
	case fromSignals:
		source = domain.SelectionSourceSnapshot
	}

	return domain.Selection{
		Profile: profile,
		Modules: modules,
		Weights: weights,
		Source:  source,
	}
}

// derive picks the table row from normalized signals, reporting whether any
// signal data drove the choice.
func derive(sig domain.Signals) (selectionRow, bool) {
	if row, ok := occupancyTable[sig.OccupancyType]; ok {
		return row, true
	}
	if row, ok := profileTable[sig.Profile]; ok {
		return row, true
	}
	return legacyRow, false
}

func appendMissing(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func copyWeights(w map[string]int) map[string]int {
	out := make(map[string]int, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

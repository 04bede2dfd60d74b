package resolve

import (
	"testing"

	"github.com/openinspect/kestrel/internal/domain"
)

func layeringSnapshot() *domain.ConfigSnapshot {
	urgency := domain.UrgencyShortTerm
	budgetHigh := 5000.0

	return &domain.ConfigSnapshot{
		Findings: map[string]domain.FindingDef{
			"F-SB-OLD":         {FindingID: "F-SB-OLD", SystemGroup: "switchboard"},
			"F-ASBESTOS-PANEL": {FindingID: "F-ASBESTOS-PANEL", SystemGroup: "switchboard"},
			"F-NO-SEED":        {FindingID: "F-NO-SEED", SystemGroup: "switchboard"},
			"F-ORPHAN":         {FindingID: "F-ORPHAN", SystemGroup: "unmapped"},
		},
		Seeds: map[string]domain.Profile{
			"F-SB-OLD": {
				Safety: domain.SafetyModerate, Urgency: domain.UrgencyLongTerm,
				Liability: domain.LiabilityMedium, BudgetLow: 1800, BudgetHigh: 3500,
				Priority: domain.PriorityPlanMonitor, Severity: 3, Likelihood: 3,
				Escalation: domain.EscalationModerate,
			},
			"F-ASBESTOS-PANEL": {
				Safety: domain.SafetyModerate, Urgency: domain.UrgencyLongTerm,
				Liability: domain.LiabilityMedium, BudgetLow: 2500, BudgetHigh: 6000,
				Priority: domain.PriorityPlanMonitor, Severity: 3, Likelihood: 2,
				Escalation: domain.EscalationModerate,
			},
		},
		CategoryDefaults: map[string]domain.Profile{
			"switchboard": {
				Safety: domain.SafetyLow, Urgency: domain.UrgencyLongTerm,
				Liability: domain.LiabilityLow, BudgetLow: 500, BudgetHigh: 2000,
				Priority: domain.PriorityPlanMonitor, Severity: 2, Likelihood: 2,
				Escalation: domain.EscalationLow,
			},
		},
		Default: domain.Profile{
			Safety: domain.SafetyLow, Urgency: domain.UrgencyLongTerm,
			Liability: domain.LiabilityLow, Priority: domain.PriorityPlanMonitor,
			Severity: 1, Likelihood: 1, Escalation: domain.EscalationLow,
		},
		RuleOverrides: map[string]domain.PartialProfile{
			"F-SB-OLD": {Urgency: &urgency, BudgetHigh: &budgetHigh},
		},
		HardOverrides: map[string]domain.HardOverride{
			"F-ASBESTOS-PANEL": {
				Safety: domain.SafetyHigh, Urgency: domain.UrgencyImmediate,
				Liability: domain.LiabilityHigh,
			},
		},
	}
}

func TestMergeLayers(t *testing.T) {
	base := domain.Profile{Safety: domain.SafetyLow, Severity: 2, BudgetLow: 100, BudgetHigh: 200}
	high := domain.SafetyHigh
	moderate := domain.SafetyModerate
	sev := 4

	merged := MergeLayers(base,
		&domain.PartialProfile{Safety: &moderate, Severity: &sev},
		nil,
		&domain.PartialProfile{Safety: &high},
	)

	// Later layers win per field; untouched fields keep the base.
	if merged.Safety != domain.SafetyHigh {
		t.Errorf("safety = %s", merged.Safety)
	}
	if merged.Severity != 4 {
		t.Errorf("severity = %d", merged.Severity)
	}
	if merged.BudgetLow != 100 || merged.BudgetHigh != 200 {
		t.Errorf("budgets = %v/%v", merged.BudgetLow, merged.BudgetHigh)
	}
}

func TestEffectiveDimensionsLayering(t *testing.T) {
	snap := layeringSnapshot()

	t.Run("RuleOverrideOnSeed", func(t *testing.T) {
		dims, source, version := EffectiveDimensions(snap, "F-SB-OLD", nil, false)
		if dims.Urgency != domain.UrgencyShortTerm || dims.BudgetHigh != 5000 {
			t.Errorf("dims = %+v", dims)
		}
		// Seed fields the rule override leaves alone survive.
		if dims.BudgetLow != 1800 || dims.Severity != 3 {
			t.Errorf("dims = %+v", dims)
		}
		if source != domain.DimensionsSourceSeed || version != 0 {
			t.Errorf("source = %s version = %d", source, version)
		}
	})

	t.Run("HardOverrideAboveRuleOverride", func(t *testing.T) {
		dims, _, _ := EffectiveDimensions(snap, "F-ASBESTOS-PANEL", nil, false)
		if dims.Safety != domain.SafetyHigh || dims.Urgency != domain.UrgencyImmediate || dims.Liability != domain.LiabilityHigh {
			t.Errorf("dims = %+v", dims)
		}
		// Budget dimensions are not part of the hard override.
		if dims.BudgetHigh != 6000 {
			t.Errorf("budget high = %v", dims.BudgetHigh)
		}
	})

	t.Run("CategoryDefaultWhenNoSeed", func(t *testing.T) {
		dims, _, _ := EffectiveDimensions(snap, "F-NO-SEED", nil, false)
		if dims.BudgetHigh != 2000 || dims.Severity != 2 {
			t.Errorf("dims = %+v", dims)
		}
	})

	t.Run("SnapshotDefaultWhenNoCategory", func(t *testing.T) {
		dims, _, _ := EffectiveDimensions(snap, "F-ORPHAN", nil, false)
		if dims.Severity != 1 {
			t.Errorf("dims = %+v", dims)
		}
	})

	t.Run("PublishedOverrideWins", func(t *testing.T) {
		budgetHigh := 9000.0
		state := &domain.OverrideState{
			Active: &domain.DimensionOverride{
				FindingID: "F-SB-OLD", Version: 3, Active: true,
				Dimensions: domain.PartialProfile{BudgetHigh: &budgetHigh},
			},
		}
		dims, source, version := EffectiveDimensions(snap, "F-SB-OLD", state, false)
		if dims.BudgetHigh != 9000 {
			t.Errorf("budget high = %v", dims.BudgetHigh)
		}
		// Rule override still fills fields the admin left alone.
		if dims.Urgency != domain.UrgencyShortTerm {
			t.Errorf("urgency = %s", dims.Urgency)
		}
		if source != domain.DimensionsSourceOverride || version != 3 {
			t.Errorf("source = %s version = %d", source, version)
		}
	})

	t.Run("DraftOnlyInPreviewMode", func(t *testing.T) {
		sev := 5
		state := &domain.OverrideState{
			Draft: &domain.DimensionOverride{
				FindingID: "F-SB-OLD", Version: 1, Draft: true,
				Dimensions: domain.PartialProfile{Severity: &sev},
			},
		}

		dims, source, _ := EffectiveDimensions(snap, "F-SB-OLD", state, false)
		if dims.Severity != 3 || source != domain.DimensionsSourceSeed {
			t.Errorf("draft leaked outside preview: %+v %s", dims, source)
		}

		dims, source, version := EffectiveDimensions(snap, "F-SB-OLD", state, true)
		if dims.Severity != 5 || source != domain.DimensionsSourceOverride || version != 1 {
			t.Errorf("preview dims = %+v %s v%d", dims, source, version)
		}
	})
}

func TestResolvePriority(t *testing.T) {
	matrix := []domain.MatrixRule{
		{When: domain.MatrixWhen{Safety: domain.SafetyHigh, Urgency: domain.UrgencyImmediate}, Then: domain.PriorityImmediate},
		{When: domain.MatrixWhen{Safety: domain.SafetyHigh}, Then: domain.PriorityImmediate},
		{When: domain.MatrixWhen{Urgency: domain.UrgencyShortTerm}, Then: domain.PriorityRecommended},
	}

	tests := []struct {
		name    string
		profile domain.Profile
		want    string
	}{
		{
			name:    "first full match wins",
			profile: domain.Profile{Safety: domain.SafetyHigh, Urgency: domain.UrgencyImmediate},
			want:    domain.PriorityImmediate,
		},
		{
			name:    "wildcard fields ignored",
			profile: domain.Profile{Safety: domain.SafetyHigh, Urgency: domain.UrgencyLongTerm},
			want:    domain.PriorityImmediate,
		},
		{
			name:    "later rule catches short term",
			profile: domain.Profile{Safety: domain.SafetyLow, Urgency: domain.UrgencyShortTerm},
			want:    domain.PriorityRecommended,
		},
		{
			name:    "no match falls back to profile priority",
			profile: domain.Profile{Safety: domain.SafetyLow, Urgency: domain.UrgencyLongTerm, Priority: domain.PriorityPlanMonitor},
			want:    domain.PriorityPlanMonitor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePriority(tt.profile, matrix); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

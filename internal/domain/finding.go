package domain

import "fmt"

// FindingDef is an immutable catalog entry for an inspection finding.
type FindingDef struct {
	FindingID   string   `json:"finding_id" yaml:"finding_id"`
	Title       string   `json:"title" yaml:"title"`
	SystemGroup string   `json:"system_group,omitempty" yaml:"system_group,omitempty"`
	SpaceGroup  string   `json:"space_group,omitempty" yaml:"space_group,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Legacy per-finding response text, used when no selected module
	// produces content for a slot.
	Response ResponseText `json:"response,omitempty" yaml:"response,omitempty"`
}

// ResponseText is the legacy layered text content attached to a finding.
type ResponseText struct {
	Summary       string `json:"summary,omitempty" yaml:"summary,omitempty"`
	WhatThisMeans string `json:"what_this_means,omitempty" yaml:"what_this_means,omitempty"`
	Action        string `json:"action,omitempty" yaml:"action,omitempty"`
}

// Profile is the fully-populated 9-dimension risk vector for a finding.
// Budgets are AUD.
type Profile struct {
	Safety     string  `json:"safety" yaml:"safety"`
	Urgency    string  `json:"urgency" yaml:"urgency"`
	Liability  string  `json:"liability" yaml:"liability"`
	BudgetLow  float64 `json:"budget_low" yaml:"budget_low"`
	BudgetHigh float64 `json:"budget_high" yaml:"budget_high"`
	Priority   string  `json:"priority" yaml:"priority"`
	Severity   int     `json:"severity" yaml:"severity"`
	Likelihood int     `json:"likelihood" yaml:"likelihood"`
	Escalation string  `json:"escalation" yaml:"escalation"`
}

// Dimension vocabularies.
const (
	SafetyHigh     = "HIGH"
	SafetyModerate = "MODERATE"
	SafetyLow      = "LOW"

	UrgencyImmediate = "IMMEDIATE"
	UrgencyShortTerm = "SHORT_TERM"
	UrgencyLongTerm  = "LONG_TERM"

	LiabilityHigh   = "HIGH"
	LiabilityMedium = "MEDIUM"
	LiabilityLow    = "LOW"

	PriorityImmediate   = "IMMEDIATE"
	PriorityRecommended = "RECOMMENDED_0_3_MONTHS"
	PriorityPlanMonitor = "PLAN_MONITOR"

	EscalationHigh     = "HIGH"
	EscalationModerate = "MODERATE"
	EscalationLow      = "LOW"
)

// Validate checks structural invariants on a seed profile.
func (p *Profile) Validate() error {
	if p.BudgetLow < 0 || p.BudgetHigh < 0 {
		return fmt.Errorf("%w: budgets must be non-negative", ErrConfig)
	}
	if p.BudgetLow > p.BudgetHigh {
		return fmt.Errorf("%w: budget_low %.2f exceeds budget_high %.2f", ErrConfig, p.BudgetLow, p.BudgetHigh)
	}
	if p.Severity < 1 || p.Severity > 5 {
		return fmt.Errorf("%w: severity %d outside [1,5]", ErrConfig, p.Severity)
	}
	if p.Likelihood < 1 || p.Likelihood > 5 {
		return fmt.Errorf("%w: likelihood %d outside [1,5]", ErrConfig, p.Likelihood)
	}
	return nil
}

// PartialProfile is a subset of the 9 dimensions; nil fields fall through to
// the layer below during merge.
type PartialProfile struct {
	Safety     *string  `json:"safety,omitempty" yaml:"safety,omitempty"`
	Urgency    *string  `json:"urgency,omitempty" yaml:"urgency,omitempty"`
	Liability  *string  `json:"liability,omitempty" yaml:"liability,omitempty"`
	BudgetLow  *float64 `json:"budget_low,omitempty" yaml:"budget_low,omitempty"`
	BudgetHigh *float64 `json:"budget_high,omitempty" yaml:"budget_high,omitempty"`
	Priority   *string  `json:"priority,omitempty" yaml:"priority,omitempty"`
	Severity   *int     `json:"severity,omitempty" yaml:"severity,omitempty"`
	Likelihood *int     `json:"likelihood,omitempty" yaml:"likelihood,omitempty"`
	Escalation *string  `json:"escalation,omitempty" yaml:"escalation,omitempty"`
}

// IsEmpty reports whether no dimension is set.
func (pp *PartialProfile) IsEmpty() bool {
	return pp.Safety == nil && pp.Urgency == nil && pp.Liability == nil &&
		pp.BudgetLow == nil && pp.BudgetHigh == nil && pp.Priority == nil &&
		pp.Severity == nil && pp.Likelihood == nil && pp.Escalation == nil
}

// Apply overlays the set fields of the partial onto p.
func (pp *PartialProfile) Apply(p *Profile) {
	if pp.Safety != nil {
		p.Safety = *pp.Safety
	}
	if pp.Urgency != nil {
		p.Urgency = *pp.Urgency
	}
	if pp.Liability != nil {
		p.Liability = *pp.Liability
	}
	if pp.BudgetLow != nil {
		p.BudgetLow = *pp.BudgetLow
	}
	if pp.BudgetHigh != nil {
		p.BudgetHigh = *pp.BudgetHigh
	}
	if pp.Priority != nil {
		p.Priority = *pp.Priority
	}
	if pp.Severity != nil {
		p.Severity = *pp.Severity
	}
	if pp.Likelihood != nil {
		p.Likelihood = *pp.Likelihood
	}
	if pp.Escalation != nil {
		p.Escalation = *pp.Escalation
	}
}

// HardOverride forces the safety/urgency/liability triplet for a finding,
// bypassing seed and matrix resolution.
type HardOverride struct {
	Safety    string `json:"safety" yaml:"safety"`
	Urgency   string `json:"urgency" yaml:"urgency"`
	Liability string `json:"liability" yaml:"liability"`
}

// MatrixWhen matches a resolved safety/urgency/liability triplet. Empty
// fields are wildcards.
type MatrixWhen struct {
	Safety    string `json:"safety,omitempty" yaml:"safety,omitempty"`
	Urgency   string `json:"urgency,omitempty" yaml:"urgency,omitempty"`
	Liability string `json:"liability,omitempty" yaml:"liability,omitempty"`
}

// MatrixRule maps a triplet pattern to a priority bucket. Rules are scanned
// in file order; first full match wins.
type MatrixRule struct {
	When MatrixWhen `json:"when" yaml:"when"`
	Then string     `json:"then" yaml:"then"`
}

package domain

import "time"

// Inspection is the resolved input to report assembly: the active findings
// of one inspection with their effective dimensions.
type Inspection struct {
	ID          string            `json:"id"`
	SiteAddress string            `json:"siteAddress,omitempty"`
	Findings    []ResolvedFinding `json:"findings"`
}

// ResolvedFinding is an active finding with its effective 9-dimension vector
// and priority bucket.
type ResolvedFinding struct {
	FindingID        string       `json:"findingId"`
	Title            string       `json:"title"`
	SystemGroup      string       `json:"systemGroup,omitempty"`
	SpaceGroup       string       `json:"spaceGroup,omitempty"`
	Tags             []string     `json:"tags,omitempty"`
	Paths            []string     `json:"triggeringPaths,omitempty"`
	Dimensions       Profile      `json:"dimensions"`
	DimensionsSource string       `json:"dimensionsSource"`
	OverrideVersion  int          `json:"overrideVersion,omitempty"`
	PriorityBucket   string       `json:"priorityBucket"`
	Response         ResponseText `json:"response"`
}

// PlanEntry is one merged content entry keyed by a stable content key.
type PlanEntry struct {
	Key    string `json:"key"`
	Text   string `json:"text"`
	Module string `json:"module,omitempty"`
}

// CapexRow is one budget planning row of the report.
type CapexRow struct {
	Key            string  `json:"key"`
	FindingID      string  `json:"findingId"`
	Label          string  `json:"label"`
	BudgetLow      float64 `json:"budgetLow"`
	BudgetHigh     float64 `json:"budgetHigh"`
	PriorityBucket string  `json:"priorityBucket"`
	Module         string  `json:"module,omitempty"`
}

// SlotSource records, per report slot, whether content came from legacy
// per-finding text or a module generator, and why merged content was not
// produced when it falls back.
type SlotSource struct {
	Source         string `json:"source"`
	Module         string `json:"module,omitempty"`
	FallbackReason string `json:"fallbackReason,omitempty"`
}

// Slot source values.
const (
	SlotSourceLegacy = "legacy"
	SlotSourceMerged = "merged"
)

// Report slot names.
const (
	SlotExecutiveSummary = "executiveSummary"
	SlotWhatThisMeans    = "whatThisMeans"
	SlotCapexRows        = "capexRows"
	SlotFindings         = "findings"
)

// MergedContent holds the per-slot merged report content.
type MergedContent struct {
	ExecutiveSummary []PlanEntry `json:"executiveSummary"`
	WhatThisMeans    []PlanEntry `json:"whatThisMeans"`
	CapexRows        []CapexRow  `json:"capexRows"`
	Findings         []PlanEntry `json:"findings"`
}

// ValidationFlags indicate whether merged slots passed structural checks.
// Failures degrade, they never abort plan generation.
type ValidationFlags struct {
	Findings bool `json:"findings"`
	Capex    bool `json:"capex"`
}

// ReportPlan is the final assembled plan consumed by the document renderer.
type ReportPlan struct {
	Merged          MergedContent         `json:"merged"`
	SlotSourceMap   map[string]SlotSource `json:"slotSourceMap"`
	ValidationFlags ValidationFlags       `json:"validationFlags"`
}

// Resolution is the persisted outcome of one full resolution request.
type Resolution struct {
	ID           string             `json:"id"`
	TenantID     string             `json:"tenantId"`
	InspectionID string             `json:"inspectionId,omitempty"`
	Findings     []ResolvedFinding  `json:"findings"`
	Selection    *Selection         `json:"selection,omitempty"`
	Plan         *ReportPlan        `json:"plan,omitempty"`
	Diagnostics  []Diagnostic       `json:"diagnostics,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	Metadata     ResolutionMetadata `json:"metadata"`
}

// ResolutionMetadata carries processing telemetry.
type ResolutionMetadata struct {
	TraceID        string `json:"traceId,omitempty"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	RulesSkipped   int    `json:"rulesSkipped"`
	ActiveFindings int    `json:"activeFindings"`
	TotalMs        int64  `json:"totalMs"`
	EngineVersion  string `json:"engineVersion,omitempty"`
}

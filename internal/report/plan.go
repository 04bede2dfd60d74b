// Package report assembles the final report plan: slot-by-slot merge of
// module-generated content with legacy per-finding text, with provenance
// and structural validation.
package report

import (
	"fmt"
	"sort"

	"github.com/openinspect/kestrel/internal/domain"
)

// BuildInput is the full input to plan assembly. BuildReportPlan is a pure
// function of this value.
type BuildInput struct {
	Inspection domain.Inspection `json:"inspection"`
	Profile    string            `json:"profile"`
	Modules    []string          `json:"modules"`
}

// Canonical module order for merged output.
var moduleOrder = []string{domain.ModuleEnergy, domain.ModuleLifecycle, domain.ModuleRisk}

// moduleForGroup assigns findings to the module that narrates them, by
// system group. Findings outside every module keep their legacy text.
var moduleForGroup = map[string]string{
	"solar":        domain.ModuleEnergy,
	"energy":       domain.ModuleEnergy,
	"metering":     domain.ModuleEnergy,
	"hot_water":    domain.ModuleEnergy,
	"switchboard":  domain.ModuleLifecycle,
	"wiring":       domain.ModuleLifecycle,
	"structure":    domain.ModuleLifecycle,
	"appliances":   domain.ModuleLifecycle,
	"safety":       domain.ModuleRisk,
	"smoke_alarms": domain.ModuleRisk,
	"rcd":          domain.ModuleRisk,
	"earthing":     domain.ModuleRisk,
}

// BuildReportPlan merges module content with legacy per-finding text into a
// report plan. Modules not selected contribute nothing; merged entries that
// cannot be produced fall back to legacy with a recorded reason. The result
// is byte-identical for identical input.
func BuildReportPlan(in BuildInput) *domain.ReportPlan {
	findings := sortedFindings(in.Inspection.Findings)
	selected := selectedModules(in.Modules)

	plan := &domain.ReportPlan{
		Merged: domain.MergedContent{
			ExecutiveSummary: []domain.PlanEntry{},
			WhatThisMeans:    []domain.PlanEntry{},
			CapexRows:        []domain.CapexRow{},
			Findings:         []domain.PlanEntry{},
		},
		SlotSourceMap: make(map[string]domain.SlotSource),
	}

	buildExecutiveSummary(plan, in.Profile, selected, findings)
	buildWhatThisMeans(plan, in.Profile, selected, findings)
	buildCapexRows(plan, selected, findings)
	buildFindingsSlot(plan, in.Profile, selected, findings)

	plan.ValidationFlags = validate(plan, findings)

	return plan
}

func buildExecutiveSummary(plan *domain.ReportPlan, profile string, selected map[string]bool, findings []domain.ResolvedFinding) {
	var entries []domain.PlanEntry
	for _, mod := range moduleOrder {
		if !selected[mod] {
			continue
		}
		covered := findingsForModule(findings, mod)
		if len(covered) == 0 {
			continue
		}
		entries = append(entries, domain.PlanEntry{
			Key:    "summary." + mod,
			Text:   summaryText(profile, mod, covered),
			Module: mod,
		})
	}

	if len(entries) > 0 {
		plan.Merged.ExecutiveSummary = entries
		plan.SlotSourceMap[domain.SlotExecutiveSummary] = domain.SlotSource{Source: domain.SlotSourceMerged}
		return
	}

	reason := "no modules selected"
	if len(selected) > 0 {
		reason = "selected modules produced no content"
	}
	for _, f := range findings {
		if f.Response.Summary == "" {
			continue
		}
		plan.Merged.ExecutiveSummary = append(plan.Merged.ExecutiveSummary, domain.PlanEntry{
			Key:  "finding." + f.FindingID,
			Text: f.Response.Summary,
		})
	}
	plan.SlotSourceMap[domain.SlotExecutiveSummary] = domain.SlotSource{
		Source:         domain.SlotSourceLegacy,
		FallbackReason: reason,
	}
}

func buildWhatThisMeans(plan *domain.ReportPlan, profile string, selected map[string]bool, findings []domain.ResolvedFinding) {
	merged := false
	fellBack := ""
	for _, f := range findings {
		mod := moduleFor(f)
		if mod != "" && selected[mod] {
			plan.Merged.WhatThisMeans = append(plan.Merged.WhatThisMeans, domain.PlanEntry{
				Key:    "wtm." + f.FindingID,
				Text:   whatThisMeansText(profile, mod, f),
				Module: mod,
			})
			merged = true
			continue
		}
		if f.Response.WhatThisMeans != "" {
			plan.Merged.WhatThisMeans = append(plan.Merged.WhatThisMeans, domain.PlanEntry{
				Key:  "wtm." + f.FindingID,
				Text: f.Response.WhatThisMeans,
			})
			if mod == "" {
				fellBack = "finding not covered by any module"
			} else {
				fellBack = fmt.Sprintf("module %s not selected", mod)
			}
		}
	}

	src := domain.SlotSource{Source: domain.SlotSourceLegacy, FallbackReason: fellBack}
	if src.FallbackReason == "" && !merged {
		src.FallbackReason = "no content produced"
	}
	if merged {
		src = domain.SlotSource{Source: domain.SlotSourceMerged}
		if fellBack != "" {
			src.FallbackReason = fellBack
		}
	}
	plan.SlotSourceMap[domain.SlotWhatThisMeans] = src
}

func buildCapexRows(plan *domain.ReportPlan, selected map[string]bool, findings []domain.ResolvedFinding) {
	lifecycle := selected[domain.ModuleLifecycle]
	missingBudget := false

	for _, f := range findings {
		if f.Dimensions.BudgetHigh <= 0 {
			missingBudget = true
			continue
		}
		row := domain.CapexRow{
			Key:            "capex." + f.FindingID,
			FindingID:      f.FindingID,
			Label:          f.Title,
			BudgetLow:      f.Dimensions.BudgetLow,
			BudgetHigh:     f.Dimensions.BudgetHigh,
			PriorityBucket: f.PriorityBucket,
		}
		if lifecycle {
			row.Module = domain.ModuleLifecycle
		}
		plan.Merged.CapexRows = append(plan.Merged.CapexRows, row)
	}

	src := domain.SlotSource{Source: domain.SlotSourceLegacy, FallbackReason: "lifecycle module not selected"}
	if lifecycle {
		src = domain.SlotSource{Source: domain.SlotSourceMerged, Module: domain.ModuleLifecycle}
		if missingBudget {
			src.FallbackReason = "one or more findings have no budget data"
		}
	}
	plan.SlotSourceMap[domain.SlotCapexRows] = src
}

func buildFindingsSlot(plan *domain.ReportPlan, profile string, selected map[string]bool, findings []domain.ResolvedFinding) {
	merged := false
	for _, f := range findings {
		mod := moduleFor(f)
		if mod != "" && selected[mod] {
			plan.Merged.Findings = append(plan.Merged.Findings, domain.PlanEntry{
				Key:    "finding." + f.FindingID,
				Text:   actionText(profile, f),
				Module: mod,
			})
			merged = true
			continue
		}
		text := f.Response.Action
		if text == "" {
			text = fmt.Sprintf("%s: review recommended (%s priority).", f.Title, f.PriorityBucket)
		}
		plan.Merged.Findings = append(plan.Merged.Findings, domain.PlanEntry{
			Key:  "finding." + f.FindingID,
			Text: text,
		})
	}

	src := domain.SlotSource{Source: domain.SlotSourceLegacy, FallbackReason: "no module covers the active findings"}
	if merged {
		src = domain.SlotSource{Source: domain.SlotSourceMerged}
	}
	plan.SlotSourceMap[domain.SlotFindings] = src
}

// moduleFor resolves which module narrates a finding: an explicit module
// tag wins, then the system-group table.
func moduleFor(f domain.ResolvedFinding) string {
	for _, tag := range f.Tags {
		for _, mod := range moduleOrder {
			if tag == mod {
				return mod
			}
		}
	}
	return moduleForGroup[f.SystemGroup]
}

func findingsForModule(findings []domain.ResolvedFinding, mod string) []domain.ResolvedFinding {
	var out []domain.ResolvedFinding
	for _, f := range findings {
		if moduleFor(f) == mod {
			out = append(out, f)
		}
	}
	return out
}

func sortedFindings(findings []domain.ResolvedFinding) []domain.ResolvedFinding {
	out := append([]domain.ResolvedFinding(nil), findings...)
	sort.Slice(out, func(i, j int) bool { return out[i].FindingID < out[j].FindingID })
	return out
}

func selectedModules(modules []string) map[string]bool {
	out := make(map[string]bool, len(modules))
	for _, m := range modules {
		out[m] = true
	}
	return out
}

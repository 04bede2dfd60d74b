package report

import (
	"fmt"
	"strings"

	"github.com/openinspect/kestrel/internal/domain"
)

// Advisory language only: generated text avoids absolute claims so the
// rendered report stays within an advisory register.
var forbiddenPhrases = []string{"must", "guarantee", "guaranteed", "100%"}

// ContainsForbidden reports the first forbidden phrase found in s, if any.
func ContainsForbidden(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, p := range forbiddenPhrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

func summaryText(profile, mod string, covered []domain.ResolvedFinding) string {
	n := len(covered)
	noun := "finding"
	if n != 1 {
		noun = "findings"
	}
	switch mod {
	case domain.ModuleEnergy:
		switch profile {
		case domain.ProfileInvestor:
			return fmt.Sprintf("Energy review: %d %s affect running costs and the property's energy performance across the tenancy.", n, noun)
		case domain.ProfileTenant:
			return fmt.Sprintf("Energy review: %d %s may be adding to your usage; the items below are worth raising with the property manager.", n, noun)
		default:
			return fmt.Sprintf("Energy review: %d %s point to avoidable running costs in your home.", n, noun)
		}
	case domain.ModuleLifecycle:
		switch profile {
		case domain.ProfileInvestor:
			return fmt.Sprintf("Lifecycle review: %d %s carry upgrade costs worth budgeting across upcoming tenancy cycles.", n, noun)
		default:
			return fmt.Sprintf("Lifecycle review: %d %s relate to equipment approaching the end of its service life; planning replacements early avoids rushed work.", n, noun)
		}
	case domain.ModuleRisk:
		return fmt.Sprintf("Safety review: %d %s relate to protective systems and should be looked at ahead of other work.", n, noun)
	}
	return fmt.Sprintf("%d %s identified.", n, noun)
}

func whatThisMeansText(profile, mod string, f domain.ResolvedFinding) string {
	title := strings.ToLower(f.Title)
	switch mod {
	case domain.ModuleEnergy:
		switch profile {
		case domain.ProfileInvestor:
			return fmt.Sprintf("The %s affects outgoings for this property and can weigh on its energy rating at the next assessment.", title)
		case domain.ProfileTenant:
			return fmt.Sprintf("The %s can push up your usage between bills; it is reasonable to raise it with the property manager.", title)
		default:
			return fmt.Sprintf("The %s is likely adding to your running costs; addressing it tends to show up on the next bill.", title)
		}
	case domain.ModuleLifecycle:
		budget := ""
		if f.Dimensions.BudgetHigh > 0 {
			budget = fmt.Sprintf(" Typical work in this area lands between $%.0f and $%.0f.", f.Dimensions.BudgetLow, f.Dimensions.BudgetHigh)
		}
		if profile == domain.ProfileInvestor {
			return fmt.Sprintf("The %s is a lifecycle cost for this asset; scheduling it between tenancies keeps disruption low.%s", title, budget)
		}
		return fmt.Sprintf("The %s is wearing toward the end of its service life; planning the upgrade now avoids an unplanned replacement later.%s", title, budget)
	case domain.ModuleRisk:
		if f.Dimensions.Safety == domain.SafetyHigh {
			return fmt.Sprintf("The %s reduces the protection the installation is expected to provide; we recommend addressing it ahead of other work.", title)
		}
		return fmt.Sprintf("The %s affects a protective system; it is worth addressing before it degrades further.", title)
	}
	return f.Response.WhatThisMeans
}

func actionText(profile string, f domain.ResolvedFinding) string {
	base := f.Response.Action
	if base == "" {
		base = fmt.Sprintf("Have a licensed electrician review the %s.", strings.ToLower(f.Title))
	}
	switch f.PriorityBucket {
	case domain.PriorityImmediate:
		return base + " This item is flagged for immediate attention."
	case domain.PriorityRecommended:
		return base + " We suggest scheduling this within the next three months."
	default:
		if profile == domain.ProfileInvestor {
			return base + " This can be planned into the next maintenance cycle."
		}
		return base + " This can be planned and monitored for now."
	}
}

// validate runs the structural checks over merged content. A failed check
// lowers the corresponding flag; the plan is still returned.
func validate(plan *domain.ReportPlan, findings []domain.ResolvedFinding) domain.ValidationFlags {
	flags := domain.ValidationFlags{Findings: true, Capex: true}

	if len(findings) > 0 && len(plan.Merged.Findings) == 0 {
		flags.Findings = false
	}
	for _, e := range plan.Merged.Findings {
		if strings.TrimSpace(e.Text) == "" {
			flags.Findings = false
		}
		if _, bad := ContainsForbidden(e.Text); bad {
			flags.Findings = false
		}
	}

	for _, row := range plan.Merged.CapexRows {
		if row.BudgetLow < 0 || row.BudgetHigh < 0 || row.BudgetLow > row.BudgetHigh {
			flags.Capex = false
		}
		if strings.TrimSpace(row.Label) == "" {
			flags.Capex = false
		}
	}

	return flags
}

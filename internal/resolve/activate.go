package resolve

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/openinspect/kestrel/internal/domain"
)

// Activator evaluates a compiled mapping rule set against answer maps.
// Expression rules are compiled once at construction; a compile failure
// produces a config diagnostic and the rule is skipped, never an abort.
type Activator struct {
	rules    []domain.MappingRule
	programs map[int]cel.Program
	diags    []domain.Diagnostic
}

// triggering path recorded for expression rules, which have no single field
const exprPath = "expression"

// CompileRules builds an Activator for a snapshot's mapping rules.
func CompileRules(rules []domain.MappingRule) *Activator {
	a := &Activator{
		rules:    rules,
		programs: make(map[int]cel.Program),
	}

	env, err := cel.NewEnv(
		cel.Variable("answers", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		a.diags = append(a.diags, domain.Diagnostic{
			Kind:   domain.DiagConfig,
			Detail: fmt.Sprintf("cel environment: %v", err),
		})
		return a
	}

	for i, rule := range rules {
		if rule.Expression == "" {
			continue
		}
		ast, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			a.diags = append(a.diags, domain.Diagnostic{
				Kind:      domain.DiagConfig,
				RuleIndex: i,
				FindingID: rule.Finding,
				Detail:    fmt.Sprintf("compile expression: %v", issues.Err()),
			})
			continue
		}
		if ast.OutputType() != cel.BoolType {
			a.diags = append(a.diags, domain.Diagnostic{
				Kind:      domain.DiagConfig,
				RuleIndex: i,
				FindingID: rule.Finding,
				Detail:    fmt.Sprintf("expression must return bool, got %s", ast.OutputType()),
			})
			continue
		}
		program, err := env.Program(ast)
		if err != nil {
			a.diags = append(a.diags, domain.Diagnostic{
				Kind:      domain.DiagConfig,
				RuleIndex: i,
				FindingID: rule.Finding,
				Detail:    fmt.Sprintf("build program: %v", err),
			})
			continue
		}
		a.programs[i] = program
	}

	return a
}

// RulesCount returns the number of loaded mapping rules.
func (a *Activator) RulesCount() int {
	return len(a.rules)
}

// Activate evaluates every rule against the answers and returns the active
// findings sorted by finding ID, plus per-rule diagnostics. Activation is
// idempotent per finding; triggering paths accumulate across rules.
func (a *Activator) Activate(answers map[string]any) ([]domain.Activation, []domain.Diagnostic) {
	diags := append([]domain.Diagnostic(nil), a.diags...)

	byFinding := make(map[string]*domain.Activation)
	unwrapped := domain.UnwrapAnswers(answers)

	for i := range a.rules {
		rule := &a.rules[i]
		ok, paths, err := a.evalRule(i, rule, answers, unwrapped)
		if err != nil {
			diags = append(diags, domain.Diagnostic{
				Kind:      domain.DiagConfig,
				RuleIndex: i,
				FindingID: rule.Finding,
				Detail:    err.Error(),
			})
			continue
		}
		if !ok {
			continue
		}

		act, exists := byFinding[rule.Finding]
		if !exists {
			act = &domain.Activation{FindingID: rule.Finding}
			byFinding[rule.Finding] = act
		}
		for _, p := range paths {
			if !containsString(act.Paths, p) {
				act.Paths = append(act.Paths, p)
			}
		}
	}

	out := make([]domain.Activation, 0, len(byFinding))
	for _, act := range byFinding {
		out = append(out, *act)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FindingID < out[j].FindingID })

	return out, diags
}

func (a *Activator) evalRule(idx int, rule *domain.MappingRule, answers, unwrapped map[string]any) (bool, []string, error) {
	switch {
	case rule.Expression != "":
		program, ok := a.programs[idx]
		if !ok {
			// Compile failure already diagnosed at load.
			return false, nil, nil
		}
		// Expressions address fields as answers.<section>.<field>, the
		// same shape structured-condition paths use, so the variable
		// binds to the intake's answers section rather than the
		// envelope around it.
		section, _ := unwrapped["answers"].(map[string]any)
		if section == nil {
			section = map[string]any{}
		}
		out, _, err := program.Eval(map[string]any{"answers": section})
		if err != nil {
			return false, nil, fmt.Errorf("%w: evaluate expression: %v", domain.ErrConfig, err)
		}
		if out == types.True {
			return true, []string{exprPath}, nil
		}
		return false, nil, nil

	case rule.Condition != nil:
		return EvalCondition(rule.Condition, answers)

	case rule.Conditions != nil:
		group := domain.Condition{All: rule.Conditions.All, Any: rule.Conditions.Any}
		if rule.Conditions.All == nil && rule.Conditions.Any == nil {
			return false, nil, fmt.Errorf("%w: conditions block has neither all nor any", domain.ErrConfig)
		}
		// A block with both combinators requires both to hold.
		if rule.Conditions.All != nil && rule.Conditions.Any != nil {
			allOK, allPaths, err := EvalCondition(&domain.Condition{All: rule.Conditions.All}, answers)
			if err != nil || !allOK {
				return false, nil, err
			}
			anyOK, anyPaths, err := EvalCondition(&domain.Condition{Any: rule.Conditions.Any}, answers)
			if err != nil || !anyOK {
				return false, nil, err
			}
			return true, append(allPaths, anyPaths...), nil
		}
		return EvalCondition(&group, answers)

	default:
		return false, nil, fmt.Errorf("%w: rule has no condition", domain.ErrConfig)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

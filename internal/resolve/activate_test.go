package resolve

import (
	"testing"

	"github.com/openinspect/kestrel/internal/domain"
)

func TestActivateStructuredRules(t *testing.T) {
	rules := []domain.MappingRule{
		{
			Finding: "F-SMOKE-EXPIRED",
			Condition: &domain.Condition{
				Field: "answers.safety.smokeAlarmsExpired", Operator: domain.OpEq, Value: true,
			},
		},
		{
			Finding: "F-SB-OLD",
			Condition: &domain.Condition{
				Field: "answers.switchboard.ageYears", Operator: domain.OpGte, Value: 25,
			},
		},
		{
			// Second rule for the same finding via a different path.
			Finding: "F-SB-OLD",
			Condition: &domain.Condition{
				Field: "answers.switchboard.material", Operator: domain.OpEq, Value: "asbestos",
			},
		},
	}

	act := CompileRules(rules)
	activations, diags := act.Activate(testAnswers())

	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	if len(activations) != 2 {
		t.Fatalf("activations = %d, want 2", len(activations))
	}
	// Output is sorted by finding ID.
	if activations[0].FindingID != "F-SB-OLD" || activations[1].FindingID != "F-SMOKE-EXPIRED" {
		t.Errorf("order = %v", activations)
	}
	// Both rules for F-SB-OLD fired; paths accumulate without duplicates.
	if len(activations[0].Paths) != 2 {
		t.Errorf("paths = %v, want both triggering leaves", activations[0].Paths)
	}
}

func TestActivateExpressionRules(t *testing.T) {
	rules := []domain.MappingRule{
		{
			Finding:    "F-SB-OLD",
			Expression: `answers.switchboard.ageYears >= 25 && answers.switchboard.material == "asbestos"`,
		},
	}

	act := CompileRules(rules)
	activations, diags := act.Activate(testAnswers())

	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	if len(activations) != 1 || activations[0].FindingID != "F-SB-OLD" {
		t.Fatalf("activations = %v", activations)
	}
	if len(activations[0].Paths) != 1 || activations[0].Paths[0] != exprPath {
		t.Errorf("paths = %v", activations[0].Paths)
	}

	t.Run("GuardedSectionAbsent", func(t *testing.T) {
		guarded := []domain.MappingRule{
			{
				Finding:    "F-WIRING-DIY",
				Expression: `has(answers.wiring) && answers.wiring.diyObserved == true`,
			},
		}
		act := CompileRules(guarded)

		// No wiring section: the guard holds the rule off without a
		// diagnostic.
		activations, diags := act.Activate(map[string]any{
			"answers": map[string]any{
				"safety": map[string]any{"smokeAlarmsExpired": true},
			},
		})
		if len(diags) != 0 || len(activations) != 0 {
			t.Fatalf("absent section: activations = %v, diags = %v", activations, diags)
		}

		// With the section present the same rule fires.
		activations, diags = act.Activate(map[string]any{
			"answers": map[string]any{
				"wiring": map[string]any{"diyObserved": true},
			},
		})
		if len(diags) != 0 {
			t.Fatalf("diags = %v", diags)
		}
		if len(activations) != 1 || activations[0].FindingID != "F-WIRING-DIY" {
			t.Fatalf("activations = %v", activations)
		}
	})
}

func TestActivateSkipsBadRules(t *testing.T) {
	rules := []domain.MappingRule{
		{
			Finding:    "F-BAD-EXPR",
			Expression: "answers.((",
		},
		{
			Finding:    "F-NOT-BOOL",
			Expression: "1 + 1",
		},
		{
			Finding: "F-NO-CONDITION",
		},
		{
			Finding: "F-GOOD",
			Condition: &domain.Condition{
				Field: "answers.safety.smokeAlarmsExpired", Operator: domain.OpEq, Value: true,
			},
		},
	}

	act := CompileRules(rules)
	activations, diags := act.Activate(testAnswers())

	// One good rule still activates; the three bad ones each produce a
	// config diagnostic.
	if len(activations) != 1 || activations[0].FindingID != "F-GOOD" {
		t.Fatalf("activations = %v", activations)
	}
	if len(diags) != 3 {
		t.Fatalf("diags = %d: %v", len(diags), diags)
	}
	for _, d := range diags {
		if d.Kind != domain.DiagConfig {
			t.Errorf("diag kind = %s", d.Kind)
		}
	}
}

func TestActivateConditionsBlock(t *testing.T) {
	rules := []domain.MappingRule{
		{
			Finding: "F-COMBINED",
			Conditions: &domain.ConditionGroup{
				All: []domain.Condition{
					{Field: "answers.safety.smokeAlarmsExpired", Operator: domain.OpEq, Value: true},
				},
				Any: []domain.Condition{
					{Field: "answers.switchboard.ageYears", Operator: domain.OpGte, Value: 25},
					{Field: "answers.switchboard.ageYears", Operator: domain.OpGte, Value: 50},
				},
			},
		},
	}

	act := CompileRules(rules)
	activations, diags := act.Activate(testAnswers())

	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	if len(activations) != 1 {
		t.Fatalf("activations = %v", activations)
	}
	// One path from the all block, one from the matching any member.
	if len(activations[0].Paths) != 2 {
		t.Errorf("paths = %v", activations[0].Paths)
	}
}

func TestActivateIsDeterministic(t *testing.T) {
	rules := []domain.MappingRule{
		{Finding: "F-B", Condition: &domain.Condition{Field: "answers.safety.smokeAlarmsExpired", Operator: domain.OpEq, Value: true}},
		{Finding: "F-A", Condition: &domain.Condition{Field: "answers.safety.smokeAlarmsExpired", Operator: domain.OpEq, Value: true}},
	}

	act := CompileRules(rules)
	for i := 0; i < 10; i++ {
		activations, _ := act.Activate(testAnswers())
		if activations[0].FindingID != "F-A" || activations[1].FindingID != "F-B" {
			t.Fatalf("iteration %d: order = %v", i, activations)
		}
	}
}

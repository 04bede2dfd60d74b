package snapshot

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openinspect/kestrel/internal/domain"
)

const rulesYAML = `
version: "2026.09"
rules:
  - finding: F-SMOKE-EXPIRED
    condition:
      field: answers.safety.smokeAlarmsExpired
      operator: eq
      value: true
  - finding: F-UNKNOWN
    condition:
      field: answers.misc.x
      operator: eq
      value: 1
rule_overrides:
  F-SMOKE-EXPIRED:
    urgency: IMMEDIATE
hard_overrides:
  F-ASBESTOS-PANEL:
    safety: HIGH
    urgency: IMMEDIATE
    liability: HIGH
`

const catalogYAML = `
findings:
  F-SMOKE-EXPIRED:
    finding_id: F-SMOKE-EXPIRED
    title: Expired smoke alarms
    system_group: smoke_alarms
  F-ASBESTOS-PANEL:
    finding_id: F-ASBESTOS-PANEL
    title: Asbestos switchboard panel
    system_group: switchboard
seeds:
  F-SMOKE-EXPIRED:
    safety: HIGH
    urgency: IMMEDIATE
    liability: HIGH
    budget_low: 150
    budget_high: 400
    priority: IMMEDIATE
    severity: 4
    likelihood: 4
    escalation: HIGH
category_defaults:
  switchboard:
    safety: MODERATE
    urgency: SHORT_TERM
    liability: MEDIUM
    budget_low: 500
    budget_high: 2000
    priority: RECOMMENDED_0_3_MONTHS
    severity: 3
    likelihood: 3
    escalation: MODERATE
default_profile:
  safety: LOW
  urgency: LONG_TERM
  liability: LOW
  budget_low: 0
  budget_high: 0
  priority: PLAN_MONITOR
  severity: 1
  likelihood: 1
  escalation: LOW
`

const matrixYAML = `
priority_matrix:
  - when: {safety: HIGH}
    then: IMMEDIATE
  - when: {urgency: SHORT_TERM}
    then: RECOMMENDED_0_3_MONTHS
  - when: {}
    then: PLAN_MONITOR
`

func writeTables(t *testing.T) domain.SnapshotConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := domain.SnapshotConfig{
		RulesPath:   filepath.Join(dir, "rules.yaml"),
		CatalogPath: filepath.Join(dir, "findings.yaml"),
		MatrixPath:  filepath.Join(dir, "priority_matrix.yaml"),
	}
	for path, body := range map[string]string{
		cfg.RulesPath:   rulesYAML,
		cfg.CatalogPath: catalogYAML,
		cfg.MatrixPath:  matrixYAML,
	} {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func TestStoreLoadsTables(t *testing.T) {
	store, err := NewStore(writeTables(t), slog.Default())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	snap := store.Current()
	if snap == nil {
		t.Fatal("Current returned nil")
	}
	if snap.Version != "2026.09" {
		t.Errorf("version = %q", snap.Version)
	}
	if len(snap.Rules) != 2 || len(snap.Matrix) != 3 {
		t.Errorf("rules = %d, matrix = %d", len(snap.Rules), len(snap.Matrix))
	}
	if snap.RuleOverrides["F-SMOKE-EXPIRED"].Urgency == nil {
		t.Error("rule override not parsed")
	}
	if snap.HardOverrides["F-ASBESTOS-PANEL"].Safety != domain.SafetyHigh {
		t.Error("hard override not parsed")
	}
}

func TestStoreSeedFallbackChain(t *testing.T) {
	store, err := NewStore(writeTables(t), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	snap := store.Current()

	if got := snap.SeedFor("F-SMOKE-EXPIRED"); got.BudgetHigh != 400 {
		t.Errorf("explicit seed not used: %+v", got)
	}
	// No seed, but the catalog maps it to switchboard → category default.
	if got := snap.SeedFor("F-ASBESTOS-PANEL"); got.BudgetHigh != 2000 {
		t.Errorf("category default not used: %+v", got)
	}
	if got := snap.SeedFor("F-NEVER-HEARD-OF"); got.Priority != domain.PriorityPlanMonitor {
		t.Errorf("default profile not used: %+v", got)
	}
}

func TestStoreRecordsDiagnosticsForUnknownFinding(t *testing.T) {
	store, err := NewStore(writeTables(t), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	diags := store.Diagnostics()
	found := false
	for _, d := range diags {
		if d.FindingID == "F-UNKNOWN" && d.Kind == domain.DiagConfig {
			found = true
		}
	}
	if !found {
		t.Errorf("expected diagnostic for rule referencing unknown finding, got %v", diags)
	}
}

func TestStoreInvalidateSwapsSnapshot(t *testing.T) {
	cfg := writeTables(t)
	store, err := NewStore(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	old := store.Current()

	// The extra rule has to land inside the rules block, ahead of the
	// override mappings.
	updated := strings.Replace(rulesYAML, "rule_overrides:", `  - finding: F-SMOKE-EXPIRED
    condition:
      field: answers.safety.alarmCount
      operator: lt
      value: 1
rule_overrides:`, 1)
	if err := os.WriteFile(cfg.RulesPath, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Invalidate(); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	fresh := store.Current()
	if fresh == old {
		t.Error("snapshot pointer did not change on reload")
	}
	if len(fresh.Rules) != 3 {
		t.Errorf("reloaded rules = %d, want 3", len(fresh.Rules))
	}
	if len(old.Rules) != 2 {
		t.Error("old snapshot mutated by reload")
	}
}

func TestStoreKeepsSnapshotOnBadReload(t *testing.T) {
	cfg := writeTables(t)
	store, err := NewStore(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	old := store.Current()

	if err := os.WriteFile(cfg.RulesPath, []byte("rules: {not: [valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Invalidate(); err == nil {
		t.Fatal("expected reload error")
	}
	if store.Current() != old {
		t.Error("failed reload should keep the previous snapshot")
	}
}

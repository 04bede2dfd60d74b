// Package snapshot loads the rule tables from YAML and serves them to
// resolutions as immutable snapshots. Reloads swap the snapshot pointer
// atomically so in-flight work keeps a consistent view.
package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openinspect/kestrel/internal/domain"
)

// rulesFile is the on-disk shape of the rules YAML.
type rulesFile struct {
	Version       string                           `yaml:"version"`
	Rules         []domain.MappingRule             `yaml:"rules"`
	RuleOverrides map[string]domain.PartialProfile `yaml:"rule_overrides"`
	HardOverrides map[string]domain.HardOverride   `yaml:"hard_overrides"`
}

// catalogFile is the on-disk shape of the finding catalog YAML.
type catalogFile struct {
	Findings         map[string]domain.FindingDef `yaml:"findings"`
	Seeds            map[string]domain.Profile    `yaml:"seeds"`
	CategoryDefaults map[string]domain.Profile    `yaml:"category_defaults"`
	Default          domain.Profile               `yaml:"default_profile"`
}

// matrixFile is the on-disk shape of the priority matrix YAML.
type matrixFile struct {
	Matrix []domain.MatrixRule `yaml:"priority_matrix"`
}

// Store implements domain.ConfigStore over the YAML rule table files.
type Store struct {
	cfg    domain.SnapshotConfig
	logger *slog.Logger

	current atomic.Pointer[domain.ConfigSnapshot]

	mu    sync.Mutex // serializes reloads
	diags []domain.Diagnostic
}

// NewStore loads the rule tables and returns a ready store. Load failures
// are fatal at startup; after that, a failed reload keeps the previous
// snapshot in place.
func NewStore(cfg domain.SnapshotConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{cfg: cfg, logger: logger}
	if err := s.Invalidate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active snapshot. Never nil after NewStore succeeds.
func (s *Store) Current() *domain.ConfigSnapshot {
	return s.current.Load()
}

// Invalidate reloads the rule tables and swaps in the new snapshot. On
// error the previous snapshot stays active.
func (s *Store) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, diags, err := s.load()
	if err != nil {
		s.logger.Error("snapshot reload failed", "error", err)
		return err
	}

	s.current.Store(snap)
	s.diags = diags

	s.logger.Info("config snapshot loaded",
		"version", snap.Version,
		"rules", len(snap.Rules),
		"findings", len(snap.Findings),
		"matrix_rules", len(snap.Matrix),
		"diagnostics", len(diags))
	return nil
}

// Diagnostics returns the non-fatal issues recorded by the last load.
func (s *Store) Diagnostics() []domain.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Diagnostic, len(s.diags))
	copy(out, s.diags)
	return out
}

func (s *Store) load() (*domain.ConfigSnapshot, []domain.Diagnostic, error) {
	var rf rulesFile
	if err := readYAML(s.cfg.RulesPath, &rf); err != nil {
		return nil, nil, fmt.Errorf("rules file: %w", err)
	}

	var cf catalogFile
	if err := readYAML(s.cfg.CatalogPath, &cf); err != nil {
		return nil, nil, fmt.Errorf("catalog file: %w", err)
	}

	var mf matrixFile
	if err := readYAML(s.cfg.MatrixPath, &mf); err != nil {
		return nil, nil, fmt.Errorf("matrix file: %w", err)
	}

	snap := &domain.ConfigSnapshot{
		Version:          rf.Version,
		LoadedAt:         time.Now().UTC(),
		Rules:            rf.Rules,
		Findings:         cf.Findings,
		Seeds:            cf.Seeds,
		CategoryDefaults: cf.CategoryDefaults,
		Default:          cf.Default,
		RuleOverrides:    rf.RuleOverrides,
		HardOverrides:    rf.HardOverrides,
		Matrix:           mf.Matrix,
	}
	if snap.Findings == nil {
		snap.Findings = map[string]domain.FindingDef{}
	}
	if snap.Seeds == nil {
		snap.Seeds = map[string]domain.Profile{}
	}

	return snap, validateSnapshot(snap), nil
}

// validateSnapshot records non-fatal issues: rules referencing unknown
// findings, malformed seeds, and matrix rows with out-of-vocabulary values.
// Flagged entries stay in the snapshot; the resolver skips them with the
// diagnostic attached to each resolution.
func validateSnapshot(snap *domain.ConfigSnapshot) []domain.Diagnostic {
	var diags []domain.Diagnostic

	for i, rule := range snap.Rules {
		if rule.Finding == "" {
			diags = append(diags, configDiag(i, "", "rule has no finding id"))
			continue
		}
		if _, ok := snap.Findings[rule.Finding]; !ok {
			diags = append(diags, configDiag(i, rule.Finding, "rule references unknown finding"))
		}
		if rule.Condition == nil && rule.Conditions == nil && rule.Expression == "" {
			diags = append(diags, configDiag(i, rule.Finding, "rule has no condition"))
		}
	}

	for id, seed := range snap.Seeds {
		if err := seed.Validate(); err != nil {
			diags = append(diags, configDiag(-1, id, fmt.Sprintf("seed profile: %v", err)))
		}
	}

	safetyVocab := map[string]bool{"": true, domain.SafetyHigh: true, domain.SafetyModerate: true, domain.SafetyLow: true}
	urgencyVocab := map[string]bool{"": true, domain.UrgencyImmediate: true, domain.UrgencyShortTerm: true, domain.UrgencyLongTerm: true}
	for i, row := range snap.Matrix {
		if !safetyVocab[row.When.Safety] {
			diags = append(diags, configDiag(i, "", fmt.Sprintf("matrix row: unknown safety value %q", row.When.Safety)))
		}
		if !urgencyVocab[row.When.Urgency] {
			diags = append(diags, configDiag(i, "", fmt.Sprintf("matrix row: unknown urgency value %q", row.When.Urgency)))
		}
		if row.Then == "" {
			diags = append(diags, configDiag(i, "", "matrix row has empty priority bucket"))
		}
	}

	return diags
}

func configDiag(index int, findingID, detail string) domain.Diagnostic {
	return domain.Diagnostic{Kind: domain.DiagConfig, RuleIndex: index, FindingID: findingID, Detail: detail}
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: parse %s: %v", domain.ErrConfig, path, err)
	}
	return nil
}

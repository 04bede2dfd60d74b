package resolve

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openinspect/kestrel/internal/domain"
)

// EngineVersion is stamped into resolution metadata.
const EngineVersion = "kestrel-1.0"

// Resolver runs a full finding resolution: activation, dimension layering,
// and priority buckets, against the current config snapshot and the
// override store. Resolution is request-scoped and synchronous; the
// compiled activator is rebuilt only when the snapshot pointer changes.
type Resolver struct {
	store domain.ConfigStore
	repo  domain.Repository // may be nil; overrides then resolve to seeds

	mu   sync.RWMutex
	snap *domain.ConfigSnapshot
	act  *Activator
}

// NewResolver creates a Resolver over a config store and override store.
func NewResolver(store domain.ConfigStore, repo domain.Repository) *Resolver {
	return &Resolver{store: store, repo: repo}
}

// activator returns the compiled activator for the current snapshot,
// recompiling expression rules when the store has swapped in a new one.
func (r *Resolver) activator() (*domain.ConfigSnapshot, *Activator) {
	snap := r.store.Current()

	r.mu.RLock()
	if r.snap == snap && r.act != nil {
		act := r.act
		r.mu.RUnlock()
		return snap, act
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap != snap || r.act == nil {
		r.act = CompileRules(snap.Rules)
		r.snap = snap
	}
	return snap, r.act
}

// Resolve evaluates the answers and returns the resolution with active
// findings, effective dimensions, priority buckets, and diagnostics.
// previewDraft layers un-published draft overrides on top of published
// values.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, answers map[string]any, previewDraft bool) (*domain.Resolution, error) {
	start := time.Now()
	snap, act := r.activator()

	activations, diags := act.Activate(answers)

	var states map[string]*domain.OverrideState
	if r.repo != nil {
		st, err := r.repo.ListOverrideStates(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		states = st
	}

	findings := make([]domain.ResolvedFinding, 0, len(activations))
	for _, activation := range activations {
		def := snap.Findings[activation.FindingID]

		dims, source, version := EffectiveDimensions(snap, activation.FindingID, states[activation.FindingID], previewDraft)
		bucket := ResolvePriority(dims, snap.Matrix)

		title := def.Title
		if title == "" {
			title = activation.FindingID
		}

		findings = append(findings, domain.ResolvedFinding{
			FindingID:        activation.FindingID,
			Title:            title,
			SystemGroup:      def.SystemGroup,
			SpaceGroup:       def.SpaceGroup,
			Tags:             def.Tags,
			Paths:            activation.Paths,
			Dimensions:       dims,
			DimensionsSource: source,
			OverrideVersion:  version,
			PriorityBucket:   bucket,
			Response:         def.Response,
		})
	}

	skipped := 0
	for _, d := range diags {
		if d.Kind == domain.DiagConfig {
			skipped++
		}
	}

	return &domain.Resolution{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Findings:    findings,
		Diagnostics: diags,
		CreatedAt:   time.Now().UTC(),
		Metadata: domain.ResolutionMetadata{
			RulesEvaluated: act.RulesCount(),
			RulesSkipped:   skipped,
			ActiveFindings: len(findings),
			TotalMs:        time.Since(start).Milliseconds(),
			EngineVersion:  EngineVersion,
		},
	}, nil
}

// Package overrides implements the dimension-override lifecycle: drafts,
// publication with optimistic concurrency, and rollback re-publication.
package overrides

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openinspect/kestrel/internal/domain"
)

// Service coordinates override writes against the repository and notifies
// the bus when the published state changes.
type Service struct {
	repo   domain.Repository
	bus    domain.EventBus
	logger *slog.Logger
}

// NewService wires an override service. The bus may be nil in tests.
func NewService(repo domain.Repository, bus domain.EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, bus: bus, logger: logger}
}

// State returns the override state for one finding. A finding with no
// history gets an empty state, not ErrNotFound.
func (s *Service) State(ctx context.Context, tenantID, findingID string) (*domain.OverrideState, error) {
	return s.repo.GetOverrideState(ctx, tenantID, findingID)
}

// SaveDraft stores dims as the finding's draft. A draft saved over an
// existing draft replaces it under a fresh version; published state is
// untouched until Publish.
func (s *Service) SaveDraft(ctx context.Context, tenantID, findingID string, dims domain.PartialProfile, note, updatedBy string) (*domain.DimensionOverride, error) {
	if dims.IsEmpty() {
		return nil, fmt.Errorf("%w: draft has no dimension edits", domain.ErrValidation)
	}

	state, err := s.repo.GetOverrideState(ctx, tenantID, findingID)
	if err != nil {
		return nil, err
	}

	ov := &domain.DimensionOverride{
		FindingID:  findingID,
		Version:    state.NextVersion(),
		Dimensions: dims,
		Note:       note,
		UpdatedBy:  updatedBy,
		CreatedAt:  time.Now().UTC(),
		Draft:      true,
	}
	if err := s.repo.SaveDraft(ctx, tenantID, ov); err != nil {
		return nil, err
	}

	s.logger.Info("draft saved",
		"tenant_id", tenantID, "finding_id", findingID, "version", ov.Version)
	return ov, nil
}

// Publish promotes the draft with the given version to active. Callers send
// the version they last saw; if the draft has moved on, ErrConflict comes
// back and nothing changes.
func (s *Service) Publish(ctx context.Context, tenantID, findingID string, version int) (*domain.OverrideState, error) {
	if err := s.repo.Publish(ctx, tenantID, findingID, version); err != nil {
		return nil, err
	}

	state, err := s.repo.GetOverrideState(ctx, tenantID, findingID)
	if err != nil {
		return nil, err
	}

	s.notifyPublished(ctx, tenantID, findingID, version, "publish")
	return state, nil
}

// PublishBulk promotes the drafts of several findings in one call. Every
// finding must hold a draft at exactly the given version; a single stale or
// missing draft rejects the whole batch before anything is written.
func (s *Service) PublishBulk(ctx context.Context, tenantID string, findingIDs []string, version int) (map[string]*domain.OverrideState, error) {
	for _, id := range findingIDs {
		state, err := s.repo.GetOverrideState(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		if state.Draft == nil || state.Draft.Version != version {
			return nil, fmt.Errorf("%w: finding %s has no draft at version %d", domain.ErrConflict, id, version)
		}
	}

	out := make(map[string]*domain.OverrideState, len(findingIDs))
	for _, id := range findingIDs {
		state, err := s.Publish(ctx, tenantID, id, version)
		if err != nil {
			return out, err
		}
		out[id] = state
	}
	return out, nil
}

// RollbackBulk re-publishes a historical version across several findings.
// Validation runs for the full batch before the first write.
func (s *Service) RollbackBulk(ctx context.Context, tenantID string, findingIDs []string, toVersion int) (map[string]*domain.DimensionOverride, error) {
	for _, id := range findingIDs {
		state, err := s.repo.GetOverrideState(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		found := false
		for i := range state.History {
			if state.History[i].Version == toVersion && !state.History[i].Draft {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: override version %d for finding %s", domain.ErrNotFound, toVersion, id)
		}
	}

	out := make(map[string]*domain.DimensionOverride, len(findingIDs))
	for _, id := range findingIDs {
		ov, err := s.Rollback(ctx, tenantID, id, toVersion)
		if err != nil {
			return out, err
		}
		out[id] = ov
	}
	return out, nil
}

// Discard drops the draft, leaving published state as it was.
func (s *Service) Discard(ctx context.Context, tenantID, findingID string) error {
	return s.repo.DiscardDraft(ctx, tenantID, findingID)
}

// Reset discards the draft and, when clearPublished is set, retires the
// active override so the finding falls back to its seed profile.
func (s *Service) Reset(ctx context.Context, tenantID, findingID string, clearPublished bool) (*domain.OverrideState, error) {
	if err := s.repo.DiscardDraft(ctx, tenantID, findingID); err != nil {
		return nil, err
	}
	if clearPublished {
		state, err := s.repo.GetOverrideState(ctx, tenantID, findingID)
		if err != nil {
			return nil, err
		}
		if state.Active != nil {
			// An inactive, non-draft row retires the published override
			// while keeping history append-only.
			retire := &domain.DimensionOverride{
				FindingID:  findingID,
				Version:    state.NextVersion(),
				Dimensions: domain.PartialProfile{},
				Note:       "reset to seed",
				CreatedAt:  time.Now().UTC(),
			}
			if err := s.repo.InsertVersion(ctx, tenantID, retire); err != nil {
				return nil, err
			}
			s.notifyPublished(ctx, tenantID, findingID, retire.Version, "reset")
		}
	}
	return s.repo.GetOverrideState(ctx, tenantID, findingID)
}

// Rollback re-publishes a historical version as a fresh version. The old
// row is copied, never reactivated in place, so history stays append-only.
func (s *Service) Rollback(ctx context.Context, tenantID, findingID string, toVersion int) (*domain.DimensionOverride, error) {
	state, err := s.repo.GetOverrideState(ctx, tenantID, findingID)
	if err != nil {
		return nil, err
	}

	var source *domain.DimensionOverride
	for i := range state.History {
		if state.History[i].Version == toVersion && !state.History[i].Draft {
			source = &state.History[i]
			break
		}
	}
	if source == nil {
		return nil, fmt.Errorf("%w: override version %d for finding %s", domain.ErrNotFound, toVersion, findingID)
	}

	copyOv := &domain.DimensionOverride{
		FindingID:  findingID,
		Version:    state.NextVersion(),
		Dimensions: source.Dimensions,
		Note:       fmt.Sprintf("rollback to v%d", toVersion),
		CreatedAt:  time.Now().UTC(),
		Active:     true,
	}
	if err := s.repo.InsertVersion(ctx, tenantID, copyOv); err != nil {
		return nil, err
	}

	s.logger.Info("override rolled back",
		"tenant_id", tenantID, "finding_id", findingID,
		"from_version", toVersion, "new_version", copyOv.Version)
	s.notifyPublished(ctx, tenantID, findingID, copyOv.Version, "rollback")
	return copyOv, nil
}

func (s *Service) notifyPublished(ctx context.Context, tenantID, findingID string, version int, action string) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"tenant_id":  tenantID,
		"finding_id": findingID,
		"version":    version,
		"action":     action,
	})
	if err := s.bus.Publish(ctx, tenantID, domain.TopicOverridePublished, payload); err != nil {
		s.logger.Warn("override publish event failed", "error", err)
	}
}

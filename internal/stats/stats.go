// Package stats tracks rolling finding-activation counts for the admin
// console's "noisy rule" view.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/openinspect/kestrel/internal/domain"
)

// Service counts finding activations in a rolling window. Counters live in
// the cache so the numbers survive process restarts on the Pro tier and
// aggregate across nodes.
type Service struct {
	cache  domain.Cache
	window time.Duration
}

// NewService creates a new activation stats service.
func NewService(cache domain.Cache, window time.Duration) *Service {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Service{cache: cache, window: window}
}

// RecordActivations bumps the counter for each activated finding and
// returns the running count per finding id. Counter failures should not
// fail the resolution that produced them; callers log and move on.
func (s *Service) RecordActivations(ctx context.Context, tenantID string, findings []domain.ResolvedFinding) (map[string]int64, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if s.cache == nil || len(findings) == 0 {
		return nil, nil
	}

	counts := make(map[string]int64, len(findings))
	for _, f := range findings {
		n, err := s.cache.IncrementCounter(ctx, tenantID, "activation:"+f.FindingID, s.window)
		if err != nil {
			return counts, fmt.Errorf("activation counter %s: %w", f.FindingID, err)
		}
		counts[f.FindingID] = n
	}
	if _, err := s.cache.IncrementCounter(ctx, tenantID, "resolutions", s.window); err != nil {
		return counts, fmt.Errorf("resolution counter: %w", err)
	}
	return counts, nil
}

package stats

import (
	"context"
	"testing"
	"time"

	"github.com/openinspect/kestrel/internal/cache"
	"github.com/openinspect/kestrel/internal/domain"
)

func TestRecordActivations(t *testing.T) {
	ctx := context.Background()
	svc := NewService(cache.NewLRUCache(100), time.Hour)

	findings := []domain.ResolvedFinding{
		{FindingID: "F-A"},
		{FindingID: "F-B"},
	}

	counts, err := svc.RecordActivations(ctx, "t1", findings)
	if err != nil {
		t.Fatalf("RecordActivations: %v", err)
	}
	if counts["F-A"] != 1 || counts["F-B"] != 1 {
		t.Errorf("first pass counts = %v", counts)
	}

	counts, err = svc.RecordActivations(ctx, "t1", findings[:1])
	if err != nil {
		t.Fatal(err)
	}
	if counts["F-A"] != 2 {
		t.Errorf("second pass F-A = %d, want 2", counts["F-A"])
	}

	// Counts are per tenant.
	counts, _ = svc.RecordActivations(ctx, "t2", findings[:1])
	if counts["F-A"] != 1 {
		t.Errorf("tenant t2 F-A = %d, want 1", counts["F-A"])
	}
}

func TestRecordActivationsRequiresTenant(t *testing.T) {
	svc := NewService(cache.NewLRUCache(10), time.Hour)
	if _, err := svc.RecordActivations(context.Background(), "", nil); err == nil {
		t.Error("expected error for empty tenant")
	}
}

func TestRecordActivationsNoFindings(t *testing.T) {
	svc := NewService(cache.NewLRUCache(10), time.Hour)
	counts, err := svc.RecordActivations(context.Background(), "t1", nil)
	if err != nil || counts != nil {
		t.Errorf("empty input: counts=%v err=%v", counts, err)
	}
}

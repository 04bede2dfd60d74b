package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/openinspect/kestrel/internal/bus"
	"github.com/openinspect/kestrel/internal/cache"
	"github.com/openinspect/kestrel/internal/domain"
	"github.com/openinspect/kestrel/internal/resolve"
	"github.com/openinspect/kestrel/internal/stats"
)

type staticStore struct {
	snap *domain.ConfigSnapshot
}

func (s *staticStore) Current() *domain.ConfigSnapshot { return s.snap }
func (s *staticStore) Invalidate() error               { return nil }

func testSnapshot() *domain.ConfigSnapshot {
	return &domain.ConfigSnapshot{
		Version: "test",
		Rules: []domain.MappingRule{
			{
				Finding: "F-SMOKE-EXPIRED",
				Condition: &domain.Condition{
					Field:    "answers.safety.smokeAlarmsExpired",
					Operator: domain.OpEq,
					Value:    true,
				},
			},
		},
		Findings: map[string]domain.FindingDef{
			"F-SMOKE-EXPIRED": {
				FindingID:   "F-SMOKE-EXPIRED",
				Title:       "Expired smoke alarms",
				SystemGroup: "smoke_alarms",
				Response: domain.ResponseText{
					Summary: "Smoke alarms are past replacement date.",
					Action:  "Replace all smoke alarms.",
				},
			},
		},
		Seeds: map[string]domain.Profile{
			"F-SMOKE-EXPIRED": {
				Safety: domain.SafetyHigh, Urgency: domain.UrgencyImmediate,
				Liability: domain.LiabilityHigh, BudgetLow: 150, BudgetHigh: 400,
				Priority: domain.PriorityImmediate, Severity: 4, Likelihood: 4,
				Escalation: domain.EscalationHigh,
			},
		},
		Matrix: []domain.MatrixRule{
			{When: domain.MatrixWhen{Safety: domain.SafetyHigh}, Then: domain.PriorityImmediate},
			{When: domain.MatrixWhen{}, Then: domain.PriorityPlanMonitor},
		},
	}
}

func TestWorkerProcessesIntake(t *testing.T) {
	ctx := context.Background()
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	resolver := resolve.NewResolver(&staticStore{snap: testSnapshot()}, nil)
	planCache := cache.NewLRUCache(100)
	statsSvc := stats.NewService(planCache, time.Hour)

	w := NewWorker(eventBus, nil, resolver, statsSvc, planCache)
	if err := w.Start(Config{TenantIDs: []string{"t1"}}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	planCh := make(chan *domain.Message, 1)
	if _, err := eventBus.Subscribe(ctx, "t1", domain.TopicPlanBuilt, func(ctx context.Context, msg *domain.Message) error {
		planCh <- msg
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	payload, _ := json.Marshal(IntakeMessage{
		InspectionID: "insp-1",
		Answers: map[string]any{
			"answers": map[string]any{
				"safety": map[string]any{
					"smokeAlarmsExpired": true,
				},
			},
			"snapshot_intake": map[string]any{
				"occupancyType": "owner_occupied",
			},
		},
	})
	if err := eventBus.Publish(ctx, "t1", domain.TopicIntakeSubmitted, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-planCh:
		var out struct {
			InspectionID string             `json:"inspectionId"`
			ResolutionID string             `json:"resolutionId"`
			Plan         *domain.ReportPlan `json:"plan"`
		}
		if err := json.Unmarshal(msg.Payload, &out); err != nil {
			t.Fatalf("plan payload: %v", err)
		}
		if out.InspectionID != "insp-1" || out.ResolutionID == "" {
			t.Errorf("plan event = %+v", out)
		}
		if out.Plan == nil || len(out.Plan.Merged.Findings) != 1 {
			t.Fatalf("plan missing findings: %+v", out.Plan)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for plan event")
	}

	// Plan should also be cached under the inspection id.
	cached, err := planCache.GetPlan(ctx, "t1", "insp-1")
	if err != nil {
		t.Fatal(err)
	}
	if cached == nil {
		t.Error("plan not cached")
	}
}

func TestWorkerResolutionEvent(t *testing.T) {
	ctx := context.Background()
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	resolver := resolve.NewResolver(&staticStore{snap: testSnapshot()}, nil)
	w := NewWorker(eventBus, nil, resolver, nil, nil)
	if err := w.Start(Config{TenantIDs: []string{"t1"}}); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	resCh := make(chan *domain.Message, 1)
	eventBus.Subscribe(ctx, "t1", domain.TopicFindingResolved, func(ctx context.Context, msg *domain.Message) error {
		resCh <- msg
		return nil
	})

	payload, _ := json.Marshal(IntakeMessage{
		InspectionID: "insp-2",
		Answers: map[string]any{
			"answers": map[string]any{
				"safety": map[string]any{"smokeAlarmsExpired": true},
			},
		},
	})
	eventBus.Publish(ctx, "t1", domain.TopicIntakeSubmitted, payload)

	select {
	case msg := <-resCh:
		var res domain.Resolution
		if err := json.Unmarshal(msg.Payload, &res); err != nil {
			t.Fatal(err)
		}
		if len(res.Findings) != 1 || res.Findings[0].FindingID != "F-SMOKE-EXPIRED" {
			t.Errorf("findings = %+v", res.Findings)
		}
		if res.Findings[0].PriorityBucket != domain.PriorityImmediate {
			t.Errorf("bucket = %s", res.Findings[0].PriorityBucket)
		}
		if res.Selection == nil {
			t.Error("selection missing from resolution")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resolution event")
	}
}

func TestWorkerStats(t *testing.T) {
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	resolver := resolve.NewResolver(&staticStore{snap: testSnapshot()}, nil)
	w := NewWorker(eventBus, nil, resolver, nil, nil)
	if err := w.Start(Config{TenantIDs: []string{"t1", "t2"}}); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	s := w.GetStats()
	if s.SubscriptionCount != 2 {
		t.Errorf("subscriptions = %d, want 2", s.SubscriptionCount)
	}
}

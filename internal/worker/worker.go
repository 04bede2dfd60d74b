// Package worker provides async intake processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/openinspect/kestrel/internal/domain"
	"github.com/openinspect/kestrel/internal/report"
	"github.com/openinspect/kestrel/internal/resolve"
	"github.com/openinspect/kestrel/internal/selection"
	"github.com/openinspect/kestrel/internal/stats"
)

// Worker consumes submitted intakes from the EventBus and runs the full
// pipeline: finding resolution, report selection, and plan assembly.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	resolver *resolve.Resolver
	stats    *stats.Service
	cache    domain.Cache
	planTTL  time.Duration

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via the
	// global subscription)
	TenantIDs []string

	// PlanTTL bounds how long built plans stay cached.
	PlanTTL time.Duration
}

// NewWorker creates a new async worker. stats and cache may be nil.
func NewWorker(bus domain.EventBus, repo domain.Repository, resolver *resolve.Resolver, statsSvc *stats.Service, planCache domain.Cache) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		resolver: resolver,
		stats:    statsSvc,
		cache:    planCache,
		planTTL:  time.Hour,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing intakes for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if cfg.PlanTTL > 0 {
		w.planTTL = cfg.PlanTTL
	}

	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicIntakeSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicIntakeSubmitted, func(ctx context.Context, msg *domain.Message) error {
		return w.processIntake(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicIntakeSubmitted,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processIntake(ctx, msg.TenantID, msg)
}

// IntakeMessage is the message payload for intake processing.
type IntakeMessage struct {
	InspectionID string                     `json:"inspectionId"`
	TenantID     string                     `json:"tenantId"`
	TraceID      string                     `json:"traceId,omitempty"`
	Answers      map[string]any             `json:"answers"`
	PreviewDraft bool                       `json:"previewDraft,omitempty"`
	Overrides    *domain.SelectionOverrides `json:"overrides,omitempty"`
}

// processIntake runs one intake through the full pipeline.
func (w *Worker) processIntake(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var intake IntakeMessage
	if err := json.Unmarshal(msg.Payload, &intake); err != nil {
		slog.Error("failed to parse intake message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if intake.TenantID != "" {
		tenantID = intake.TenantID
	}

	traceID := intake.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing intake",
		"inspection_id", intake.InspectionID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Resolve findings against the rule tables
	resolution, err := w.resolver.Resolve(ctx, tenantID, intake.Answers, intake.PreviewDraft)
	if err != nil {
		slog.Error("finding resolution failed",
			"inspection_id", intake.InspectionID,
			"error", err,
		)
		return err
	}
	resolution.InspectionID = intake.InspectionID
	resolution.Metadata.TraceID = traceID

	// 2. Extract signals and resolve the report selection
	signals := selection.ExtractSignals(intake.Answers)
	sel := selection.ResolveReportSelection(signals, intake.Overrides)
	resolution.Selection = &sel

	// 3. Assemble the report plan
	plan := report.BuildReportPlan(report.BuildInput{
		Inspection: domain.Inspection{
			ID:       intake.InspectionID,
			Findings: resolution.Findings,
		},
		Profile: sel.Profile,
		Modules: sel.Modules,
	})
	resolution.Plan = plan

	// 4. Persist
	if w.repo != nil {
		if err := w.repo.SaveResolution(ctx, tenantID, resolution); err != nil {
			slog.Error("failed to save resolution",
				"inspection_id", intake.InspectionID,
				"error", err,
			)
		}
	}
	if w.cache != nil && intake.InspectionID != "" {
		if err := w.cache.SetPlan(ctx, tenantID, intake.InspectionID, plan, w.planTTL); err != nil {
			slog.Warn("failed to cache plan",
				"inspection_id", intake.InspectionID,
				"error", err,
			)
		}
	}

	// 5. Activation stats
	if w.stats != nil {
		if _, err := w.stats.RecordActivations(ctx, tenantID, resolution.Findings); err != nil {
			slog.Warn("failed to record activation stats", "error", err)
		}
	}

	// 6. Publish results
	resultPayload, _ := json.Marshal(resolution)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicFindingResolved, resultPayload); err != nil {
		slog.Error("failed to publish resolution",
			"inspection_id", intake.InspectionID,
			"error", err,
		)
	}

	planPayload, _ := json.Marshal(map[string]any{
		"inspectionId": intake.InspectionID,
		"resolutionId": resolution.ID,
		"plan":         plan,
	})
	if err := w.bus.Publish(ctx, tenantID, domain.TopicPlanBuilt, planPayload); err != nil {
		slog.Error("failed to publish plan",
			"inspection_id", intake.InspectionID,
			"error", err,
		)
	}

	slog.Info("intake processed",
		"inspection_id", intake.InspectionID,
		"tenant_id", tenantID,
		"active_findings", len(resolution.Findings),
		"selection_source", sel.Source,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

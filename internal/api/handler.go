package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/openinspect/kestrel/internal/domain"
	"github.com/openinspect/kestrel/internal/overrides"
	"github.com/openinspect/kestrel/internal/report"
	"github.com/openinspect/kestrel/internal/resolve"
	"github.com/openinspect/kestrel/internal/selection"
	"github.com/openinspect/kestrel/internal/snapshot"
	"github.com/openinspect/kestrel/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	store     *snapshot.Store
	resolver  *resolve.Resolver
	overrides *overrides.Service
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, store *snapshot.Store, resolver *resolve.Resolver, overrideSvc *overrides.Service, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		store:     store,
		resolver:  resolver,
		overrides: overrideSvc,
		version:   version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// FindingGroups carries a finding's catalog grouping on listing rows.
type FindingGroups struct {
	SystemGroup string   `json:"system_group,omitempty"`
	SpaceGroup  string   `json:"space_group,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// FindingRow is one item of the admin console listing.
type FindingRow struct {
	FindingID        string         `json:"finding_id"`
	Title            string         `json:"title"`
	Groups           FindingGroups  `json:"groups"`
	Dimensions       domain.Profile `json:"dimensions_effective"`
	DimensionsSource string         `json:"dimensions_source"`
	OverrideVersion  int            `json:"override_version,omitempty"`
	HasDraft         bool           `json:"has_draft"`
	PriorityBucket   string         `json:"priority_bucket"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
}

// ListMeta is the pagination envelope on the listing response.
type ListMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// ListFindings handles GET /findings: the full catalog with effective
// dimensions, filter facets and pagination for the admin console.
func (h *Handler) ListFindings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	snap := h.store.Current()

	previewDraft := r.URL.Query().Get("preview") == "draft"

	var states map[string]*domain.OverrideState
	if h.repo != nil {
		st, err := h.repo.ListOverrideStates(ctx, tenantID)
		if err != nil {
			slog.Error("failed to list override states", "tenant", tenantID, "error", err)
			writeError(w, err)
			return
		}
		states = st
	}

	rows := make([]FindingRow, 0, len(snap.Findings))
	for id, def := range snap.Findings {
		dims, source, version := resolve.EffectiveDimensions(snap, id, states[id], previewDraft)
		row := FindingRow{
			FindingID: id,
			Title:     def.Title,
			Groups: FindingGroups{
				SystemGroup: def.SystemGroup,
				SpaceGroup:  def.SpaceGroup,
				Tags:        def.Tags,
			},
			Dimensions:       dims,
			DimensionsSource: source,
			OverrideVersion:  version,
			PriorityBucket:   resolve.ResolvePriority(dims, snap.Matrix),
		}
		if st := states[id]; st != nil {
			row.HasDraft = st.Draft != nil
			if at := lastUpdated(st); !at.IsZero() {
				row.UpdatedAt = &at
			}
		}
		rows = append(rows, row)
	}

	q := r.URL.Query()
	rows = filterRows(rows, rowFilter{
		SystemGroup: q.Get("system_group"),
		SpaceGroup:  q.Get("space_group"),
		Tag:         q.Get("tag"),
		Safety:      q.Get("safety"),
		Urgency:     q.Get("urgency"),
		Liability:   q.Get("liability"),
		Query:       q.Get("query"),
	})
	sortRows(rows, q.Get("sort"), q.Get("order"))
	facets := buildFacets(rows)

	page, pageSize := pagination(r)
	total := len(rows)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"meta": ListMeta{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: (total + pageSize - 1) / pageSize,
		},
		"facets": facets,
		"items":  rows[start:end],
	})
}

// lastUpdated is the creation time of the newest override row, draft or not.
func lastUpdated(st *domain.OverrideState) time.Time {
	var at time.Time
	for i := range st.History {
		if st.History[i].CreatedAt.After(at) {
			at = st.History[i].CreatedAt
		}
	}
	return at
}

// FindingDetail is the response for GET /findings/{id}.
type FindingDetail struct {
	Definition          domain.FindingDef          `json:"definition"`
	SeedDimensions      domain.Profile             `json:"seed_dimensions"`
	ActiveOverride      *domain.DimensionOverride  `json:"active_override,omitempty"`
	DraftOverride       *domain.DimensionOverride  `json:"draft_override,omitempty"`
	DimensionsEffective domain.Profile             `json:"dimensions_effective"`
	DimensionsSource    string                     `json:"dimensions_source"`
	OverrideVersion     int                        `json:"override_version,omitempty"`
	PriorityBucket      string                     `json:"priority_bucket"`
	History             []domain.DimensionOverride `json:"history"`
}

// GetFinding handles GET /findings/{id}.
func (h *Handler) GetFinding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	findingID := chi.URLParam(r, "id")
	snap := h.store.Current()

	def, ok := snap.Findings[findingID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "finding not found",
		})
		return
	}

	var state *domain.OverrideState
	if h.repo != nil {
		st, err := h.repo.GetOverrideState(ctx, tenantID, findingID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get override state", "finding", findingID, "error", err)
			writeError(w, err)
			return
		}
		state = st
	}

	previewDraft := r.URL.Query().Get("preview") == "draft"
	dims, source, version := resolve.EffectiveDimensions(snap, findingID, state, previewDraft)

	detail := FindingDetail{
		Definition:          def,
		SeedDimensions:      snap.SeedFor(findingID),
		DimensionsEffective: dims,
		DimensionsSource:    source,
		OverrideVersion:     version,
		PriorityBucket:      resolve.ResolvePriority(dims, snap.Matrix),
		History:             []domain.DimensionOverride{},
	}
	if state != nil {
		detail.ActiveOverride = state.Active
		detail.DraftOverride = state.Draft
		detail.History = state.History
	}
	writeJSON(w, http.StatusOK, detail)
}

// OverrideRequest is the request body for POST /findings/{id}/override.
type OverrideRequest struct {
	Dimensions domain.PartialProfile `json:"dimensions"`
	Note       string                `json:"note,omitempty"`
	UpdatedBy  string                `json:"updated_by,omitempty"`
}

// SaveOverrideDraft handles POST /findings/{id}/override: saves or replaces
// the draft override for a finding.
func (h *Handler) SaveOverrideDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	findingID := chi.URLParam(r, "id")

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if _, ok := h.store.Current().Findings[findingID]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "finding not found",
		})
		return
	}

	draft, err := h.overrides.SaveDraft(ctx, tenantID, findingID, req.Dimensions, req.Note, req.UpdatedBy)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, draft)
}

// PublishRequest is the request body for publish and rollback operations.
// Single-finding calls send finding_id; the bulk console flow sends
// finding_ids and the whole batch succeeds or fails together.
type PublishRequest struct {
	FindingID  string   `json:"finding_id,omitempty"`
	FindingIDs []string `json:"finding_ids,omitempty"`
	Version    int      `json:"version"`
}

func (req *PublishRequest) targets() []string {
	if len(req.FindingIDs) > 0 {
		return req.FindingIDs
	}
	if req.FindingID != "" {
		return []string{req.FindingID}
	}
	return nil
}

// PublishOverride handles POST /findings/dimensions/publish: promotes the
// draft at a specific version to active. A superseded version yields 409;
// in a bulk request one stale draft rejects the whole batch.
func (h *Handler) PublishOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	ids := req.targets()
	if len(ids) == 0 || req.Version <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "finding_id (or finding_ids) and a positive version are required",
		})
		return
	}

	if len(ids) > 1 {
		states, err := h.overrides.PublishBulk(ctx, tenantID, ids, req.Version)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, states)
		return
	}

	state, err := h.overrides.Publish(ctx, tenantID, ids[0], req.Version)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// RollbackOverride handles POST /findings/dimensions/rollback: copies a
// historical version forward as a fresh active version.
func (h *Handler) RollbackOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	ids := req.targets()
	if len(ids) == 0 || req.Version <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "finding_id (or finding_ids) and a positive version are required",
		})
		return
	}

	if len(ids) > 1 {
		ovs, err := h.overrides.RollbackBulk(ctx, tenantID, ids, req.Version)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ovs)
		return
	}

	ov, err := h.overrides.Rollback(ctx, tenantID, ids[0], req.Version)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ov)
}

// ResetRequest is the request body for POST /findings/{id}/override/reset.
type ResetRequest struct {
	ClearPublished bool `json:"clear_published,omitempty"`
}

// ResetOverride handles POST /findings/{id}/override/reset: discards the
// draft and, when requested, retires the published override back to seed.
func (h *Handler) ResetOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	findingID := chi.URLParam(r, "id")

	var req ResetRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	state, err := h.overrides.Reset(ctx, tenantID, findingID, req.ClearPublished)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// ResolveRequest is the request body for POST /resolve.
type ResolveRequest struct {
	InspectionID string                     `json:"inspectionId,omitempty"`
	Answers      map[string]interface{}     `json:"answers"`
	PreviewDraft bool                       `json:"previewDraft,omitempty"`
	Overrides    *domain.SelectionOverrides `json:"overrides,omitempty"`
	BuildPlan    bool                       `json:"buildPlan,omitempty"`
	Persist      bool                       `json:"persist,omitempty"`
}

// Resolve handles POST /resolve: synchronous resolution of intake answers
// into active findings, with optional selection + plan assembly in one call.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Answers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "answers are required",
		})
		return
	}

	resolution, err := h.resolver.Resolve(ctx, tenantID, req.Answers, req.PreviewDraft)
	if err != nil {
		slog.Error("resolution failed", "tenant", tenantID, "error", err)
		writeError(w, err)
		return
	}
	resolution.InspectionID = req.InspectionID
	resolution.Metadata.TraceID = traceID

	if req.BuildPlan {
		sig := selection.ExtractSignals(req.Answers)
		sel := selection.ResolveReportSelection(sig, req.Overrides)
		resolution.Selection = &sel

		plan := report.BuildReportPlan(report.BuildInput{
			Inspection: domain.Inspection{
				ID:       req.InspectionID,
				Findings: resolution.Findings,
			},
			Profile: sel.Profile,
			Modules: sel.Modules,
		})
		resolution.Plan = plan

		if h.cache != nil && req.InspectionID != "" {
			if err := h.cache.SetPlan(ctx, tenantID, req.InspectionID, plan, time.Hour); err != nil {
				slog.Warn("failed to cache plan", "inspection", req.InspectionID, "error", err)
			}
		}
	}

	if req.Persist && h.repo != nil {
		if err := h.repo.SaveResolution(ctx, tenantID, resolution); err != nil {
			slog.Error("failed to save resolution", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, resolution)
}

// GetResolution retrieves a persisted resolution by ID.
func (h *Handler) GetResolution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	resID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	res, err := h.repo.GetResolution(ctx, tenantID, resID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// IntakeRequest is the request body for POST /intake.
type IntakeRequest struct {
	InspectionID string                     `json:"inspectionId,omitempty"`
	Answers      map[string]interface{}     `json:"answers"`
	PreviewDraft bool                       `json:"previewDraft,omitempty"`
	Overrides    *domain.SelectionOverrides `json:"overrides,omitempty"`
}

// SubmitIntake handles POST /intake: accepts an intake and queues it for
// async processing by the worker.
func (h *Handler) SubmitIntake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req IntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Answers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "answers are required",
		})
		return
	}

	inspectionID := req.InspectionID
	if inspectionID == "" {
		inspectionID = uuid.New().String()
	}

	msg := worker.IntakeMessage{
		InspectionID: inspectionID,
		TenantID:     tenantID,
		TraceID:      traceID,
		Answers:      req.Answers,
		PreviewDraft: req.PreviewDraft,
		Overrides:    req.Overrides,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode intake",
		})
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicIntakeSubmitted, payload); err != nil {
		slog.Error("failed to publish intake", "tenant", tenantID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "intake queue unavailable",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"inspectionId": inspectionID,
		"status":       "queued",
	})
}

// SelectionRequest is the request body for POST /selection/resolve.
type SelectionRequest struct {
	Answers   map[string]interface{}     `json:"answers"`
	Overrides *domain.SelectionOverrides `json:"overrides,omitempty"`
}

// SelectionResponse is the response for POST /selection/resolve.
type SelectionResponse struct {
	Signals   domain.Signals   `json:"signals"`
	Selection domain.Selection `json:"selection"`
}

// ResolveSelection handles POST /selection/resolve: extracts signals from
// raw answers and resolves the report profile and module set.
func (h *Handler) ResolveSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	sig := selection.ExtractSignals(req.Answers)
	sel := selection.ResolveReportSelection(sig, req.Overrides)

	writeJSON(w, http.StatusOK, SelectionResponse{
		Signals:   sig,
		Selection: sel,
	})
}

// BuildPlanRequest is the request body for POST /plans/build.
type BuildPlanRequest struct {
	Inspection domain.Inspection `json:"inspection"`
	Profile    string            `json:"profile"`
	Modules    []string          `json:"modules"`
}

// BuildPlan handles POST /plans/build: assembles a report plan from
// already-resolved findings and a selection.
func (h *Handler) BuildPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req BuildPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Profile == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profile is required",
		})
		return
	}

	plan := report.BuildReportPlan(report.BuildInput{
		Inspection: req.Inspection,
		Profile:    req.Profile,
		Modules:    req.Modules,
	})

	if h.cache != nil && req.Inspection.ID != "" {
		if err := h.cache.SetPlan(ctx, tenantID, req.Inspection.ID, plan, time.Hour); err != nil {
			slog.Warn("failed to cache plan", "inspection", req.Inspection.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, plan)
}

// ReloadConfig handles POST /config/reload: reloads the rule tables from
// disk and returns load diagnostics. A failed reload keeps the previous
// snapshot serving.
func (h *Handler) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Invalidate(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":       fmt.Sprintf("reload failed: %v", err),
			"diagnostics": h.store.Diagnostics(),
		})
		return
	}

	snap := h.store.Current()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "reloaded",
		"version":     snap.Version,
		"rules":       len(snap.Rules),
		"findings":    len(snap.Findings),
		"diagnostics": h.store.Diagnostics(),
	})
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrConfig):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// rowFilter matches a listing row against the console's filter controls.
type rowFilter struct {
	SystemGroup string
	SpaceGroup  string
	Tag         string
	Safety      string
	Urgency     string
	Liability   string
	Query       string
}

func (f rowFilter) empty() bool {
	return f == rowFilter{}
}

func (f rowFilter) matches(row FindingRow) bool {
	if f.SystemGroup != "" && row.Groups.SystemGroup != f.SystemGroup {
		return false
	}
	if f.SpaceGroup != "" && row.Groups.SpaceGroup != f.SpaceGroup {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range row.Groups.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Safety != "" && row.Dimensions.Safety != f.Safety {
		return false
	}
	if f.Urgency != "" && row.Dimensions.Urgency != f.Urgency {
		return false
	}
	if f.Liability != "" && row.Dimensions.Liability != f.Liability {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(row.Title), q) &&
			!strings.Contains(strings.ToLower(row.FindingID), q) {
			return false
		}
	}
	return true
}

func filterRows(rows []FindingRow, f rowFilter) []FindingRow {
	if f.empty() {
		return rows
	}
	out := rows[:0]
	for _, row := range rows {
		if f.matches(row) {
			out = append(out, row)
		}
	}
	return out
}

// sortRows orders the listing by the requested key. Severity and budget
// default to descending (the console shows worst first); finding id defaults
// to ascending. An explicit order overrides either default.
func sortRows(rows []FindingRow, key, order string) {
	var less func(i, j int) bool
	desc := order == "desc"
	switch key {
	case "severity":
		desc = order != "asc"
		less = func(i, j int) bool {
			return rows[i].Dimensions.Severity < rows[j].Dimensions.Severity
		}
	case "budget":
		desc = order != "asc"
		less = func(i, j int) bool {
			return rows[i].Dimensions.BudgetHigh < rows[j].Dimensions.BudgetHigh
		}
	default:
		less = func(i, j int) bool {
			return rows[i].FindingID < rows[j].FindingID
		}
	}
	if desc {
		inner := less
		less = func(i, j int) bool { return inner(j, i) }
	}
	sort.SliceStable(rows, less)
}

func buildFacets(rows []FindingRow) map[string]map[string]int {
	facets := map[string]map[string]int{
		"system_group": {},
		"space_group":  {},
		"safety":       {},
		"urgency":      {},
		"liability":    {},
	}
	for _, row := range rows {
		if row.Groups.SystemGroup != "" {
			facets["system_group"][row.Groups.SystemGroup]++
		}
		if row.Groups.SpaceGroup != "" {
			facets["space_group"][row.Groups.SpaceGroup]++
		}
		facets["safety"][row.Dimensions.Safety]++
		facets["urgency"][row.Dimensions.Urgency]++
		facets["liability"][row.Dimensions.Liability]++
	}
	return facets
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}
	return page, pageSize
}

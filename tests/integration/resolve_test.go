//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel inspection
// resolution engine.
//
// These tests verify the COMPLETE resolution pipeline:
//
//	Intake answers → Mapping rules → 9-dimension layering → Priority matrix
//	→ Report selection → Plan assembly
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. INTAKE: The raw answer tree from an inspection checklist, possibly
//    wrapped in {value, status} envelopes by the intake wizard.
//
// 2. MAPPING RULE: Activates a finding when its condition holds. Rules are
//    loaded from config/rules.yaml.
//
// 3. FINDING: A catalog entry with a seeded 9-dimension risk profile
//    (safety, urgency, liability, budgets, priority, severity, likelihood,
//    escalation). Admins can layer versioned overrides above the seed.
//
// 4. PRIORITY MATRIX: Maps the resolved safety/urgency/liability triplet to
//    a report bucket: IMMEDIATE, RECOMMENDED_0_3_MONTHS, or PLAN_MONITOR.
//
// 5. PLAN: The merged report content, per profile (owner/investor/tenant)
//    and selected modules (energy/lifecycle/risk).
//
// REQUIRED SETUP: a running Kestrel with the shipped config/ rule tables:
//
//	go run cmd/kestrel/main.go
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

// ResolveRequest is the intake sent to POST /resolve
type ResolveRequest struct {
	InspectionID string         `json:"inspectionId,omitempty"`
	Answers      map[string]any `json:"answers"`
	PreviewDraft bool           `json:"previewDraft,omitempty"`
	BuildPlan    bool           `json:"buildPlan,omitempty"`
	Persist      bool           `json:"persist,omitempty"`
}

// ResolveResponse is what POST /resolve returns
type ResolveResponse struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenantId"`
	Findings []Finding `json:"findings"`
	Selection *struct {
		Profile string   `json:"profile"`
		Modules []string `json:"modules"`
		Source  string   `json:"source"`
	} `json:"selection,omitempty"`
	Plan        *Plan        `json:"plan,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Metadata    struct {
		RulesEvaluated int    `json:"rulesEvaluated"`
		ActiveFindings int    `json:"activeFindings"`
		EngineVersion  string `json:"engineVersion"`
	} `json:"metadata"`
}

type Finding struct {
	FindingID        string   `json:"findingId"`
	Title            string   `json:"title"`
	SystemGroup      string   `json:"systemGroup"`
	Paths            []string `json:"triggeringPaths"`
	DimensionsSource string   `json:"dimensionsSource"`
	PriorityBucket   string   `json:"priorityBucket"`
	Dimensions       struct {
		Safety     string  `json:"safety"`
		Urgency    string  `json:"urgency"`
		Liability  string  `json:"liability"`
		BudgetLow  float64 `json:"budget_low"`
		BudgetHigh float64 `json:"budget_high"`
		Severity   int     `json:"severity"`
	} `json:"dimensions"`
}

type Plan struct {
	Merged struct {
		ExecutiveSummary []PlanEntry `json:"executiveSummary"`
		WhatThisMeans    []PlanEntry `json:"whatThisMeans"`
		CapexRows        []CapexRow  `json:"capexRows"`
		Findings         []PlanEntry `json:"findings"`
	} `json:"merged"`
	SlotSourceMap map[string]struct {
		Source         string `json:"source"`
		Module         string `json:"module"`
		FallbackReason string `json:"fallbackReason"`
	} `json:"slotSourceMap"`
	ValidationFlags struct {
		Findings bool `json:"findings"`
		Capex    bool `json:"capex"`
	} `json:"validationFlags"`
}

type PlanEntry struct {
	Key    string `json:"key"`
	Text   string `json:"text"`
	Module string `json:"module"`
}

type CapexRow struct {
	Key        string  `json:"key"`
	FindingID  string  `json:"findingId"`
	BudgetLow  float64 `json:"budgetLow"`
	BudgetHigh float64 `json:"budgetHigh"`
}

type Diagnostic struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func postJSON(t *testing.T, config TestConfig, path string, reqBody, out any) int {
	t.Helper()

	body, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
		}
	}
	return resp.StatusCode
}

func resolve(t *testing.T, config TestConfig, req ResolveRequest) ResolveResponse {
	t.Helper()
	var result ResolveResponse
	if status := postJSON(t, config, "/resolve", req, &result); status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", status)
	}
	return result
}

func findingByID(findings []Finding, id string) *Finding {
	for i := range findings {
		if findings[i].FindingID == id {
			return &findings[i]
		}
	}
	return nil
}

// ============================================================================
// SCENARIO 1: Clean Property (No Findings)
// ============================================================================

func TestCleanProperty_NoFindings(t *testing.T) {
	/*
	   SCENARIO: A recently-rewired property where every checklist answer
	   is within limits.

	   EXPECTED BEHAVIOR:
	   - No mapping rule condition holds
	   - Zero findings, zero diagnostics
	*/
	config := getTestConfig()

	result := resolve(t, config, ResolveRequest{
		Answers: map[string]any{
			"answers": map[string]any{
				"safety": map[string]any{
					"smokeAlarmsExpired": false,
					"smokeAlarmCount":    3,
					"rcdMissing":         false,
					"rcdCount":           2,
					"rcdTestResult":      "pass",
				},
				"switchboard": map[string]any{
					"ageYears":       5,
					"protectionType": "circuit_breaker",
					"material":       "metal",
				},
			},
		},
	})

	if len(result.Findings) != 0 {
		t.Errorf("Expected no findings, got %d: %+v", len(result.Findings), result.Findings)
	}
	if len(result.Diagnostics) != 0 {
		t.Errorf("Expected no diagnostics, got %v", result.Diagnostics)
	}

	t.Logf("✓ Clean property: %d rules evaluated, no findings", result.Metadata.RulesEvaluated)
}

// ============================================================================
// SCENARIO 2: Expired Smoke Alarms (IMMEDIATE bucket)
// ============================================================================

func TestExpiredSmokeAlarms_ImmediateBucket(t *testing.T) {
	/*
	   SCENARIO: Smoke alarms past their 10-year expiry.

	   EXPECTED BEHAVIOR:
	   - F-SMOKE-EXPIRED activates with the triggering answer path
	   - Seed profile: safety HIGH, urgency IMMEDIATE
	   - Matrix row {safety: HIGH, urgency: IMMEDIATE} → IMMEDIATE bucket
	*/
	config := getTestConfig()

	result := resolve(t, config, ResolveRequest{
		Answers: map[string]any{
			"answers": map[string]any{
				"safety": map[string]any{"smokeAlarmsExpired": true},
			},
		},
	})

	f := findingByID(result.Findings, "F-SMOKE-EXPIRED")
	if f == nil {
		t.Fatalf("F-SMOKE-EXPIRED not activated: %+v", result.Findings)
	}
	if f.PriorityBucket != "IMMEDIATE" {
		t.Errorf("Expected IMMEDIATE bucket, got %s", f.PriorityBucket)
	}
	if f.Dimensions.Safety != "HIGH" {
		t.Errorf("Expected HIGH safety, got %s", f.Dimensions.Safety)
	}
	if len(f.Paths) != 1 || f.Paths[0] != "answers.safety.smokeAlarmsExpired" {
		t.Errorf("Unexpected triggering paths: %v", f.Paths)
	}

	t.Logf("✓ Smoke alarm finding: bucket=%s safety=%s", f.PriorityBucket, f.Dimensions.Safety)
}

// ============================================================================
// SCENARIO 3: Asbestos Panel (hard override forces escalation)
// ============================================================================

func TestAsbestosPanel_HardOverride(t *testing.T) {
	/*
	   SCENARIO: An asbestos switchboard backing panel.

	   EXPECTED BEHAVIOR:
	   - The F-ASBESTOS-PANEL seed is only MODERATE/LONG_TERM
	   - The hard override in rules.yaml forces safety HIGH, urgency
	     IMMEDIATE, liability HIGH
	   - The matrix then lands it in the IMMEDIATE bucket
	   - Budget dimensions still come from the seed
	*/
	config := getTestConfig()

	result := resolve(t, config, ResolveRequest{
		Answers: map[string]any{
			"answers": map[string]any{
				"switchboard": map[string]any{"material": "asbestos"},
			},
		},
	})

	f := findingByID(result.Findings, "F-ASBESTOS-PANEL")
	if f == nil {
		t.Fatalf("F-ASBESTOS-PANEL not activated")
	}
	if f.Dimensions.Safety != "HIGH" || f.Dimensions.Urgency != "IMMEDIATE" {
		t.Errorf("Hard override not applied: %+v", f.Dimensions)
	}
	if f.PriorityBucket != "IMMEDIATE" {
		t.Errorf("Expected IMMEDIATE bucket, got %s", f.PriorityBucket)
	}
	if f.Dimensions.BudgetHigh != 6000 {
		t.Errorf("Seed budget lost under hard override: %v", f.Dimensions.BudgetHigh)
	}

	t.Logf("✓ Asbestos panel escalated to %s", f.PriorityBucket)
}

// ============================================================================
// SCENARIO 4: Value Envelopes (intake wizard format)
// ============================================================================

func TestValueEnvelopes_Unwrapped(t *testing.T) {
	/*
	   SCENARIO: The intake wizard wraps every leaf in {value, status}.

	   EXPECTED BEHAVIOR: envelopes are transparent to rule evaluation.
	*/
	config := getTestConfig()

	result := resolve(t, config, ResolveRequest{
		Answers: map[string]any{
			"answers": map[string]any{
				"switchboard": map[string]any{
					"ageYears": map[string]any{"value": 40, "status": "answered"},
				},
			},
		},
	})

	if findingByID(result.Findings, "F-SB-OLD") == nil {
		t.Errorf("F-SB-OLD not activated through value envelope: %+v", result.Findings)
	}
}

// ============================================================================
// SCENARIO 5: Override Lifecycle (draft → preview → publish)
// ============================================================================

func TestOverrideLifecycle_EndToEnd(t *testing.T) {
	/*
	   SCENARIO: An admin raises the switchboard budget, previews the draft,
	   publishes it, and finally resets the finding to its seed.

	   EXPECTED BEHAVIOR:
	   - The draft is invisible to normal resolution
	   - previewDraft=true layers it on
	   - After publish, every resolution sees it
	   - After reset, the seed is back
	*/
	config := getTestConfig()
	intake := ResolveRequest{
		Answers: map[string]any{
			"answers": map[string]any{
				"switchboard": map[string]any{"ageYears": 30},
			},
		},
	}

	// Ensure a clean slate for the finding.
	postJSON(t, config, "/findings/F-SB-OLD/override/reset", map[string]any{"clear_published": true}, nil)

	// Save a draft.
	var draft struct {
		Version int `json:"version"`
	}
	status := postJSON(t, config, "/findings/F-SB-OLD/override", map[string]any{
		"dimensions": map[string]any{"budget_high": 8000},
		"note":       "quote received",
	}, &draft)
	if status != http.StatusCreated {
		t.Fatalf("Save draft: expected 201, got %d", status)
	}

	// Draft must not leak into normal resolution.
	result := resolve(t, config, intake)
	if f := findingByID(result.Findings, "F-SB-OLD"); f.Dimensions.BudgetHigh == 8000 {
		t.Error("Draft visible without preview")
	}

	// Preview mode layers the draft.
	preview := intake
	preview.PreviewDraft = true
	result = resolve(t, config, preview)
	f := findingByID(result.Findings, "F-SB-OLD")
	if f.Dimensions.BudgetHigh != 8000 || f.DimensionsSource != "override" {
		t.Errorf("Preview did not apply draft: %+v", f)
	}

	// Publish, then every resolution sees the override.
	status = postJSON(t, config, "/findings/dimensions/publish", map[string]any{
		"finding_id": "F-SB-OLD",
		"version":   draft.Version,
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("Publish: expected 200, got %d", status)
	}

	result = resolve(t, config, intake)
	f = findingByID(result.Findings, "F-SB-OLD")
	if f.Dimensions.BudgetHigh != 8000 || f.DimensionsSource != "override" {
		t.Errorf("Published override not applied: %+v", f)
	}

	// Publishing the same version again must conflict.
	status = postJSON(t, config, "/findings/dimensions/publish", map[string]any{
		"finding_id": "F-SB-OLD",
		"version":   draft.Version,
	}, nil)
	if status != http.StatusConflict {
		t.Errorf("Re-publish: expected 409, got %d", status)
	}

	// Reset back to seed.
	postJSON(t, config, "/findings/F-SB-OLD/override/reset", map[string]any{"clear_published": true}, nil)
	result = resolve(t, config, intake)
	f = findingByID(result.Findings, "F-SB-OLD")
	if f.Dimensions.BudgetHigh != 3500 || f.DimensionsSource != "seed" {
		t.Errorf("Reset did not restore seed: %+v", f)
	}

	t.Log("✓ Override lifecycle: draft → preview → publish → reset")
}

// ============================================================================
// SCENARIO 6: Full Plan Assembly
// ============================================================================

func TestFullPlan_OwnerOccupied(t *testing.T) {
	/*
	   SCENARIO: An owner-occupied property with a safety finding (risk
	   module territory) and a switchboard finding (lifecycle territory).

	   EXPECTED BEHAVIOR:
	   - Selection derives the owner profile with energy + lifecycle modules
	   - The switchboard finding gets merged lifecycle content and a capex row
	   - The smoke alarm finding (risk module, not selected) falls back to
	     legacy text with a recorded reason
	   - No merged text contains an absolute guarantee phrase
	*/
	config := getTestConfig()

	result := resolve(t, config, ResolveRequest{
		InspectionID: fmt.Sprintf("it-%d", time.Now().UnixNano()),
		Answers: map[string]any{
			"answers": map[string]any{
				"safety":      map[string]any{"smokeAlarmsExpired": true},
				"switchboard": map[string]any{"ageYears": 30},
			},
			"snapshot_intake": map[string]any{
				"occupancyType": "owner_occupied",
			},
		},
		BuildPlan: true,
		Persist:   true,
	})

	if result.Selection == nil || result.Selection.Profile != "owner" {
		t.Fatalf("Expected owner selection, got %+v", result.Selection)
	}
	if result.Plan == nil {
		t.Fatal("Expected a plan")
	}

	// Lifecycle module narrates the switchboard; capex row present.
	foundCapex := false
	for _, row := range result.Plan.Merged.CapexRows {
		if row.FindingID == "F-SB-OLD" {
			foundCapex = true
			if row.BudgetHigh != 3500 {
				t.Errorf("Capex budget = %v", row.BudgetHigh)
			}
		}
	}
	if !foundCapex {
		t.Error("No capex row for F-SB-OLD")
	}

	// The slot as a whole is merged, but the risk-module finding fell
	// back to legacy text and the reason is recorded.
	src, ok := result.Plan.SlotSourceMap["whatThisMeans"]
	if !ok {
		t.Fatalf("slot sources = %v", result.Plan.SlotSourceMap)
	}
	if src.Source != "merged" || src.FallbackReason == "" {
		t.Errorf("Expected merged slot with fallback reason, got %+v", src)
	}

	if !result.Plan.ValidationFlags.Findings || !result.Plan.ValidationFlags.Capex {
		t.Errorf("Validation flags = %+v", result.Plan.ValidationFlags)
	}

	t.Logf("✓ Owner plan: %d summary entries, %d capex rows",
		len(result.Plan.Merged.ExecutiveSummary), len(result.Plan.Merged.CapexRows))
}

// ============================================================================
// SCENARIO 7: Config Reload
// ============================================================================

func TestConfigReload(t *testing.T) {
	config := getTestConfig()

	var resp struct {
		Status   string `json:"status"`
		Findings int    `json:"findings"`
	}
	status := postJSON(t, config, "/config/reload", nil, &resp)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if resp.Status != "reloaded" || resp.Findings == 0 {
		t.Errorf("Reload response = %+v", resp)
	}

	t.Logf("✓ Reloaded %d findings", resp.Findings)
}

// Benchmark tool for testing Kestrel against labeled inspection intakes.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/intakes.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled inspection intake data (with expected priority buckets)
//   2. Sends each intake to Kestrel for resolution
//   3. Compares Kestrel's worst-case bucket with the expected label
//   4. Calculates bucket accuracy, a confusion matrix, and throughput
//
// CSV columns: inspection_id, occupancy, smoke_alarms_expired,
// switchboard_age_years, has_solar, rcd_missing, expected_bucket
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// IntakeRecord represents a row from the labeled intake dataset.
type IntakeRecord struct {
	InspectionID        string
	Occupancy           string
	SmokeAlarmsExpired  bool
	SwitchboardAgeYears int
	HasSolar            bool
	RcdMissing          bool
	ExpectedBucket      string
}

// ResolveRequest is the Kestrel API request format.
type ResolveRequest struct {
	InspectionID string         `json:"inspectionId,omitempty"`
	Answers      map[string]any `json:"answers"`
}

// ResolveResponse is the subset of the resolution we score against.
type ResolveResponse struct {
	ID       string `json:"id"`
	Findings []struct {
		FindingID      string `json:"findingId"`
		PriorityBucket string `json:"priorityBucket"`
	} `json:"findings"`
	Metadata struct {
		TotalMs int64 `json:"totalMs"`
	} `json:"metadata"`
}

// Bucket severity order, worst first.
var bucketRank = map[string]int{
	"IMMEDIATE":              0,
	"RECOMMENDED_0_3_MONTHS": 1,
	"PLAN_MONITOR":           2,
}

// Metrics tracks benchmark results.
type Metrics struct {
	Correct        int64
	Incorrect      int64
	TotalProcessed int64
	TotalErrors    int64

	// confusion[expected][got]
	mu        sync.Mutex
	Confusion map[string]map[string]int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled intake CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum intakes to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each intake result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/intakes.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         KESTREL BENCHMARK - Labeled Inspection Intakes        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  cd kestrel && go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Read intake data
	fmt.Printf("\nReading intake data from %s...\n", *csvPath)
	intakes, err := readIntakeCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d intakes\n", len(intakes))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(intakes, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readIntakeCSV(path string, limit int) ([]IntakeRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var intakes []IntakeRecord

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		ageYears, _ := strconv.Atoi(record[colIndex["switchboard_age_years"]])

		intakes = append(intakes, IntakeRecord{
			InspectionID:        record[colIndex["inspection_id"]],
			Occupancy:           record[colIndex["occupancy"]],
			SmokeAlarmsExpired:  record[colIndex["smoke_alarms_expired"]] == "1",
			SwitchboardAgeYears: ageYears,
			HasSolar:            record[colIndex["has_solar"]] == "1",
			RcdMissing:          record[colIndex["rcd_missing"]] == "1",
			ExpectedBucket:      strings.TrimSpace(record[colIndex["expected_bucket"]]),
		})

		if limit > 0 && len(intakes) >= limit {
			break
		}
	}

	return intakes, nil
}

func runBenchmark(intakes []IntakeRecord, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{
		Confusion: make(map[string]map[string]int64),
	}

	// Create work channel
	work := make(chan IntakeRecord, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for intake := range work {
				start := time.Now()
				result, err := resolveIntake(client, baseURL, tenantID, intake)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", intake.InspectionID, err)
					}
					continue
				}

				got := worstBucket(result)
				if got == intake.ExpectedBucket {
					atomic.AddInt64(&metrics.Correct, 1)
				} else {
					atomic.AddInt64(&metrics.Incorrect, 1)
				}

				metrics.mu.Lock()
				if metrics.Confusion[intake.ExpectedBucket] == nil {
					metrics.Confusion[intake.ExpectedBucket] = make(map[string]int64)
				}
				metrics.Confusion[intake.ExpectedBucket][got]++
				metrics.mu.Unlock()

				if verbose {
					status := "✓"
					if got != intake.ExpectedBucket {
						status = "✗"
					}
					fmt.Printf("%s %-12s | Findings: %2d | Expected: %-22s | Got: %-22s\n",
						status,
						intake.InspectionID,
						len(result.Findings),
						intake.ExpectedBucket,
						got,
					)
				}
			}
		}()
	}

	// Send work
	for _, intake := range intakes {
		work <- intake
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

// worstBucket returns the most severe bucket across the resolved findings,
// or PLAN_MONITOR when nothing activated.
func worstBucket(res *ResolveResponse) string {
	worst := "PLAN_MONITOR"
	rank := bucketRank[worst]
	for _, f := range res.Findings {
		if r, ok := bucketRank[f.PriorityBucket]; ok && r < rank {
			worst = f.PriorityBucket
			rank = r
		}
	}
	return worst
}

func resolveIntake(client *http.Client, baseURL, tenantID string, intake IntakeRecord) (*ResolveResponse, error) {
	// Build request matching Kestrel's expected intake shape
	req := ResolveRequest{
		InspectionID: intake.InspectionID,
		Answers: map[string]any{
			"answers": map[string]any{
				"safety": map[string]any{
					"smokeAlarmsExpired": intake.SmokeAlarmsExpired,
					"rcdMissing":         intake.RcdMissing,
				},
				"switchboard": map[string]any{
					"ageYears": intake.SwitchboardAgeYears,
				},
			},
			"snapshot_intake": map[string]any{
				"occupancyType": intake.Occupancy,
				"hasSolar":      intake.HasSolar,
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/resolve", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ResolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Correct Bucket:   %d\n", m.Correct)
	fmt.Printf("   Wrong Bucket:     %d\n", m.Incorrect)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX (expected → got)\n")
	buckets := []string{"IMMEDIATE", "RECOMMENDED_0_3_MONTHS", "PLAN_MONITOR"}
	fmt.Printf("   %-24s", "")
	for _, b := range buckets {
		fmt.Printf("%-24s", b)
	}
	fmt.Println()
	for _, expected := range buckets {
		fmt.Printf("   %-24s", expected)
		for _, got := range buckets {
			fmt.Printf("%-24d", m.Confusion[expected][got])
		}
		fmt.Println()
	}

	accuracy := float64(0)
	scored := m.Correct + m.Incorrect
	if scored > 0 {
		accuracy = float64(m.Correct) / float64(scored)
	}

	fmt.Printf("\n🎯 BUCKET METRICS\n")
	fmt.Printf("   Accuracy:   %.4f  (worst-case bucket matches the label)\n", accuracy)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f intakes/sec\n", tps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if accuracy >= 0.95 {
		fmt.Println("   ✅ Rule tables agree with the labeled set")
	} else if accuracy >= 0.8 {
		fmt.Println("   ⚠️  Some buckets disagree - review the priority matrix")
	} else {
		fmt.Println("   ❌ Rule tables diverge badly from the labeled set")
	}

	fmt.Println()
}

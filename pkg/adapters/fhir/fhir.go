// Package fhir audits clinical-facility energy efficiency against
// EnergyStar-aligned benchmarks and records the result as a
// simplified HL7 FHIR R4 Observation. A real deployment would post
// the Observation to an institutional FHIR endpoint; here that POST
// is best-effort against an optional base URL and never blocks the
// audit on its outcome.
package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/ecoverify-prime/ecoverify/pkg/state"
)

// Benchmark is the EnergyStar-aligned reference for a facility type.
type Benchmark struct {
	FacilityType     string
	AvgKwhPerSqft    float64
	TargetKwhPerSqft float64
	TopQuartileKwh   float64
}

var benchmarks = map[string]Benchmark{
	"hospital":    {FacilityType: "hospital", AvgKwhPerSqft: 26.0, TargetKwhPerSqft: 21.0, TopQuartileKwh: 18.0},
	"clinic":      {FacilityType: "clinic", AvgKwhPerSqft: 18.0, TargetKwhPerSqft: 14.0, TopQuartileKwh: 11.0},
	"data_center": {FacilityType: "data_center", AvgKwhPerSqft: 100.0, TargetKwhPerSqft: 75.0, TopQuartileKwh: 60.0},
}

// BenchmarkFor returns the benchmark for facilityType, defaulting to
// "hospital" when unrecognized.
func BenchmarkFor(facilityType string) Benchmark {
	if b, ok := benchmarks[facilityType]; ok {
		return b
	}
	return benchmarks["hospital"]
}

// Audit is the result of a clinical energy-efficiency audit.
type Audit struct {
	FacilityID       string                  `json:"facility_id"`
	FacilityType     string                  `json:"facility_type"`
	EfficiencyScore  float64                 `json:"energy_efficiency_score"`
	BenchmarkPctile  int                     `json:"benchmark_percentile"`
	Observations     []state.FHIRObservation `json:"observations"`
	Recommendations  []string                `json:"recommendations"`
	ComplianceStatus string                  `json:"compliance_status"`
	Timestamp        string                  `json:"timestamp"`
}

// Client audits clinical energy efficiency and optionally mirrors the
// readings to a remote FHIR server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client that skips the remote POST when baseURL
// is empty (demo mode).
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 5 * time.Second}}
}

// AuditClinicalEnergy compares annualized per-square-foot consumption
// against the facility-type benchmark and scores it on a tiered scale
// whose top tier (at or under the top-quartile benchmark) is 95.
func (c *Client) AuditClinicalEnergy(ctx context.Context, facilityID string, energyReadings []float64, facilityType string, sqft float64) Audit {
	if sqft <= 0 {
		sqft = 50_000.0
	}
	if facilityType == "" {
		facilityType = "hospital"
	}
	benchmark := BenchmarkFor(facilityType)
	now := time.Now().UTC().Format(time.RFC3339)

	var sum float64
	for _, r := range energyReadings {
		sum += r
	}
	avgKwh := sum / maxF(float64(len(energyReadings)), 1)
	kwhPerSqft := avgKwh / sqft * 8760

	var score float64
	var percentile int
	switch {
	case kwhPerSqft <= benchmark.TopQuartileKwh:
		score, percentile = 95.0, 90
	case kwhPerSqft <= benchmark.TargetKwhPerSqft:
		score, percentile = 75.0, 60
	case kwhPerSqft <= benchmark.AvgKwhPerSqft:
		score, percentile = 50.0, 40
	default:
		ratio := kwhPerSqft / benchmark.AvgKwhPerSqft
		score = maxF(100-ratio*50, 5.0)
		percentile = int(maxF(100-ratio*40, 5))
	}

	var recommendations []string
	if score < 50 {
		recommendations = append(recommendations,
			"Schedule HVAC efficiency review within 30 days.",
			"Consider LED lighting retrofit for surgical suites.")
	}
	if score < 75 {
		recommendations = append(recommendations, "Implement occupancy-based climate control in non-critical areas.")
	}

	obsCount := len(energyReadings)
	if obsCount > 5 {
		obsCount = 5
	}
	observations := make([]state.FHIRObservation, 0, obsCount)
	for i := 0; i < obsCount; i++ {
		obs := state.FHIRObservation{FacilityID: facilityID, FacilityType: facilityType, Score: energyReadings[i], Tier: "reading"}
		observations = append(observations, obs)
		c.postObservation(ctx, facilityID, energyReadings[i])
	}

	status := "compliant"
	if score < 50 {
		status = "review_required"
	}

	return Audit{
		FacilityID:       facilityID,
		FacilityType:     facilityType,
		EfficiencyScore:  round1(score),
		BenchmarkPctile:  percentile,
		Observations:     observations,
		Recommendations:  recommendations,
		ComplianceStatus: status,
		Timestamp:        now,
	}
}

// postObservation best-effort mirrors one reading to the configured
// FHIR server. Failure is swallowed — demo and disconnected operation
// must never block an audit.
func (c *Client) postObservation(ctx context.Context, facilityID string, valueKwh float64) {
	if c.BaseURL == "" {
		return
	}
	body, _ := json.Marshal(map[string]any{
		"resourceType": "Observation",
		"id":           uuid.New().String(),
		"status":       "final",
		"code":         map[string]any{"coding": []map[string]string{{"system": "http://ecoverify.io/codes", "code": "energy-efficiency"}}},
		"valueQuantity": map[string]any{"value": valueKwh, "unit": "kWh"},
		"subject":       map[string]string{"reference": fmt.Sprintf("Location/%s", facilityID)},
	})

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/Observation", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("fhir server returned %d", resp.StatusCode)
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)); err != nil {
		slog.Debug("adapter failure", "adapter", "fhir", "facility_id", facilityID, "err", err)
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

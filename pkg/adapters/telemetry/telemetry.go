// Package telemetry simulates the Detector's building-management-system
// data plane: hourly energy and water readings with a sinusoidal
// day/night baseline, Gaussian noise, and an optional injected anomaly
// spike for demos and tests.
package telemetry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Reading is one hourly telemetry sample.
type Reading struct {
	Timestamp    time.Time `json:"timestamp"`
	Value        float64   `json:"value"`
	AnomalyScore float64   `json:"anomaly_score"`
}

// Summary aggregates a Reading series for anomaly classification.
type Summary struct {
	Avg           float64 `json:"avg"`
	Peak          float64 `json:"peak"`
	AnomalyCount  int     `json:"anomaly_count"`
	Total         float64 `json:"total"`
	HoursSampled  int     `json:"hours_sampled"`
}

// Series is one building's telemetry fetch result for a single metric.
type Series struct {
	BuildingID string    `json:"building_id"`
	Unit       string    `json:"unit"`
	Readings   []Reading `json:"readings"`
	Summary    Summary   `json:"summary"`
}

// Simulator holds the injected-anomaly queue shared across concurrent
// fetches, mirroring the original in-process MCP tool's module-level
// dict guarded by a lock.
type Simulator struct {
	mu       sync.Mutex
	injected map[string]float64 // key → severity, consumed on next fetch
	rng      *rand.Rand
	rngMu    sync.Mutex
}

// NewSimulator returns a ready-to-use telemetry simulator.
func NewSimulator() *Simulator {
	return &Simulator{
		injected: make(map[string]float64),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// InjectAnomaly queues a spike (severity clamped to [0,1]) to appear in
// the next Energy fetch for buildingID. Water fetches do not consume it;
// InjectWaterAnomaly queues the water spike separately.
func (s *Simulator) InjectAnomaly(buildingID string, severity float64) {
	if severity < 0 {
		severity = 0
	}
	if severity > 1 {
		severity = 1
	}
	s.mu.Lock()
	s.injected[buildingID] = severity
	s.mu.Unlock()
}

// InjectWaterAnomaly queues a water-specific spike, independent of the
// energy injection for the same building.
func (s *Simulator) InjectWaterAnomaly(buildingID string, severity float64) {
	if severity < 0 {
		severity = 0
	}
	if severity > 1 {
		severity = 1
	}
	s.mu.Lock()
	s.injected[buildingID+":water"] = severity
	s.mu.Unlock()
}

func (s *Simulator) takeInjected(key string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.injected[key]
	delete(s.injected, key)
	return v
}

func (s *Simulator) gauss(mean, stddev float64) float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.NormFloat64()*stddev + mean
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

// Energy returns hours of simulated hourly kWh telemetry for
// buildingID, peaking near 09:00 and troughing near 21:00 (UTC).
func (s *Simulator) Energy(buildingID string, hours int) Series {
	now := time.Now().UTC()
	injected := s.takeInjected(buildingID)

	readings := make([]Reading, 0, hours)
	var total float64
	anomalyCount := 0

	for i := 0; i < hours; i++ {
		ts := now.Add(-time.Duration(hours-1-i) * time.Hour)
		hourOfDay := float64(ts.Hour())

		baseline := 130 + 50*math.Sin((hourOfDay-3)*math.Pi/12)
		kwh := math.Max(0, baseline+s.gauss(0, 8))

		anomalyScore := 0.0
		if injected > 0 && i >= hours-3 {
			spike := baseline * injected * s.uniform(0.8, 1.2)
			kwh += spike
			anomalyScore = math.Min(1.0, 0.5+injected*0.4)
		} else if kwh > baseline*1.15 {
			anomalyScore = math.Min(1.0, (kwh-baseline)/baseline)
		}
		if anomalyScore > 0.3 {
			anomalyCount++
		}

		total += kwh
		readings = append(readings, Reading{Timestamp: ts, Value: round2(kwh), AnomalyScore: round3(anomalyScore)})
	}

	peak := peakOf(readings)
	avg := total / math.Max(float64(len(readings)), 1)

	return Series{
		BuildingID: buildingID,
		Unit:       "kwh",
		Readings:   readings,
		Summary: Summary{
			Avg:          round2(avg),
			Peak:         round2(peak),
			AnomalyCount: anomalyCount,
			Total:        round2(total),
			HoursSampled: hours,
		},
	}
}

// Water returns hours of simulated hourly gallon telemetry for
// buildingID, peaking during business hours (08:00-18:00).
func (s *Simulator) Water(buildingID string, hours int) Series {
	now := time.Now().UTC()
	injected := s.takeInjected(buildingID + ":water")

	readings := make([]Reading, 0, hours)
	var total float64
	anomalyCount := 0

	for i := 0; i < hours; i++ {
		ts := now.Add(-time.Duration(hours-1-i) * time.Hour)
		hourOfDay := ts.Hour()

		var baseline float64
		if hourOfDay >= 8 && hourOfDay <= 18 {
			baseline = 450 + 100*math.Sin(float64(hourOfDay-8)*math.Pi/10)
		} else {
			baseline = 120 + s.gauss(0, 15)
		}
		gallons := math.Max(0, baseline+s.gauss(0, 20))

		anomalyScore := 0.0
		if injected > 0 && i >= hours-3 {
			spike := baseline * injected * s.uniform(0.7, 1.3)
			gallons += spike
			anomalyScore = math.Min(1.0, 0.4+injected*0.5)
		} else if gallons > baseline*1.2 {
			anomalyScore = math.Min(1.0, (gallons-baseline)/baseline)
		}
		if anomalyScore > 0.3 {
			anomalyCount++
		}

		total += gallons
		readings = append(readings, Reading{Timestamp: ts, Value: round2(gallons), AnomalyScore: round3(anomalyScore)})
	}

	peak := peakOf(readings)
	avg := total / math.Max(float64(len(readings)), 1)

	return Series{
		BuildingID: buildingID,
		Unit:       "gallons",
		Readings:   readings,
		Summary: Summary{
			Avg:          round2(avg),
			Peak:         round2(peak),
			AnomalyCount: anomalyCount,
			Total:        round2(total),
			HoursSampled: hours,
		},
	}
}

func peakOf(readings []Reading) float64 {
	peak := 0.0
	for _, r := range readings {
		if r.Value > peak {
			peak = r.Value
		}
	}
	return peak
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

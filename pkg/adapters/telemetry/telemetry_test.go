package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnergy_ShapeAndUnits(t *testing.T) {
	s := NewSimulator()
	series := s.Energy("HQ-01", 24)

	assert.Equal(t, "HQ-01", series.BuildingID)
	assert.Equal(t, "kwh", series.Unit)
	assert.Len(t, series.Readings, 24)
	assert.Equal(t, 24, series.Summary.HoursSampled)
	for _, r := range series.Readings {
		assert.GreaterOrEqual(t, r.Value, 0.0)
		assert.GreaterOrEqual(t, r.AnomalyScore, 0.0)
		assert.LessOrEqual(t, r.AnomalyScore, 1.0)
	}
}

func TestWater_ShapeAndUnits(t *testing.T) {
	s := NewSimulator()
	series := s.Water("HQ-01", 12)

	assert.Equal(t, "gallons", series.Unit)
	assert.Len(t, series.Readings, 12)
	assert.Equal(t, 12, series.Summary.HoursSampled)
}

func TestInjectAnomaly_ElevatesRecentReadings(t *testing.T) {
	s := NewSimulator()
	s.InjectAnomaly("HQ-01", 0.9)

	series := s.Energy("HQ-01", 24)
	tail := series.Readings[len(series.Readings)-3:]
	for _, r := range tail {
		assert.Greater(t, r.AnomalyScore, 0.3)
	}
	assert.Greater(t, series.Summary.AnomalyCount, 0)
}

func TestInjectAnomaly_IsConsumedOnce(t *testing.T) {
	s := NewSimulator()
	s.InjectAnomaly("HQ-01", 0.9)

	first := s.Energy("HQ-01", 24)
	second := s.Energy("HQ-01", 24)

	assert.Greater(t, first.Summary.AnomalyCount, 0)
	for _, r := range second.Readings {
		assert.Less(t, r.AnomalyScore, 0.9)
	}
}

func TestInjectWaterAnomaly_IsIndependentOfEnergy(t *testing.T) {
	s := NewSimulator()
	s.InjectWaterAnomaly("HQ-01", 0.9)

	energy := s.Energy("HQ-01", 24)
	water := s.Water("HQ-01", 24)

	assert.Equal(t, 0, energy.Summary.AnomalyCount)
	assert.Greater(t, water.Summary.AnomalyCount, 0)
}

func TestInjectAnomaly_ClampsSeverity(t *testing.T) {
	s := NewSimulator()
	s.InjectAnomaly("HQ-01", 5.0)

	series := s.Energy("HQ-01", 3)
	last := series.Readings[len(series.Readings)-1]
	assert.LessOrEqual(t, last.AnomalyScore, 1.0)
}

func TestEnergy_PeakMatchesSummary(t *testing.T) {
	s := NewSimulator()
	series := s.Energy("HQ-02", 48)

	peak := 0.0
	for _, r := range series.Readings {
		if r.Value > peak {
			peak = r.Value
		}
	}
	assert.Equal(t, peak, series.Summary.Peak)
}

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge_AppendFieldsGrowMonotonically(t *testing.T) {
	s := Initial()
	s = Merge(s, Delta{
		Messages:       []Message{{Role: "assistant", Content: "first"}},
		DecisionTraces: nil,
		ErrorLog:       []string{"boom"},
	})
	assert.Len(t, s.Messages, 1)
	assert.Len(t, s.ErrorLog, 1)

	s = Merge(s, Delta{
		Messages: []Message{{Role: "assistant", Content: "second"}},
		ErrorLog: []string{"boom again"},
	})
	assert.Len(t, s.Messages, 2)
	assert.Equal(t, "first", s.Messages[0].Content)
	assert.Equal(t, "second", s.Messages[1].Content)
	assert.Len(t, s.ErrorLog, 2)
}

func TestMerge_ReplaceFieldsOverwrite(t *testing.T) {
	s := Initial()
	s = Merge(s, Delta{CurrentPhase: "vanguard_complete", IterationCount: 1})
	assert.Equal(t, "vanguard_complete", s.CurrentPhase)
	assert.Equal(t, 1, s.IterationCount)

	s = Merge(s, Delta{CurrentPhase: "jurist_complete"})
	assert.Equal(t, "jurist_complete", s.CurrentPhase)
	// IterationCount untouched by a delta that doesn't set it.
	assert.Equal(t, 1, s.IterationCount)
}

func TestMerge_MissingFieldsLeaveStateUnchanged(t *testing.T) {
	s := Initial()
	s = Merge(s, Delta{Anomalies: []Anomaly{{Type: "energy_spike"}}})
	before := s

	s = Merge(s, Delta{CurrentPhase: "jurist_complete"})
	assert.Equal(t, before.Anomalies, s.Anomalies)
	assert.Equal(t, before.Citations, s.Citations)
}

func TestMerge_DoesNotMutateInputState(t *testing.T) {
	s := Initial()
	s = Merge(s, Delta{Messages: []Message{{Role: "assistant", Content: "a"}}})
	snapshot := s.Clone()

	_ = Merge(s, Delta{Messages: []Message{{Role: "assistant", Content: "b"}}})
	assert.Equal(t, snapshot, s)
}

func TestMerge_GovernorApprovalReplacesTriState(t *testing.T) {
	s := Initial()
	assert.Nil(t, s.GovernorApproval)

	approved := true
	s = Merge(s, Delta{GovernorApproval: &approved})
	assert.NotNil(t, s.GovernorApproval)
	assert.True(t, *s.GovernorApproval)

	rejected := false
	s = Merge(s, Delta{GovernorApproval: &rejected})
	assert.False(t, *s.GovernorApproval)
}

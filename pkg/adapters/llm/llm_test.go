package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoverify-prime/ecoverify/pkg/adapters/edutech"
)

func TestConfig_IsConfigured(t *testing.T) {
	assert.False(t, Config{}.IsConfigured())
	assert.False(t, Config{Enabled: true}.IsConfigured())
	assert.False(t, Config{APIKey: "sk-x"}.IsConfigured())
	assert.True(t, Config{Enabled: true, APIKey: "sk-x"}.IsConfigured())
}

func TestNew_AlwaysReturnsDisabledModel(t *testing.T) {
	m := New(Config{Enabled: true, APIKey: "sk-x"})
	require.NotNil(t, m)
	_, err := m.Invoke(context.Background(), "hello")
	assert.True(t, IsDisabled(err))
}

type fakeModel struct {
	out string
	err error
}

func (f fakeModel) Invoke(context.Context, string) (string, error) { return f.out, f.err }

func TestFrictionEnricher_DisabledModelYieldsNoTip(t *testing.T) {
	e := FrictionEnricher{Model: disabled{}}
	tip, ok := e.Enrich(edutech.FrictionSignal{SignalType: "slow_approval"})
	assert.False(t, ok)
	assert.Empty(t, tip)
}

func TestFrictionEnricher_NilModelYieldsNoTip(t *testing.T) {
	e := FrictionEnricher{}
	_, ok := e.Enrich(edutech.FrictionSignal{})
	assert.False(t, ok)
}

func TestFrictionEnricher_WorkingModelYieldsTip(t *testing.T) {
	e := FrictionEnricher{Model: fakeModel{out: "check the NPV line first"}}
	tip, ok := e.Enrich(edutech.FrictionSignal{SignalType: "slow_approval", AgentPhase: "governor", Context: "took 90s"})
	assert.True(t, ok)
	assert.Equal(t, "check the NPV line first", tip)
}

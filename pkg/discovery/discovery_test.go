package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoverify-prime/ecoverify/pkg/identity"
)

func newStore(t *testing.T) *identity.Store {
	t.Helper()
	store, err := identity.NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestAllCards_OrderAndContent(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.EnsureAll([]string{"detector", "jurist", "architect", "governor"}))

	cards := AllCards(store)
	require.Len(t, cards, 4)

	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.AgentID
	}
	assert.Equal(t, []string{"detector", "jurist", "architect", "governor"}, ids)

	for _, c := range cards {
		assert.NotEmpty(t, c.Name)
		assert.NotEmpty(t, c.Description)
		assert.NotEmpty(t, c.Capabilities)
		assert.Len(t, c.PublicKeyB64, 44)
	}
}

func TestAllCards_MissingKeyDegradesGracefully(t *testing.T) {
	store := newStore(t) // no keys generated

	cards := AllCards(store)
	require.Len(t, cards, 4)
	for _, c := range cards {
		assert.Empty(t, c.PublicKeyB64)
	}
}

func TestOrchestrator(t *testing.T) {
	orch := Orchestrator()
	assert.Equal(t, "ecoverify-orchestrator", orch.ID)
	assert.Contains(t, orch.Agents, "governor")
	assert.NotContains(t, orch.Agents, "finalizer")
}

func TestBuild(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.EnsureAll([]string{"detector", "jurist", "architect", "governor"}))

	doc := Build(store)
	assert.Equal(t, "ecoverify-orchestrator", doc.Orchestrator.ID)
	assert.Len(t, doc.Agents, 4)
}

package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCite_DeterministicHash(t *testing.T) {
	data := map[string]any{"avg_kwh": 130.5, "peak_kwh": 182.1}

	a, err := Cite("bms:energy:HQ-01", data, "peak exceeds average")
	require.NoError(t, err)
	b, err := Cite("bms:energy:HQ-01", data, "different snippet, same data")
	require.NoError(t, err)

	assert.Equal(t, a.DataHash, b.DataHash)
	assert.Len(t, a.DataHash, 64)
}

func TestCite_TruncatesLongSnippet(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	c, err := Cite("src", "data", string(long))
	require.NoError(t, err)
	assert.Len(t, c.Snippet, maxSnippetLen)
}

func TestPresent_EmptyIsFalse(t *testing.T) {
	assert.False(t, Present(nil))
	assert.False(t, Present([]Block{}))
}

func TestPresent_RejectsMalformedHash(t *testing.T) {
	good := Block{DataHash: "a1b2c3d4e5f60718293a4b5c6d7e8f9012345678901234567890123456789ab"}
	bad := Block{DataHash: "not-a-hash"}
	assert.True(t, Present([]Block{good}))
	assert.False(t, Present([]Block{good, bad}))
}

func TestMatches_TrueForSameData_FalseForDifferent(t *testing.T) {
	data := map[string]any{"a": 1}
	c, err := Cite("src", data, "")
	require.NoError(t, err)

	assert.True(t, Matches(c, data))
	assert.False(t, Matches(c, map[string]any{"a": 2}))
}

func TestMatches_StringPayloadUsesRawBytes(t *testing.T) {
	c, err := Cite("src", "hello world", "")
	require.NoError(t, err)
	assert.True(t, Matches(c, "hello world"))
	assert.False(t, Matches(c, "hello World"))
}

package trace

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestSignThenVerify_Succeeds(t *testing.T) {
	pub, priv := keypair(t)

	tr, err := Sign("detector", map[string]any{"action": "anomaly_scan", "anomalies_found": 2}, priv)
	require.NoError(t, err)

	assert.Len(t, tr.PayloadHash, 64)
	assert.True(t, Verify(tr, pub))
}

func TestVerify_WrongKeyFails(t *testing.T) {
	_, priv := keypair(t)
	otherPub, _ := keypair(t)

	tr, err := Sign("jurist", map[string]any{"status": "compliant"}, priv)
	require.NoError(t, err)

	assert.False(t, Verify(tr, otherPub))
}

func TestVerify_TamperDetection(t *testing.T) {
	pub, priv := keypair(t)
	tr, err := Sign("architect", map[string]any{"monthly_savings": 120.5}, priv)
	require.NoError(t, err)

	cases := map[string]func(Trace) Trace{
		"agent_id": func(tr Trace) Trace { tr.AgentID = "governor"; return tr },
		"timestamp": func(tr Trace) Trace { tr.Timestamp = "2000-01-01T00:00:00Z"; return tr },
		"decision": func(tr Trace) Trace {
			tr.Decision = map[string]any{"monthly_savings": 999.0}
			return tr
		},
		"payload_hash": func(tr Trace) Trace { tr.PayloadHash = "0" + tr.PayloadHash[1:]; return tr },
		"signature": func(tr Trace) Trace {
			if tr.Signature[0] == 'A' {
				tr.Signature = "B" + tr.Signature[1:]
			} else {
				tr.Signature = "A" + tr.Signature[1:]
			}
			return tr
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			mutated := mutate(tr)
			assert.False(t, Verify(mutated, pub), "mutating %s must invalidate verification", name)
		})
	}
}

func TestVerify_MalformedSignatureNeverPanics(t *testing.T) {
	pub, priv := keypair(t)
	tr, err := Sign("finalizer", map[string]any{"x": 1}, priv)
	require.NoError(t, err)

	tr.Signature = "not-valid-base64!!!"
	assert.False(t, Verify(tr, pub))
}

func TestSign_CanonicalPayloadIsStableAcrossCalls(t *testing.T) {
	_, priv := keypair(t)
	decision := map[string]any{"b": 2, "a": 1}

	tr1, err := Sign("detector", decision, priv)
	require.NoError(t, err)
	tr1.Timestamp = "fixed"
	payload := signablePayload{AgentID: tr1.AgentID, Timestamp: tr1.Timestamp, Decision: tr1.Decision}

	tr2, err := Sign("detector", decision, priv)
	require.NoError(t, err)
	tr2.Timestamp = "fixed"
	payload2 := signablePayload{AgentID: tr2.AgentID, Timestamp: tr2.Timestamp, Decision: tr2.Decision}

	assert.Equal(t, payload, payload2)
}

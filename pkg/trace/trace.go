// Package trace implements signed decision traces: the canonical,
// tamper-evident record an agent step leaves behind for every decision
// it makes.
package trace

import (
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/ecoverify-prime/ecoverify/pkg/canon"
)

// Trace is an immutable signed decision record.
type Trace struct {
	AgentID     string         `json:"agent_id"`
	Timestamp   string         `json:"timestamp"`
	Decision    map[string]any `json:"decision"`
	PayloadHash string         `json:"payload_hash"`
	Signature   string         `json:"signature"`
}

// signablePayload is the exact shape that gets canonicalized and
// hashed/signed — PayloadHash and Signature are never part of it.
type signablePayload struct {
	AgentID   string         `json:"agent_id"`
	Timestamp string         `json:"timestamp"`
	Decision  map[string]any `json:"decision"`
}

// Sign builds and signs a decision trace for agentID using privateKey.
func Sign(agentID string, decision map[string]any, privateKey ed25519.PrivateKey) (Trace, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	payload := signablePayload{AgentID: agentID, Timestamp: now, Decision: decision}
	canonical, err := canon.JSON(payload)
	if err != nil {
		return Trace{}, err
	}

	hash := canon.HashBytes(canonical)
	sig := ed25519.Sign(privateKey, canonical)

	return Trace{
		AgentID:     agentID,
		Timestamp:   now,
		Decision:    decision,
		PayloadHash: hash,
		Signature:   base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// Verify reports whether t is internally consistent (its payload_hash
// matches its own agent_id/timestamp/decision) and whether its
// signature verifies against publicKey. It never panics or returns an
// error: any malformed input — bad base64, wrong key length, hash
// mismatch — simply yields false.
func Verify(t Trace, publicKey ed25519.PublicKey) bool {
	payload := signablePayload{AgentID: t.AgentID, Timestamp: t.Timestamp, Decision: t.Decision}
	canonical, err := canon.JSON(payload)
	if err != nil {
		return false
	}

	if canon.HashBytes(canonical) != t.PayloadHash {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(t.Signature)
	if err != nil {
		return false
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}

	return ed25519.Verify(publicKey, canonical, sig)
}

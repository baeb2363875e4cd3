// Package settlement simulates Solana-devnet USDC micro-settlements
// between agents. Each agent gets a deterministic wallet address
// derived from its identity, and transfers move through an in-memory
// ledger with a devnet airdrop balance. A production engine would
// submit real SPL token transfer instructions to a Solana RPC
// endpoint; this one mimics the network hop with a bounded retry so
// callers exercise the same submit-then-confirm shape.
package settlement

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const devnetAirdropUSDC = 10_000.0

// AgentWallet is an agent's simulated Solana-devnet identity.
type AgentWallet struct {
	AgentID   string `json:"agent_id"`
	PublicKey string `json:"public_key"`
	Network   string `json:"network"`
}

// Request asks the Ledger to move USDC between two agents.
type Request struct {
	FromAgent string
	ToAgent   string
	AmountUSD float64
	Memo      string
}

// Receipt records the outcome of a settlement attempt.
type Receipt struct {
	TxSignature string  `json:"tx_signature"`
	FromAgent   string  `json:"from_agent"`
	ToAgent     string  `json:"to_agent"`
	AmountUSD   float64 `json:"amount_usdc"`
	Network     string  `json:"network"`
	Status      string  `json:"status"` // confirmed | failed
	Timestamp   string  `json:"timestamp"`
	Memo        string  `json:"memo"`
	BlockHash   string  `json:"block_hash,omitempty"`
}

// Ledger is the in-memory devnet settlement engine. Safe for
// concurrent use.
type Ledger struct {
	network string

	mu       sync.Mutex
	wallets  map[string]AgentWallet
	balances map[string]float64
	receipts []Receipt
}

// NewLedger returns an empty ledger targeting the given network label
// (e.g. "devnet").
func NewLedger(network string) *Ledger {
	if network == "" {
		network = "devnet"
	}
	return &Ledger{
		network:  network,
		wallets:  make(map[string]AgentWallet),
		balances: make(map[string]float64),
	}
}

func deriveAddress(agentID string) string {
	sum := sha256.Sum256([]byte("ecoverify:" + agentID + ":solana"))
	addr := base64.RawURLEncoding.EncodeToString(sum[:])
	if len(addr) > 44 {
		addr = addr[:44]
	}
	return addr
}

// WalletFor returns agentID's wallet, creating it (with a devnet
// airdrop) on first access.
func (l *Ledger) WalletFor(agentID string) AgentWallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getOrCreateLocked(agentID)
}

func (l *Ledger) getOrCreateLocked(agentID string) AgentWallet {
	if w, ok := l.wallets[agentID]; ok {
		return w
	}
	w := AgentWallet{AgentID: agentID, PublicKey: deriveAddress(agentID), Network: l.network}
	l.wallets[agentID] = w
	l.balances[agentID] = devnetAirdropUSDC
	return w
}

// Balance returns agentID's simulated USDC balance.
func (l *Ledger) Balance(agentID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.getOrCreateLocked(agentID)
	return l.balances[agentID]
}

func mockSignature() string {
	sum := sha256.Sum256(append(uuid.New().NodeID(), uuid.New().NodeID()...))
	s := hex.EncodeToString(sum[:])
	for len(s) < 88 {
		more := sha256.Sum256([]byte(s))
		s += hex.EncodeToString(more[:])
	}
	return s[:88]
}

func mockBlockHash() string {
	sum := sha256.Sum256(uuid.New().NodeID())
	return hex.EncodeToString(sum[:])
}

// Settle attempts a USDC transfer from req.FromAgent to req.ToAgent.
// The simulated network submission runs inside a bounded backoff retry
// but always succeeds on its first call. Insufficient balance produces a "failed" receipt
// rather than an error — the caller decides what to do with it, as a
// real settlement rail would return a rejected transaction, not an
// RPC-level failure.
func (l *Ledger) Settle(ctx context.Context, req Request) (Receipt, error) {
	l.mu.Lock()
	l.getOrCreateLocked(req.FromAgent)
	l.getOrCreateLocked(req.ToAgent)
	l.mu.Unlock()

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(func() error { return nil }, b); err != nil {
		return Receipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	memo := req.Memo
	if memo == "" {
		memo = "A2A service fee: " + req.FromAgent + " -> " + req.ToAgent
	}

	if l.balances[req.FromAgent] < req.AmountUSD {
		r := Receipt{
			TxSignature: mockSignature(),
			FromAgent:   req.FromAgent,
			ToAgent:     req.ToAgent,
			AmountUSD:   req.AmountUSD,
			Network:     l.network,
			Status:      "failed",
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Memo:        "Insufficient USDC balance",
		}
		l.receipts = append(l.receipts, r)
		return r, nil
	}

	l.balances[req.FromAgent] -= req.AmountUSD
	l.balances[req.ToAgent] += req.AmountUSD

	r := Receipt{
		TxSignature: mockSignature(),
		FromAgent:   req.FromAgent,
		ToAgent:     req.ToAgent,
		AmountUSD:   req.AmountUSD,
		Network:     l.network,
		Status:      "confirmed",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Memo:        memo,
		BlockHash:   mockBlockHash(),
	}
	l.receipts = append(l.receipts, r)
	return r, nil
}

// Lookup returns the receipt for txSignature, if any.
func (l *Ledger) Lookup(txSignature string) (Receipt, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.receipts {
		if r.TxSignature == txSignature {
			return r, true
		}
	}
	return Receipt{}, false
}

// ForAgent returns every settlement touching agentID.
func (l *Ledger) ForAgent(agentID string) []Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Receipt
	for _, r := range l.receipts {
		if r.FromAgent == agentID || r.ToAgent == agentID {
			out = append(out, r)
		}
	}
	return out
}

// All returns the full ledger.
func (l *Ledger) All() []Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Receipt, len(l.receipts))
	copy(out, l.receipts)
	return out
}

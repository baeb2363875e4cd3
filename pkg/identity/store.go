// Package identity manages the per-agent Ed25519 keypairs that back the
// trust substrate: generation, PKCS#8 PEM persistence, and public-key
// export. Each logical agent id owns exactly one keypair.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by GetPrivate/GetPublic when no key file
// exists for the requested agent id.
var ErrNotFound = errors.New("identity: no key found for agent")

// WrongKeyTypeError is returned when a key file exists but does not
// decode to an Ed25519 private key — the Go analogue of the original
// system's TypeError on an algorithm mismatch.
type WrongKeyTypeError struct {
	AgentID string
	Got      any
}

func (e *WrongKeyTypeError) Error() string {
	return fmt.Sprintf("identity: key file for %q does not hold an Ed25519 private key (got %T)", e.AgentID, e.Got)
}

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// Store is a directory of per-agent PKCS#8 PEM key files. It is safe
// for concurrent use: reads are cached under a RWMutex, and creation
// for a given id is a create-if-missing operation so that concurrent
// first-time callers converge on a single persisted key.
type Store struct {
	dir string

	mu    sync.RWMutex
	cache map[string]ed25519.PrivateKey
}

// NewStore opens (creating if necessary) a key directory at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("identity: create key dir: %w", err)
	}
	return &Store{dir: dir, cache: make(map[string]ed25519.PrivateKey)}, nil
}

func (s *Store) keyPath(agentID string) string {
	return filepath.Join(s.dir, agentID+".pem")
}

// EnsureAll generates a keypair for every id that does not already
// have one. Safe to call at every process start; a no-op for ids that
// already have a persisted key.
func (s *Store) EnsureAll(ids []string) error {
	for _, id := range ids {
		if _, err := s.Generate(id, false); err != nil {
			return fmt.Errorf("identity: ensure %q: %w", id, err)
		}
	}
	return nil
}

// Generate returns the keypair for agentID, creating one if absent.
// With overwrite=false (the EnsureAll default) a pre-existing key is
// loaded and returned unchanged — "first writer wins". With
// overwrite=true a fresh key is always written, replacing any prior one.
func (s *Store) Generate(agentID string, overwrite bool) (ed25519.PrivateKey, error) {
	if !overwrite {
		if key, err := s.loadCached(agentID); err == nil {
			return key, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key for %q: %w", agentID, err)
	}

	if err := s.writeKey(agentID, priv, overwrite); err != nil {
		// Someone else won the race to create this file first; defer to
		// the persisted key rather than erroring, matching the
		// "first writer wins" contract.
		if errors.Is(err, os.ErrExist) {
			return s.loadCached(agentID)
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[agentID] = priv
	s.mu.Unlock()

	return priv, nil
}

func (s *Store) writeKey(agentID string, priv ed25519.PrivateKey, overwrite bool) error {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("identity: marshal PKCS8 for %q: %w", agentID, err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(s.keyPath(agentID), flags, filePerm)
	if err != nil {
		return err
	}
	defer f.Close()

	return pem.Encode(f, block)
}

// GetPrivate returns the cached or on-disk private key for agentID.
func (s *Store) GetPrivate(agentID string) (ed25519.PrivateKey, error) {
	return s.loadCached(agentID)
}

// GetPublic returns the public half of agentID's keypair.
func (s *Store) GetPublic(agentID string) (ed25519.PublicKey, error) {
	priv, err := s.loadCached(agentID)
	if err != nil {
		return nil, err
	}
	return priv.Public().(ed25519.PublicKey), nil
}

// ExportPublicB64 returns the 32 raw public-key bytes, base64-encoded
// (44 characters with standard padding).
func (s *Store) ExportPublicB64(agentID string) (string, error) {
	pub, err := s.GetPublic(agentID)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}

func (s *Store) loadCached(agentID string) (ed25519.PrivateKey, error) {
	s.mu.RLock()
	if key, ok := s.cache[agentID]; ok {
		s.mu.RUnlock()
		return key, nil
	}
	s.mu.RUnlock()

	key, err := s.loadFromDisk(agentID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[agentID] = key
	s.mu.Unlock()

	return key, nil
}

func (s *Store) loadFromDisk(agentID string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(s.keyPath(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("identity: read key for %q: %w", agentID, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("identity: %q: malformed PEM", agentID)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("identity: %q: parse PKCS8: %w", agentID, err)
	}

	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, &WrongKeyTypeError{AgentID: agentID, Got: parsed}
	}
	return priv, nil
}

// Package citation implements the Cite-Before-Act data-provenance
// middleware: every piece of evidence an agent reasons over is hashed
// and recorded before a conclusion may be drawn from it.
package citation

import (
	"time"

	"github.com/ecoverify-prime/ecoverify/pkg/canon"
)

// maxSnippetLen bounds the human-readable excerpt stored on a
// citation; longer snippets are truncated, never rejected.
const maxSnippetLen = 200

// Block is an immutable record of one cited data source.
type Block struct {
	SourceID  string    `json:"source_id"`
	DataHash  string    `json:"data_hash"`
	Timestamp time.Time `json:"timestamp"`
	Snippet   string    `json:"snippet"`
}

// Cite hashes data and returns the resulting citation block. Structured
// payloads (anything that is not a string) are hashed via canonical
// JSON so the hash is stable across processes and re-derivable by a
// later step; string payloads are hashed as raw UTF-8 bytes.
func Cite(sourceID string, data any, snippet string) (Block, error) {
	hash, err := hashData(data)
	if err != nil {
		return Block{}, err
	}
	if len(snippet) > maxSnippetLen {
		snippet = snippet[:maxSnippetLen]
	}
	return Block{
		SourceID:  sourceID,
		DataHash:  hash,
		Timestamp: time.Now().UTC(),
		Snippet:   snippet,
	}, nil
}

// Present reports whether citations is non-empty and every entry's hash
// satisfies the 64-hex-character invariant.
func Present(citations []Block) bool {
	if len(citations) == 0 {
		return false
	}
	for _, c := range citations {
		if !isHex64(c.DataHash) {
			return false
		}
	}
	return true
}

// Matches recomputes data's hash and compares it to citation's recorded
// DataHash.
func Matches(citation Block, data any) bool {
	hash, err := hashData(data)
	if err != nil {
		return false
	}
	return hash == citation.DataHash
}

func hashData(data any) (string, error) {
	if s, ok := data.(string); ok {
		return canon.HashBytes([]byte(s)), nil
	}
	return canon.Hash(data)
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

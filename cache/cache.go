// Package cache maps normalized request fingerprints to previously
// produced results, with TTL expiry and a bounded-memory LRU ceiling.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/voxmux/voxmux/types"
)

// Cache stores serialized results keyed by (capability, fingerprint).
// Implementations must be safe for concurrent callers; a hit never
// observes a partially-written entry.
type Cache interface {
	// Lookup returns a live (non-expired) entry if present.
	Lookup(ctx context.Context, capability types.Capability, fingerprint string) ([]byte, bool, error)

	// Store inserts or overwrites an entry. Overwriting resets the
	// entry's TTL clock.
	Store(ctx context.Context, capability types.Capability, fingerprint string, payload []byte, ttl time.Duration) error

	// Invalidate removes an entry, e.g. when a result is later known
	// to be stale.
	Invalidate(ctx context.Context, capability types.Capability, fingerprint string) error

	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)

	// Sweep purges expired entries and returns how many were removed.
	// Backends with native expiry may make this a no-op.
	Sweep(ctx context.Context) int
}

// Fingerprint computes a deterministic digest of a capability and the
// semantically relevant, normalized request fields. Two requests that
// should share a cached result produce the same fingerprint.
//
// Normalization is deliberately conservative: text is space-trimmed,
// language is lowercased, audio contributes via its own digest, and chat
// requests are scoped to their session so context never leaks between
// conversations. Broader equivalence (e.g. case-folding text) is not
// assumed.
func Fingerprint(capability types.Capability, req types.Request) string {
	h := sha256.New()
	writeField(h, "cap", string(capability))
	writeField(h, "text", strings.TrimSpace(req.Text))
	writeField(h, "lang", strings.ToLower(req.Language))
	writeField(h, "voice", req.Voice)
	writeField(h, "model", req.Model)
	writeField(h, "format", req.Format)
	writeField(h, "session", req.SessionID)

	if len(req.Audio) > 0 {
		audioDigest := sha256.Sum256(req.Audio)
		writeField(h, "audio", hex.EncodeToString(audioDigest[:]))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h interface{ Write([]byte) (int, error) }, name, value string) {
	// The separator bytes keep adjacent fields from colliding.
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0x1f})
	_, _ = h.Write([]byte(value))
	_, _ = h.Write([]byte{0x1e})
}

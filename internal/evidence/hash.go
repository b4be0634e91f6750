// Package evidence computes and verifies integrity digests for captured
// artifacts and composite evidence sets.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/sitevar/sitevar/internal/record"
)

// Digest scheme tags. A fallback digest marks a capture whose file could
// not be read at hash time; it must never be presented as a real integrity
// proof, so it carries a distinct scheme.
const (
	Scheme         = "sha256"
	FallbackScheme = "hash-failed"
)

// combineDelimiter joins sorted digests before the composite hash.
const combineDelimiter = "\n"

// Digest computes the SHA-256 digest of r in the fixed
// "sha256:<64 lowercase hex>" representation.
func Digest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("digest: read: %w", err)
	}
	return Scheme + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// DigestBytes computes the digest of an in-memory byte slice.
func DigestBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return Scheme + ":" + hex.EncodeToString(sum[:])
}

// DigestFile computes the digest of the file at path.
// A read failure is returned as an error - never a fabricated digest.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest file %s: %w", path, err)
	}
	defer f.Close()

	d, err := Digest(f)
	if err != nil {
		return "", fmt.Errorf("digest file %s: %w", path, err)
	}
	return d, nil
}

// FallbackDigest produces the degraded-capture sentinel for an artifact
// whose bytes were unreadable at capture time. It hashes the capture
// timestamp so the value is still unique per artifact, but the scheme tag
// makes the degradation visible to any verifier.
func FallbackDigest(capturedAt time.Time) string {
	sum := sha256.Sum256([]byte(capturedAt.UTC().Format(time.RFC3339Nano)))
	return FallbackScheme + ":" + hex.EncodeToString(sum[:])
}

// IsFallback reports whether d is a degraded-capture sentinel rather than
// a real integrity digest.
func IsFallback(d string) bool {
	return strings.HasPrefix(d, FallbackScheme+":")
}

// Verify recomputes the digest of r and compares it to expected.
// Read failures are surfaced, not treated as a mismatch.
func Verify(r io.Reader, expected string) (bool, error) {
	got, err := Digest(r)
	if err != nil {
		return false, err
	}
	return got == expected, nil
}

// Combine folds an ordered multiset of digests into one composite digest.
// Inputs are sorted lexicographically first, so the result is independent
// of artifact capture order.
func Combine(digests []string) string {
	sorted := make([]string, len(digests))
	copy(sorted, digests)
	sort.Strings(sorted)
	return DigestBytes([]byte(strings.Join(sorted, combineDelimiter)))
}

// EvidenceHash computes a claim's composite evidence hash: Combine over all
// artifact digests plus the canonical serialization of the capture
// timestamp and coordinates. The hash is stable under artifact reordering
// but changes if any artifact, the timestamp, or the location changes.
func EvidenceHash(artifactDigests []string, capturedAt time.Time, loc *record.GeoPoint) string {
	inputs := make([]string, 0, len(artifactDigests)+1)
	inputs = append(inputs, artifactDigests...)
	inputs = append(inputs, canonicalContext(capturedAt, loc))
	return Combine(inputs)
}

// canonicalContext serializes capture timestamp and coordinates into a
// single deterministic string. Timestamps are UTC RFC 3339; coordinates use
// fixed precision; the whole string is NFC normalized. The "ctx|" prefix
// keeps the context entry from colliding with a digest input to Combine.
func canonicalContext(capturedAt time.Time, loc *record.GeoPoint) string {
	var b strings.Builder
	b.WriteString("ctx|")
	b.WriteString(capturedAt.UTC().Format(time.RFC3339))
	if loc != nil {
		fmt.Fprintf(&b, "|lat=%.5f|lon=%.5f|acc=%.1f", loc.Lat, loc.Lon, loc.AccuracyM)
	} else {
		b.WriteString("|lat=|lon=|acc=")
	}
	return norm.NFC.String(b.String())
}

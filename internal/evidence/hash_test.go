package evidence

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitevar/sitevar/internal/record"
)

func TestDigest_Deterministic(t *testing.T) {
	data := []byte("site photo bytes")

	d1, err := Digest(bytes.NewReader(data))
	require.NoError(t, err)
	d2, err := Digest(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.True(t, strings.HasPrefix(d1, "sha256:"))
	assert.Len(t, strings.TrimPrefix(d1, "sha256:"), 64)
	assert.Equal(t, strings.ToLower(d1), d1)
}

func TestDigest_EmptyInput(t *testing.T) {
	d, err := Digest(bytes.NewReader(nil))
	require.NoError(t, err)
	// SHA-256 of empty input is well known.
	assert.Equal(t, "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", d)
}

func TestVerify_RoundTrip(t *testing.T) {
	data := []byte("voice note bytes")
	d, err := Digest(bytes.NewReader(data))
	require.NoError(t, err)

	ok, err := Verify(bytes.NewReader(data), d)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_CorruptedByte(t *testing.T) {
	data := []byte("original artifact content")
	d, err := Digest(bytes.NewReader(data))
	require.NoError(t, err)

	corrupted := make([]byte, len(data))
	copy(corrupted, data)
	corrupted[3] ^= 0x01

	ok, err := Verify(bytes.NewReader(corrupted), d)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDigestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg bytes"), 0o644))

	d, err := DigestFile(path)
	require.NoError(t, err)
	assert.Equal(t, DigestBytes([]byte("jpeg bytes")), d)
}

func TestDigestFile_Unreadable(t *testing.T) {
	_, err := DigestFile(filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
}

func TestFallbackDigest_Distinct(t *testing.T) {
	fb := FallbackDigest(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))

	assert.True(t, IsFallback(fb))
	assert.False(t, strings.HasPrefix(fb, "sha256:"))
	assert.False(t, IsFallback(DigestBytes([]byte("real"))))
}

func TestCombine_OrderIndependent(t *testing.T) {
	a := DigestBytes([]byte("a"))
	b := DigestBytes([]byte("b"))
	c := DigestBytes([]byte("c"))

	assert.Equal(t, Combine([]string{a, b}), Combine([]string{b, a}))
	assert.Equal(t, Combine([]string{a, b, c}), Combine([]string{c, a, b}))
	assert.NotEqual(t, Combine([]string{a, b}), Combine([]string{a, c}))
}

func TestCombine_DoesNotMutateInput(t *testing.T) {
	in := []string{"sha256:bb", "sha256:aa"}
	Combine(in)
	assert.Equal(t, []string{"sha256:bb", "sha256:aa"}, in)
}

func TestEvidenceHash_StableToReordering(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	loc := &record.GeoPoint{Lat: -37.81362, Lon: 144.96306, AccuracyM: 5}
	d1 := DigestBytes([]byte("photo-1"))
	d2 := DigestBytes([]byte("photo-2"))

	assert.Equal(t,
		EvidenceHash([]string{d1, d2}, at, loc),
		EvidenceHash([]string{d2, d1}, at, loc),
	)
}

func TestEvidenceHash_ChangesWithInputs(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	loc := &record.GeoPoint{Lat: -37.81362, Lon: 144.96306, AccuracyM: 5}
	digests := []string{DigestBytes([]byte("photo-1"))}

	base := EvidenceHash(digests, at, loc)

	// Different artifact set.
	assert.NotEqual(t, base, EvidenceHash([]string{DigestBytes([]byte("photo-x"))}, at, loc))
	assert.NotEqual(t, base, EvidenceHash(nil, at, loc))

	// Different timestamp.
	assert.NotEqual(t, base, EvidenceHash(digests, at.Add(time.Second), loc))

	// Different coordinates, and missing coordinates.
	moved := &record.GeoPoint{Lat: -37.9, Lon: 144.96306, AccuracyM: 5}
	assert.NotEqual(t, base, EvidenceHash(digests, at, moved))
	assert.NotEqual(t, base, EvidenceHash(digests, at, nil))
}

func TestEvidenceHash_TimezoneNormalized(t *testing.T) {
	utc := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	melbourne := utc.In(time.FixedZone("AEDT", 11*3600))
	digests := []string{DigestBytes([]byte("photo"))}

	assert.Equal(t,
		EvidenceHash(digests, utc, nil),
		EvidenceHash(digests, melbourne, nil),
	)
}

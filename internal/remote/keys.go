// Package remote implements the remote backend contract: DynamoDB tables
// with upsert-by-identifier semantics and an S3 bucket for artifact
// binaries, both scoped to the authenticated owner.
package remote

import (
	"fmt"
	"path"
	"strings"
)

// Artifact kinds used in object keys.
const (
	KindPhoto      = "photo"
	KindVoiceNote  = "voice"
	KindAttachment = "doc"
)

// ObjectKey constructs the stable object-storage key for an artifact
// binary: {owner}/{kind}/{artifactID}.{ext}. ext may be passed with or
// without the leading dot; an empty ext yields "bin".
func ObjectKey(owner, kind, artifactID, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s/%s.%s", owner, kind, artifactID, ext)
}

// ParseObjectKey extracts owner, kind and artifact ID from an object key.
func ParseObjectKey(key string) (owner, kind, artifactID string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return "", "", "", false
	}
	base := parts[2]
	ext := path.Ext(base)
	if ext == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], strings.TrimSuffix(base, ext), true
}

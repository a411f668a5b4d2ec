// backend/internal/adapters/out/gcs/common/gcs_repository.go
package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// GCSPublicURL builds a public GCS URL.
// - bucket が空なら defaultBucket を使用
// - objectPath の先頭の "/" は除去
func GCSPublicURL(bucket, objectPath, defaultBucket string) string {
	b := strings.TrimSpace(bucket)
	if b == "" {
		b = strings.TrimSpace(defaultBucket)
	}
	obj := strings.TrimLeft(strings.TrimSpace(objectPath), "/")
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b, obj)
}

// ParseGCSURL parses a GCS-like URL and returns (bucket, objectPath, ok).
// 対応例:
//   - gs://<bucket>/<object>
//   - https://storage.googleapis.com/<bucket>/<object>
//   - https://storage.cloud.google.com/<bucket>/<object>
func ParseGCSURL(u string) (string, string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return "", "", false
	}

	if parsed.Scheme == "gs" {
		obj := strings.TrimLeft(parsed.Path, "/")
		if parsed.Host == "" || obj == "" {
			return "", "", false
		}
		return parsed.Host, obj, true
	}

	host := strings.ToLower(parsed.Host)
	if host != "storage.googleapis.com" && host != "storage.cloud.google.com" {
		return "", "", false
	}

	p := strings.TrimLeft(parsed.EscapedPath(), "/")
	if p == "" {
		return "", "", false
	}

	parts := strings.SplitN(p, "/", 2)
	if len(parts) < 2 || parts[1] == "" {
		return "", "", false
	}

	bucket := parts[0]
	objectPath, err := url.PathUnescape(parts[1])
	if err != nil {
		return "", "", false
	}

	return bucket, objectPath, true
}

// ContentDigest returns the hex sha256 of data; used as the content id.
func ContentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ContentObjectPath is the content-addressed object name: <prefix>/<digest><ext>.
func ContentObjectPath(prefix, digest, ext string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return digest + ext
	}
	return prefix + "/" + digest + ext
}

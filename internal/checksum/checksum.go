// Package checksum fingerprints stored map documents. The same digest keys
// index freshness and HTTP entity tags.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag quotes sum as a strong entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// FromETag extracts the digest from an If-Match or ETag header value.
// Weak tags are accepted; "*" and empty values yield "".
func FromETag(header string) string {
	v := strings.TrimSpace(header)
	if v == "*" {
		return ""
	}
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

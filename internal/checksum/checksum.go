// Package checksum computes the content digests used for change detection
// and optimistic concurrency on pages.
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

// Matches reports whether etag (quoted or bare) is the digest of data.
// An empty etag always matches.
func Matches(data []byte, etag string) bool {
	etag = strings.Trim(strings.TrimSpace(etag), `"`)
	return etag == "" || etag == Sum(data)
}

package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func shortHash(value string, size int) string {
	sum := sha256.Sum256([]byte(value))
	encoded := hex.EncodeToString(sum[:])
	if size <= 0 || size >= len(encoded) {
		return encoded
	}
	return encoded[:size]
}

// generatedKey builds a deterministic natural key for rows whose source
// omitted one, so re-importing the same file lands on the same row.
func generatedKey(prefix string, parts ...string) string {
	return prefix + "-" + strings.ToUpper(shortHash(strings.Join(parts, "|"), 12))
}

func nonEmpty(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

package stores

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// Checksum returns the hex-encoded SHA-256 digest of data. It is the digest
// recorded for dependency freshness checks and options fingerprints.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DependenciesFresh reports whether every recorded dependency still hashes
// to the digest captured at evaluation time. A missing or unreadable file
// counts as stale.
func DependenciesFresh(deps []Dependency) bool {
	for _, dep := range deps {
		data, err := os.ReadFile(dep.Path)
		if err != nil {
			return false
		}
		if Checksum(data) != dep.ContentSHA256 {
			return false
		}
	}
	return true
}

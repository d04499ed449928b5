package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonicalize returns the RFC 8785 (JCS) canonical form of JSON input.
func Canonicalize(input []byte) ([]byte, error) {
	return jcs.Transform(input)
}

// Digest canonicalizes JSON (RFC 8785) and returns a sha256 hex digest.
func Digest(input []byte) (string, error) {
	c, err := Canonicalize(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(c)
	return hex.EncodeToString(sum[:]), nil
}

// DigestValue marshals v to JSON and returns its canonical digest. The
// caller must ensure v excludes the integrity hash field itself, so the
// digest covers everything except the hash.
func DigestValue(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal for digest: %w", err)
	}
	return Digest(raw)
}

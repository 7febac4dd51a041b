package lifecycle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignature returns the hex-encoded HMAC-SHA256 of the raw request
// body under the shared webhook secret.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the presented signature matches the body.
// Comparison is constant time. An empty secret never verifies.
func VerifySignature(secret string, body []byte, presented string) bool {
	if secret == "" || presented == "" {
		return false
	}
	expected := ComputeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(presented))
}

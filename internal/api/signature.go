package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the HMAC of the request body
const SignatureHeader = "X-Signature-256"

// Sign generates HMAC-SHA256 signature for the given payload.
// The signature is returned in the format "sha256=<hex-encoded-signature>".
//
// Example:
//
//	signature := Sign("my-secret-key", []byte("hello world"))
//	// signature = "sha256=90eb182d8396f16d4341d582047f45c0a97d73388c5377d9ced478a2212295ad"
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against the payload using constant-time comparison.
func Verify(secret string, payload []byte, signature string) bool {
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

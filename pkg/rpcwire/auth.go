package rpcwire

import (
	"crypto/subtle"
	"encoding/hex"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// signRequest derives a per-request auth token from the shared secret and
// the request's own id, so the secret itself never crosses the wire and a
// captured token can't be replayed against a different request.
func signRequest(secret string, requestID uuid.UUID) (string, error) {
	mac, err := blake2b.New256([]byte(secret))
	if err != nil {
		return "", err
	}
	mac.Write(requestID[:])
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// authenticate recomputes the expected token for requestID under secret
// and compares it against the caller-supplied token in constant time.
// There is no ecosystem helper in this codebase's dependency set for
// constant-time comparison, so that one step uses crypto/subtle directly.
func authenticate(token string, secret string, requestID uuid.UUID) bool {
	expected, err := signRequest(secret, requestID)
	if err != nil {
		return false
	}
	if len(token) != len(expected) {
		subtle.ConstantTimeCompare([]byte(token), []byte(token))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

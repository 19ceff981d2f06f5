// internal/core/auth/hmac.go
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const keyPrefix = "qk-v1"

// ParseAPIKey splits an API key into its parts.
// Format: qk-v1-<secret_id>-<key_id>-<mac>, with a 32 hex secret_id, a 32 hex
// key_id and a 64 hex HMAC-SHA256 over the preceding text.
func ParseAPIKey(key string) (secretID, keyID string, mac []byte, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 5 || parts[0]+"-"+parts[1] != keyPrefix {
		return "", "", nil, ErrInvalidKeyFormat
	}
	secretID, keyID = parts[2], parts[3]
	if len(secretID) != 32 || len(keyID) != 32 || len(parts[4]) != 64 {
		return "", "", nil, ErrInvalidKeyFormat
	}
	for _, c := range secretID + keyID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", "", nil, ErrInvalidKeyFormat
		}
	}
	mac, err = hex.DecodeString(parts[4])
	if err != nil {
		return "", "", nil, ErrInvalidKeyFormat
	}
	return secretID, keyID, mac, nil
}

// ComputeHMAC computes the HMAC-SHA256 signature of the signed part of a key.
func ComputeHMAC(secret []byte, secretID, keyID string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(signedPart(secretID, keyID)))
	return h.Sum(nil)
}

// VerifyHMAC compares signatures in constant time.
func VerifyHMAC(expected, computed []byte) bool {
	return hmac.Equal(expected, computed)
}

// FormatAPIKey constructs an API key from its components.
func FormatAPIKey(secretID, keyID string, mac []byte) string {
	return signedPart(secretID, keyID) + "-" + hex.EncodeToString(mac)
}

// IssueAPIKey creates a key signed by secret with a random key_id.
func IssueAPIKey(secretID string, secret []byte) (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate key id: %w", err)
	}
	keyID := hex.EncodeToString(raw[:])
	return FormatAPIKey(secretID, keyID, ComputeHMAC(secret, secretID, keyID)), nil
}

func signedPart(secretID, keyID string) string {
	return keyPrefix + "-" + secretID + "-" + keyID
}

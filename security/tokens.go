package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TokenHumanPrefix marks an instance bearer token on the wire.
	TokenHumanPrefix = "dg_"
	// TokenBytes is the entropy behind each token.
	TokenBytes = 32
	// TokenPrefixLen is the length of the non-secret sha256-derived lookup key.
	TokenPrefixLen = 12

	tokenMinLen = len(TokenHumanPrefix) + 16
	tokenMaxLen = 256
)

// TokenRecord is what gets persisted for an issued token: never the plaintext.
type TokenRecord struct {
	Prefix string
	Hash   string
}

// GenerateInstanceToken returns a fresh plaintext bearer token. The caller
// shows it to the client exactly once and stores only its record.
func GenerateInstanceToken() (string, error) {
	raw := make([]byte, TokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return TokenHumanPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// TokenPrefix derives the indexable lookup key from a plaintext token.
func TokenPrefix(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:TokenPrefixLen]
}

// ValidTokenFormat rejects obviously malformed tokens before any hashing.
func ValidTokenFormat(token string) bool {
	if !strings.HasPrefix(token, TokenHumanPrefix) {
		return false
	}
	return len(token) >= tokenMinLen && len(token) <= tokenMaxLen
}

// MakeTokenRecord hashes a plaintext token for storage.
func MakeTokenRecord(token string) (TokenRecord, error) {
	hash, err := HashPassword(token)
	if err != nil {
		return TokenRecord{}, err
	}
	return TokenRecord{Prefix: TokenPrefix(token), Hash: hash}, nil
}

// VerifyToken checks a plaintext token against a stored hash.
func VerifyToken(token, hash string) bool {
	if !ValidTokenFormat(token) || hash == "" {
		return false
	}
	return VerifyPassword(token, hash)
}

// RedactToken renders a token safe for logs.
func RedactToken(token string) string {
	if len(token) <= len(TokenHumanPrefix)+4 {
		return "***"
	}
	return token[:len(TokenHumanPrefix)+4] + "..."
}

package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const encPrefix = "enc:v1:"

var ErrInvalidCiphertext = errors.New("invalid ciphertext")

func gcmFromSecret(secret []byte) (cipher.AEAD, error) {
	key := sha256.Sum256(secret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptSecret encrypts a stored secret (e.g. the SMTP password) with
// AES-GCM under a key derived from the app secret. Output carries the
// enc:v1: prefix so plaintext legacy values stay distinguishable.
func EncryptSecret(plaintext string, secret []byte) (string, error) {
	gcm, err := gcmFromSecret(secret)
	if err != nil {
		return "", fmt.Errorf("initializing cipher: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return encPrefix + base64.RawURLEncoding.EncodeToString(append(nonce, sealed...)), nil
}

// DecryptSecret reverses EncryptSecret. Values without the enc:v1: prefix are
// returned unchanged (pre-encryption rows); prefixed values that fail to
// decrypt are an error, not silent data.
func DecryptSecret(value string, secret []byte) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		return value, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	gcm, err := gcmFromSecret(secret)
	if err != nil {
		return "", fmt.Errorf("initializing cipher: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

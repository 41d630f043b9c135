package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptSecret(t *testing.T) {
	secret := []byte("app-secret")
	encrypted, err := EncryptSecret("smtp-password", secret)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encrypted, "enc:v1:"))
	assert.NotContains(t, encrypted, "smtp-password")

	plain, err := DecryptSecret(encrypted, secret)
	require.NoError(t, err)
	assert.Equal(t, "smtp-password", plain)
}

func TestDecryptSecretPassthrough(t *testing.T) {
	plain, err := DecryptSecret("legacy-plaintext", []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, "legacy-plaintext", plain)
}

func TestDecryptSecretFailures(t *testing.T) {
	secret := []byte("app-secret")
	encrypted, err := EncryptSecret("value", secret)
	require.NoError(t, err)

	_, err = DecryptSecret(encrypted, []byte("wrong-secret"))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = DecryptSecret("enc:v1:not-base64!!", secret)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = DecryptSecret("enc:v1:AAAA", secret)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryption_RoundTrip(t *testing.T) {
	em := NewEncryptionManager(EncryptionConfig{Enabled: true, Passphrase: "correct horse"})
	payload := []byte(`{"metadata":{"version":"1.0"}}`)

	encrypted, err := em.Encrypt(payload)
	require.NoError(t, err)
	assert.NotEqual(t, payload, encrypted)

	decrypted, err := em.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, payload, decrypted)
}

func TestEncryption_Disabled(t *testing.T) {
	em := NewEncryptionManager(EncryptionConfig{})
	payload := []byte("plain")

	out, err := em.Encrypt(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	out, err = em.Decrypt(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestEncryption_WrongPassphrase(t *testing.T) {
	em := NewEncryptionManager(EncryptionConfig{Enabled: true, Passphrase: "right"})
	encrypted, err := em.Encrypt([]byte("secret rows"))
	require.NoError(t, err)

	other := NewEncryptionManager(EncryptionConfig{Enabled: true, Passphrase: "wrong"})
	_, err = other.Decrypt(encrypted)
	assert.Error(t, err)
}

func TestEncryption_MissingPassphrase(t *testing.T) {
	em := NewEncryptionManager(EncryptionConfig{Enabled: true})
	_, err := em.Encrypt([]byte("x"))
	assert.Error(t, err)
}

func TestEncryption_TruncatedPayload(t *testing.T) {
	em := NewEncryptionManager(EncryptionConfig{Enabled: true, Passphrase: "p"})
	_, err := em.Decrypt([]byte("short"))
	assert.Error(t, err)
}

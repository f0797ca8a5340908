package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLength       = 32 // AES-256
	saltLength      = 16
	pbkdf2Iteration = 100_000
)

// EncryptionConfig controls optional at-rest encryption of backup objects
type EncryptionConfig struct {
	Enabled    bool
	Passphrase string
}

// EncryptionManager encrypts backup objects with AES-256-GCM, deriving the
// key from a passphrase via PBKDF2. The object layout is salt||nonce||ciphertext.
type EncryptionManager struct {
	config EncryptionConfig
}

// NewEncryptionManager creates an encryption manager
func NewEncryptionManager(config EncryptionConfig) *EncryptionManager {
	return &EncryptionManager{config: config}
}

// Enabled reports whether objects will be encrypted
func (em *EncryptionManager) Enabled() bool { return em.config.Enabled }

// Encrypt encrypts data. Disabled encryption passes data through unchanged.
func (em *EncryptionManager) Encrypt(data []byte) ([]byte, error) {
	if !em.config.Enabled {
		return data, nil
	}
	if em.config.Passphrase == "" {
		return nil, fmt.Errorf("encryption enabled but no passphrase configured")
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := em.cipherFor(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, saltLength+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Decrypt reverses Encrypt. Disabled encryption passes data through unchanged.
func (em *EncryptionManager) Decrypt(data []byte) ([]byte, error) {
	if !em.config.Enabled {
		return data, nil
	}
	if len(data) < saltLength {
		return nil, fmt.Errorf("encrypted payload too short")
	}

	salt := data[:saltLength]
	gcm, err := em.cipherFor(salt)
	if err != nil {
		return nil, err
	}

	rest := data[saltLength:]
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted payload too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt backup payload: %w", err)
	}
	return plaintext, nil
}

func (em *EncryptionManager) cipherFor(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(em.config.Passphrase), salt, pbkdf2Iteration, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

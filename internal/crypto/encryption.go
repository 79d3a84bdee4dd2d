package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// KeySize is the AES-256 key length in bytes
const KeySize = 32

// Cipher encrypts short secrets (session payloads) with AES-256-GCM
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a cipher from a 32-byte key
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: gcm}, nil
}

// KeyFromString derives a 32-byte key from a configured value. A base64 value of exactly
// 32 bytes is used as is; anything else is hashed with SHA-256.
func KeyFromString(value string) []byte {
	keyBytes, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		hash := sha256.Sum256([]byte(value))
		return hash[:]
	}
	if len(keyBytes) != KeySize {
		hash := sha256.Sum256(keyBytes)
		return hash[:]
	}
	return keyBytes
}

// LoadCipher builds the cipher from the configured key, or from the system keychain when
// no key is configured.
// Priority:
// 1. ENCRYPTION_KEY (development/testing)
// 2. System keychain
// 3. Generate new key and store in keychain
func LoadCipher(configuredKey string, logger *zap.Logger) (*Cipher, error) {
	if configuredKey != "" {
		return NewCipher(KeyFromString(configuredKey))
	}

	key, err := GenerateOrLoadKey(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption from keystore: %w", err)
	}
	return NewCipher(key)
}

// Encrypt encrypts plaintext and returns base64(nonce || ciphertext)
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt
func (c *Cipher) Decrypt(ciphertextB64 string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

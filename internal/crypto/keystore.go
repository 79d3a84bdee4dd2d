package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"

	"novelassist/internal/logging"
)

const (
	keystoreService = "novelassist"
	keystoreUser    = "encryption-key"
)

// GenerateOrLoadKey loads the encryption key from the system keychain, generating and
// storing a new one on first use. Returns 32 bytes for AES-256.
func GenerateOrLoadKey(logger *zap.Logger) ([]byte, error) {
	logger = logging.OrNop(logger)

	keyString, err := keyring.Get(keystoreService, keystoreUser)
	if err == nil && keyString != "" {
		if key, decErr := base64.StdEncoding.DecodeString(keyString); decErr == nil && len(key) == KeySize {
			return key, nil
		}
		logger.Warn("Stored encryption key is malformed, generating a new one")
	}

	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		logger.Warn("Keystore read failed", zap.Error(err))
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	if err := keyring.Set(keystoreService, keystoreUser, base64.StdEncoding.EncodeToString(key)); err != nil {
		// Linux without a secret service is acceptable for development; the key is
		// regenerated on next launch and stored sessions become unreadable.
		logger.Warn("Failed to store key in keychain, key will be regenerated on next launch", zap.Error(err))

		if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
			return nil, fmt.Errorf("keychain storage required on %s: %w", runtime.GOOS, err)
		}
	}

	return key, nil
}

// DeleteKey removes the encryption key from the keychain
func DeleteKey() error {
	return keyring.Delete(keystoreService, keystoreUser)
}

// IsKeyStored checks if an encryption key exists in the keychain
func IsKeyStored() bool {
	_, err := keyring.Get(keystoreService, keystoreUser)
	return err == nil
}

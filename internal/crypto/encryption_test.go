package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	c, err := NewCipher(key)
	require.NoError(t, err)
	return c
}

func TestEncryptDecrypt(t *testing.T) {
	c := newTestCipher(t)

	t.Run("Should encrypt and decrypt a session payload", func(t *testing.T) {
		plaintext := `{"accessToken":"abc.def.ghi","roles":["ROLE_USER"]}`

		encrypted, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, encrypted)
		assert.NotEmpty(t, encrypted)

		decrypted, err := c.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	})

	t.Run("Should produce different ciphertexts for same plaintext", func(t *testing.T) {
		encrypted1, err := c.Encrypt("token")
		require.NoError(t, err)
		encrypted2, err := c.Encrypt("token")
		require.NoError(t, err)

		// AES-GCM uses a random nonce
		assert.NotEqual(t, encrypted1, encrypted2)
	})

	t.Run("Should fail gracefully with invalid ciphertext", func(t *testing.T) {
		_, err := c.Decrypt("invalid-base64-data!!!")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode base64")
	})

	t.Run("Should fail with ciphertext too short", func(t *testing.T) {
		shortCiphertext := base64.StdEncoding.EncodeToString([]byte("short"))

		_, err := c.Decrypt(shortCiphertext)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ciphertext too short")
	})

	t.Run("Should fail to decrypt with another key", func(t *testing.T) {
		encrypted, err := c.Encrypt("secret")
		require.NoError(t, err)

		_, err = newTestCipher(t).Decrypt(encrypted)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decrypt")
	})

	t.Run("Should handle empty plaintext", func(t *testing.T) {
		encrypted, err := c.Encrypt("")
		require.NoError(t, err)

		decrypted, err := c.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, "", decrypted)
	})
}

func TestNewCipher(t *testing.T) {
	t.Run("Should reject keys of the wrong size", func(t *testing.T) {
		_, err := NewCipher([]byte("too-short"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must be 32 bytes")
	})
}

func TestKeyFromString(t *testing.T) {
	t.Run("Should use a 32-byte base64 key as is", func(t *testing.T) {
		raw := make([]byte, KeySize)
		_, err := rand.Read(raw)
		require.NoError(t, err)

		assert.Equal(t, raw, KeyFromString(base64.StdEncoding.EncodeToString(raw)))
	})

	t.Run("Should hash a raw string to 32 bytes", func(t *testing.T) {
		key := KeyFromString("test-encryption-key-raw-string")
		assert.Len(t, key, KeySize)
		assert.Equal(t, key, KeyFromString("test-encryption-key-raw-string"))
	})
}

func TestLoadCipher(t *testing.T) {
	t.Run("Should prefer the configured key", func(t *testing.T) {
		c, err := LoadCipher("configured-key", nil)
		require.NoError(t, err)

		encrypted, err := c.Encrypt("x")
		require.NoError(t, err)

		again, err := LoadCipher("configured-key", nil)
		require.NoError(t, err)
		decrypted, err := again.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, "x", decrypted)
	})

	t.Run("Should generate and reuse a keychain key", func(t *testing.T) {
		keyring.MockInit()

		assert.False(t, IsKeyStored())

		first, err := LoadCipher("", nil)
		require.NoError(t, err)
		assert.True(t, IsKeyStored())

		encrypted, err := first.Encrypt("persisted")
		require.NoError(t, err)

		second, err := LoadCipher("", nil)
		require.NoError(t, err)
		decrypted, err := second.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, "persisted", decrypted)

		require.NoError(t, DeleteKey())
		assert.False(t, IsKeyStored())
	})
}

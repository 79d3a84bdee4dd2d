package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zalando/go-keyring"
	"gorm.io/gorm"

	"novelassist/internal/crypto"
	"novelassist/internal/models"
)

// KeyringService is the keychain service name sessions are stored under
const KeyringService = "novelassist-cli"

// KeyringBackend keeps the session in the OS keychain
type KeyringBackend struct {
	service string
	account string
}

// NewKeyringBackend creates a keychain backend for the fixed session key
func NewKeyringBackend() *KeyringBackend {
	return &KeyringBackend{service: KeyringService, account: Key}
}

func (b *KeyringBackend) Get(ctx context.Context) (string, error) {
	value, err := keyring.Get(b.service, b.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (b *KeyringBackend) Set(ctx context.Context, value string) error {
	return keyring.Set(b.service, b.account, value)
}

func (b *KeyringBackend) Delete(ctx context.Context) error {
	err := keyring.Delete(b.service, b.account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// RedisBackend keeps the session in Redis with TTL
type RedisBackend struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisBackend builds a Redis-backed session backend
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, key: "novelassist:session:" + Key, ttl: ttl}
}

func (b *RedisBackend) Get(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	val, err := b.client.Get(ctx, b.key).Result()
	if err == redis.Nil {
		return "", ErrNoSession
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (b *RedisBackend) Set(ctx context.Context, value string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return b.client.Set(ctx, b.key, value, b.ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := b.client.Del(ctx, b.key).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// DatabaseBackend keeps the session encrypted in the client_state table
type DatabaseBackend struct {
	db     *gorm.DB
	cipher *crypto.Cipher
}

// NewDatabaseBackend creates a database backend; the table must already be migrated
func NewDatabaseBackend(db *gorm.DB, cipher *crypto.Cipher) *DatabaseBackend {
	return &DatabaseBackend{db: db, cipher: cipher}
}

func (b *DatabaseBackend) Get(ctx context.Context) (string, error) {
	var row models.ClientState
	err := b.db.WithContext(ctx).Where("key = ?", Key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session row: %w", err)
	}

	plaintext, err := b.cipher.Decrypt(row.ValueEnc)
	if err != nil {
		return "", &ParseError{Raw: row.ValueEnc, Err: err}
	}
	return plaintext, nil
}

func (b *DatabaseBackend) Set(ctx context.Context, value string) error {
	enc, err := b.cipher.Encrypt(value)
	if err != nil {
		return err
	}
	return b.db.WithContext(ctx).Save(&models.ClientState{Key: Key, ValueEnc: enc}).Error
}

func (b *DatabaseBackend) Delete(ctx context.Context) error {
	return b.db.WithContext(ctx).Where("key = ?", Key).Delete(&models.ClientState{}).Error
}

// MemoryBackend keeps the session in process memory
type MemoryBackend struct {
	mu    sync.Mutex
	value string
	set   bool
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Get(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.set {
		return "", ErrNoSession
	}
	return b.value, nil
}

func (b *MemoryBackend) Set(ctx context.Context, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = value
	b.set = true
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = ""
	b.set = false
	return nil
}

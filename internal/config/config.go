package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session backends understood by the application
const (
	SessionBackendKeyring  = "keyring"
	SessionBackendRedis    = "redis"
	SessionBackendDatabase = "database"
	SessionBackendMemory   = "memory"
)

// Config holds every runtime setting of the client
type Config struct {
	APIURL         string        `yaml:"apiURL"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	RetryCount     int           `yaml:"retryCount"`
	RateLimit      float64       `yaml:"rateLimit"` // requests per second, 0 disables limiting
	RateBurst      int           `yaml:"rateBurst"`
	PollInterval   time.Duration `yaml:"pollInterval"`

	SessionBackend string        `yaml:"sessionBackend"`
	RedisAddr      string        `yaml:"redisAddr"`
	RedisPassword  string        `yaml:"redisPassword"`
	SessionTTL     time.Duration `yaml:"sessionTTL"`

	DatabaseURL   string `yaml:"databaseURL"`
	EncryptionKey string `yaml:"-"` // env only, never read from a file

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	CORSOrigin string `yaml:"corsOrigin"`
	ServeAddr  string `yaml:"serveAddr"`
	LoginPath  string `yaml:"loginPath"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		APIURL:         "http://localhost:8080",
		RequestTimeout: 10 * time.Second,
		RetryCount:     2,
		RateLimit:      10,
		RateBurst:      20,
		PollInterval:   2 * time.Second,
		SessionBackend: SessionBackendKeyring,
		RedisAddr:      "localhost:6379",
		SessionTTL:     7 * 24 * time.Hour,
		DatabaseURL:    "sqlite://./novelassist.db",
		LogLevel:       "info",
		LogFormat:      "text",
		CORSOrigin:     "http://localhost:8081",
		ServeAddr:      ":8082",
		LoginPath:      "/login",
	}
}

// Load builds the configuration. Precedence, lowest first: defaults, the YAML file at path
// (skipped when path is empty), a .env file in the working directory, the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// A missing .env is normal outside development
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("parse .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	loadEnvString(&c.APIURL, "NOVEL_API_URL")
	if err := loadEnvDuration(&c.RequestTimeout, "REQUEST_TIMEOUT"); err != nil {
		return err
	}
	if err := loadEnvInt(&c.RetryCount, "RETRY_COUNT"); err != nil {
		return err
	}
	if err := loadEnvFloat(&c.RateLimit, "RATE_LIMIT"); err != nil {
		return err
	}
	if err := loadEnvInt(&c.RateBurst, "RATE_BURST"); err != nil {
		return err
	}
	if err := loadEnvDuration(&c.PollInterval, "POLL_INTERVAL"); err != nil {
		return err
	}

	loadEnvString(&c.SessionBackend, "SESSION_BACKEND")
	loadEnvString(&c.RedisAddr, "REDIS_ADDR")
	loadEnvString(&c.RedisPassword, "REDIS_PASSWORD")
	if err := loadEnvDuration(&c.SessionTTL, "SESSION_TTL"); err != nil {
		return err
	}

	loadEnvString(&c.DatabaseURL, "DATABASE_URL")
	loadEnvString(&c.EncryptionKey, "ENCRYPTION_KEY")

	loadEnvString(&c.LogLevel, "LOG_LEVEL")
	loadEnvString(&c.LogFormat, "LOG_FORMAT")

	loadEnvString(&c.CORSOrigin, "CORS_ORIGIN")
	loadEnvString(&c.ServeAddr, "SERVE_ADDR")
	loadEnvString(&c.LoginPath, "LOGIN_PATH")
	return nil
}

func loadEnvString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func loadEnvInt(target *int, key string) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func loadEnvFloat(target *float64, key string) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var problems []string

	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "NOVEL_API_URL must be an absolute http(s) URL")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "REQUEST_TIMEOUT must be positive")
	}
	if c.RetryCount < 0 {
		problems = append(problems, "RETRY_COUNT must not be negative")
	}
	if c.RateLimit < 0 {
		problems = append(problems, "RATE_LIMIT must not be negative")
	}
	if c.PollInterval < time.Second {
		problems = append(problems, "POLL_INTERVAL must be at least 1s")
	}

	switch c.SessionBackend {
	case SessionBackendKeyring, SessionBackendRedis, SessionBackendDatabase, SessionBackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("SESSION_BACKEND must be one of: %s",
			strings.Join([]string{SessionBackendKeyring, SessionBackendRedis, SessionBackendDatabase, SessionBackendMemory}, ", ")))
	}
	if c.SessionBackend == SessionBackendRedis && c.RedisAddr == "" {
		problems = append(problems, "REDIS_ADDR is required for the redis session backend")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	if !contains([]string{"text", "json"}, c.LogFormat) {
		problems = append(problems, "LOG_FORMAT must be one of: text, json")
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		problems = append(problems, "LOGIN_PATH must start with /")
	}

	if len(problems) > 0 {
		return errors.New("configuration validation failed: " + strings.Join(problems, "; "))
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Package config loads service configuration from the environment.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Key store backends.
const (
	KeyStoreMemory   = "memory"
	KeyStoreFile     = "file"
	KeyStorePostgres = "postgres"
	KeyStoreVault    = "vault"
)

// Config holds everything the CLI and HTTP service need.
type Config struct {
	ListenAddr  string `validate:"required,hostname_port"`
	MetricsAddr string `validate:"omitempty,hostname_port"`

	Suite   string `validate:"required,oneof=nacl-sealedbox sealedbox hpke-x25519-chacha20poly1305 hpke"`
	Workers int    `validate:"gte=0"`

	KeyStore    string `validate:"required,oneof=memory file postgres vault"`
	KeyStoreDir string `validate:"required_if=KeyStore file"`
	DatabaseURL string `validate:"required_if=KeyStore postgres"`
	VaultAddr   string `validate:"required_if=KeyStore vault"`
	VaultToken  string `validate:"required_if=KeyStore vault"`
	VaultMount  string `validate:"required_if=KeyStore vault"`
	VaultPrefix string

	// MasterKey wraps private keys at rest. Empty stores them unwrapped.
	MasterKey string `validate:"omitempty,hexadecimal,min=64"`

	MaxUploadBytes int64   `validate:"gt=0"`
	MaxImagePixels int     `validate:"gte=0"`
	RateLimit      float64 `validate:"gte=0"`
	RateBurst      int     `validate:"gte=0"`
}

// Default returns the configuration used when no variables are set.
func Default() *Config {
	return &Config{
		ListenAddr:     "127.0.0.1:8080",
		MetricsAddr:    "127.0.0.1:8090",
		Suite:          "nacl-sealedbox",
		KeyStore:       KeyStoreMemory,
		KeyStoreDir:    "./keys",
		VaultMount:     "secret",
		VaultPrefix:    "stegseal",
		MaxUploadBytes: 32 << 20,
		MaxImagePixels: 64 << 20,
		RateLimit:      10,
		RateBurst:      30,
	}
}

var validate = validator.New()

// Load reads .env style files, if present, then STEGSEAL_* variables over
// the defaults, and validates the result. Variables already set in the
// process environment win over files.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, parse func(string) error) {
		if v, ok := os.LookupEnv(key); ok {
			if err := parse(strings.TrimSpace(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	str("STEGSEAL_LISTEN_ADDR", &cfg.ListenAddr)
	str("STEGSEAL_METRICS_ADDR", &cfg.MetricsAddr)
	str("STEGSEAL_SUITE", &cfg.Suite)
	str("STEGSEAL_KEYSTORE", &cfg.KeyStore)
	str("STEGSEAL_KEYSTORE_DIR", &cfg.KeyStoreDir)
	str("STEGSEAL_DATABASE_URL", &cfg.DatabaseURL)
	str("STEGSEAL_VAULT_ADDR", &cfg.VaultAddr)
	str("STEGSEAL_VAULT_TOKEN", &cfg.VaultToken)
	str("STEGSEAL_VAULT_MOUNT", &cfg.VaultMount)
	str("STEGSEAL_VAULT_PREFIX", &cfg.VaultPrefix)
	str("STEGSEAL_MASTER_KEY", &cfg.MasterKey)

	num("STEGSEAL_WORKERS", func(s string) (err error) {
		cfg.Workers, err = strconv.Atoi(s)
		return err
	})
	num("STEGSEAL_MAX_UPLOAD_BYTES", func(s string) (err error) {
		cfg.MaxUploadBytes, err = strconv.ParseInt(s, 10, 64)
		return err
	})
	num("STEGSEAL_MAX_IMAGE_PIXELS", func(s string) (err error) {
		cfg.MaxImagePixels, err = strconv.Atoi(s)
		return err
	})
	num("STEGSEAL_RATE_LIMIT", func(s string) (err error) {
		cfg.RateLimit, err = strconv.ParseFloat(s, 64)
		return err
	})
	num("STEGSEAL_RATE_BURST", func(s string) (err error) {
		cfg.RateBurst, err = strconv.Atoi(s)
		return err
	})

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	cfg.KeyStore = strings.ToLower(cfg.KeyStore)
	cfg.Suite = strings.ToLower(cfg.Suite)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// MasterKeyBytes decodes MasterKey. It returns nil when no key is set.
func (c *Config) MasterKeyBytes() ([]byte, error) {
	if c.MasterKey == "" {
		return nil, nil
	}
	return hex.DecodeString(c.MasterKey)
}

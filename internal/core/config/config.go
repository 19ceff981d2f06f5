// internal/core/config/config.go

// Package config provides configuration management for the quill service.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration of the quill binary.
type Config struct {
	Server   ServerConfig
	Rewriter RewriterConfig
}

// ServerConfig holds configuration for the gRPC rewrite service.
type ServerConfig struct {
	Host           string
	Port           int
	MetricsAddr    string
	RequestTimeout time.Duration
	MaxQueryLength int
	DataDir        string
	DatabaseURL    string
}

// RewriterConfig selects the rules and the selection strategy used per request.
type RewriterConfig struct {
	RulesFile       string
	RuleSet         string
	IgnoreCase      bool
	FieldPolicy     string
	StrategiesFile  string
	DefaultStrategy string
	Watch           bool
	ReloadDebounce  time.Duration
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50061,
			MetricsAddr:    ":9464",
			RequestTimeout: 5 * time.Second,
			MaxQueryLength: 1024,
			DataDir:        "./data",
		},
		Rewriter: RewriterConfig{
			RuleSet:         "default",
			IgnoreCase:      true,
			FieldPolicy:     "any_field",
			DefaultStrategy: "default",
			Watch:           true,
			ReloadDebounce:  250 * time.Millisecond,
		},
	}
}

// Addr is the host:port the gRPC listener binds to.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Database returns the rule-set store URL, defaulting to a sqlite file in DataDir.
func (c ServerConfig) Database() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "sqlite://" + filepath.Join(c.DataDir, "quill.db")
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports QUILL_HMAC_SECRET (single) and QUILL_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(key, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' found in environment variables (check QUILL_HMAC_SECRET and QUILL_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
		return nil
	}

	if val := os.Getenv("QUILL_HMAC_SECRET"); val != "" {
		if err := add("QUILL_HMAC_SECRET", val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets keep old and new keys valid during rotation.
	for i := 1; ; i++ {
		key := fmt.Sprintf("QUILL_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 lowercase hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return secretID, secret, nil
}

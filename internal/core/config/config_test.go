package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/solatis/quill/internal/rules"
	"github.com/spf13/pflag"
)

const (
	testSecretID  = "0123456789abcdef0123456789abcdef"
	testSecretID2 = "fedcba9876543210fedcba9876543210"
	testSecretB64 = "dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
)

func clearSecrets(t *testing.T) {
	t.Helper()
	for _, k := range []string{"QUILL_HMAC_SECRET", "QUILL_HMAC_SECRET_1", "QUILL_HMAC_SECRET_2"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestHMACSecrets(t *testing.T) {
	t.Run("none configured", func(t *testing.T) {
		clearSecrets(t)
		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 0 {
			t.Fatalf("len(secrets) = %d, want 0", len(secrets))
		}
	})

	t.Run("single secret", func(t *testing.T) {
		clearSecrets(t)
		t.Setenv("QUILL_HMAC_SECRET", testSecretID+":"+testSecretB64)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 1 {
			t.Errorf("len(secrets) = %d, want 1", len(secrets))
		}
		if _, ok := secrets[testSecretID]; !ok {
			t.Errorf("secret_id not found in map")
		}
	})

	t.Run("multiple numbered secrets", func(t *testing.T) {
		clearSecrets(t)
		t.Setenv("QUILL_HMAC_SECRET_1", testSecretID+":"+testSecretB64)
		t.Setenv("QUILL_HMAC_SECRET_2", testSecretID2+":YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 2 {
			t.Errorf("len(secrets) = %d, want 2", len(secrets))
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		clearSecrets(t)
		t.Setenv("QUILL_HMAC_SECRET", "invalid_format")
		if _, err := HMACSecrets(); err == nil {
			t.Error("expected error for invalid format")
		}
	})

	t.Run("duplicate secret_id between single and numbered", func(t *testing.T) {
		clearSecrets(t)
		t.Setenv("QUILL_HMAC_SECRET", testSecretID+":"+testSecretB64)
		t.Setenv("QUILL_HMAC_SECRET_1", testSecretID+":YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		if _, err := HMACSecrets(); err == nil {
			t.Error("expected error for duplicate secret_id")
		}
	})
}

func TestParseHMACSecretWithID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid", testSecretID + ":" + testSecretB64, false},
		{"missing colon", testSecretID, true},
		{"short id", "tooshort:" + testSecretB64, true},
		{"non-hex id", "0123456789abcdefGHIJKLMNOPQRSTUV:" + testSecretB64, true},
		{"bad base64", testSecretID + ":not-valid-base64!!!", true},
		{"short secret", testSecretID + ":c2hvcnQ=", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, secret, err := ParseHMACSecretWithID(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHMACSecretWithID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (id != testSecretID || len(secret) < 32) {
				t.Fatalf("ParseHMACSecretWithID() = %q, %d bytes", id, len(secret))
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("", nil)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		want := DefaultConfig()
		if cfg.Server != want.Server {
			t.Fatalf("Server = %+v, want %+v", cfg.Server, want.Server)
		}
		if cfg.Rewriter != want.Rewriter {
			t.Fatalf("Rewriter = %+v, want %+v", cfg.Rewriter, want.Rewriter)
		}
		if got := cfg.Server.Addr(); got != "0.0.0.0:50061" {
			t.Fatalf("Addr() = %q, want 0.0.0.0:50061", got)
		}
		if got := cfg.Server.Database(); got != "sqlite://"+filepath.Join("./data", "quill.db") {
			t.Fatalf("Database() = %q", got)
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("QUILL_SERVER_PORT", "9999")
		t.Setenv("QUILL_REWRITER_IGNORE_CASE", "false")
		t.Setenv("QUILL_REWRITER_RELOAD_DEBOUNCE", "1s")

		cfg, err := LoadConfig("", nil)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Server.Port != 9999 {
			t.Errorf("Port = %d, want 9999", cfg.Server.Port)
		}
		if cfg.Rewriter.IgnoreCase {
			t.Errorf("IgnoreCase = true, want false")
		}
		if cfg.Rewriter.ReloadDebounce != time.Second {
			t.Errorf("ReloadDebounce = %v, want 1s", cfg.Rewriter.ReloadDebounce)
		}
	})

	t.Run("flag overrides environment", func(t *testing.T) {
		t.Setenv("QUILL_REWRITER_RULES_FILE", "env.txt")

		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String("rules", "", "")
		fs.Int("port", 0, "")
		if err := fs.Parse([]string{"--rules", "flag.txt"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig("", fs)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Rewriter.RulesFile != "flag.txt" {
			t.Errorf("RulesFile = %q, want flag.txt", cfg.Rewriter.RulesFile)
		}
		// Unchanged flags keep the configured value.
		if cfg.Server.Port != 50061 {
			t.Errorf("Port = %d, want 50061", cfg.Server.Port)
		}
	})

	t.Run("invalid port range", func(t *testing.T) {
		t.Setenv("QUILL_SERVER_PORT", "70000")
		if _, err := LoadConfig("", nil); err == nil {
			t.Error("expected error for port > 65535")
		}
	})

	t.Run("invalid field policy", func(t *testing.T) {
		t.Setenv("QUILL_REWRITER_FIELD_POLICY", "sometimes")
		if _, err := LoadConfig("", nil); err == nil {
			t.Error("expected error for unknown field policy")
		}
	})

	t.Run("non-positive query length", func(t *testing.T) {
		t.Setenv("QUILL_SERVER_MAX_QUERY_LENGTH", "0")
		if _, err := LoadConfig("", nil); err == nil {
			t.Error("expected error for max_query_length 0")
		}
	})
}

func TestRuleOptions(t *testing.T) {
	c := RewriterConfig{IgnoreCase: false, FieldPolicy: "unscoped_only"}
	opts, err := c.RuleOptions()
	if err != nil {
		t.Fatalf("RuleOptions() error = %v", err)
	}
	if opts.IgnoreCase || opts.FieldPolicy != rules.FieldPolicyUnscopedOnly {
		t.Fatalf("RuleOptions() = %+v", opts)
	}

	c.FieldPolicy = "bogus"
	if _, err := c.RuleOptions(); err == nil {
		t.Fatal("RuleOptions() error = nil, want error")
	}
}

// internal/core/config/viper.go
package config

import (
	"fmt"
	"strings"

	"github.com/solatis/quill/internal/rules"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"host":             "server.host",
	"port":             "server.port",
	"metrics-addr":     "server.metrics_addr",
	"data-dir":         "server.data_dir",
	"database":         "server.database_url",
	"rules":            "rewriter.rules_file",
	"rule-set":         "rewriter.rule_set",
	"strategies":       "rewriter.strategies_file",
	"default-strategy": "rewriter.default_strategy",
	"watch":            "rewriter.watch",
}

// LoadConfig loads configuration using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags that were changed on the command line override.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.max_query_length", d.Server.MaxQueryLength)
	v.SetDefault("server.data_dir", d.Server.DataDir)
	v.SetDefault("server.database_url", "")
	v.SetDefault("rewriter.rules_file", "")
	v.SetDefault("rewriter.rule_set", d.Rewriter.RuleSet)
	v.SetDefault("rewriter.ignore_case", d.Rewriter.IgnoreCase)
	v.SetDefault("rewriter.field_policy", d.Rewriter.FieldPolicy)
	v.SetDefault("rewriter.strategies_file", "")
	v.SetDefault("rewriter.default_strategy", d.Rewriter.DefaultStrategy)
	v.SetDefault("rewriter.watch", d.Rewriter.Watch)
	v.SetDefault("rewriter.reload_debounce", d.Rewriter.ReloadDebounce.String())

	v.SetEnvPrefix("QUILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			MetricsAddr:    v.GetString("server.metrics_addr"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MaxQueryLength: v.GetInt("server.max_query_length"),
			DataDir:        v.GetString("server.data_dir"),
			DatabaseURL:    v.GetString("server.database_url"),
		},
		Rewriter: RewriterConfig{
			RulesFile:       v.GetString("rewriter.rules_file"),
			RuleSet:         v.GetString("rewriter.rule_set"),
			IgnoreCase:      v.GetBool("rewriter.ignore_case"),
			FieldPolicy:     v.GetString("rewriter.field_policy"),
			StrategiesFile:  v.GetString("rewriter.strategies_file"),
			DefaultStrategy: v.GetString("rewriter.default_strategy"),
			Watch:           v.GetBool("rewriter.watch"),
			ReloadDebounce:  v.GetDuration("rewriter.reload_debounce"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RuleOptions converts the rewriter section into compiler options.
func (c RewriterConfig) RuleOptions() (rules.Options, error) {
	policy, ok := rules.ParseFieldPolicy(c.FieldPolicy)
	if !ok {
		return rules.Options{}, fmt.Errorf("unknown field_policy %q", c.FieldPolicy)
	}
	opts := rules.DefaultOptions()
	opts.IgnoreCase = c.IgnoreCase
	opts.FieldPolicy = policy
	return opts, nil
}

// validateConfig checks port range and positive limits.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.MaxQueryLength <= 0 {
		return fmt.Errorf("max_query_length must be positive, got %d", cfg.Server.MaxQueryLength)
	}
	if cfg.Rewriter.ReloadDebounce < 0 {
		return fmt.Errorf("reload_debounce must not be negative, got %v", cfg.Rewriter.ReloadDebounce)
	}
	if _, ok := rules.ParseFieldPolicy(cfg.Rewriter.FieldPolicy); !ok {
		return fmt.Errorf("field_policy must be any_field or unscoped_only, got %q", cfg.Rewriter.FieldPolicy)
	}
	if cfg.Rewriter.DefaultStrategy == "" {
		return fmt.Errorf("default_strategy must not be empty")
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range []string{"hmac_secret", "server.hmac_secret"} {
		if v.InConfig(key) {
			return fmt.Errorf("HMAC secrets not allowed in config files (use QUILL_HMAC_SECRET environment variable)")
		}
	}
	return nil
}

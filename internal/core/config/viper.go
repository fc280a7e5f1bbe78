package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"host":            "server.host",
	"port":            "server.port",
	"metrics-addr":    "server.metrics_addr",
	"max-form-fields": "server.max_form_fields",
	"data-dir":        "server.data_dir",
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags present in flagKeys are bound.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*ServerConfig, error) {
	v := viper.New()

	def := DefaultServerConfig()
	v.SetDefault("server.host", def.Host)
	v.SetDefault("server.port", def.Port)
	v.SetDefault("server.max_connections", def.MaxConnections)
	v.SetDefault("server.request_timeout", def.RequestTimeout.String())
	v.SetDefault("server.max_form_fields", def.MaxFormFields)
	v.SetDefault("server.metrics_addr", def.MetricsAddr)
	v.SetDefault("server.data_dir", def.DataDir)

	v.SetEnvPrefix("CF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &ServerConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		MaxConnections: v.GetInt("server.max_connections"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		MaxFormFields:  v.GetInt("server.max_form_fields"),
		MetricsAddr:    v.GetString("server.metrics_addr"),
		DataDir:        v.GetString("server.data_dir"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range and positive limits.
func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxFormFields <= 0 {
		return fmt.Errorf("max_form_fields must be positive, got %d", cfg.MaxFormFields)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("hmac_secret") || v.IsSet("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use CF_HMAC_SECRET environment variable)")
	}
	return nil
}

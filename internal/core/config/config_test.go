package config

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

const (
	testSecretA = "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
	testSecretB = "fedcba9876543210fedcba9876543210:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
)

const (
	testIDA = "0123456789abcdef0123456789abcdef"
	testIDB = "fedcba9876543210fedcba9876543210"
)

// fakeEnv is a getenv over a fixed set of variables.
type fakeEnv map[string]string

func (e fakeEnv) get(name string) string { return e[name] }

func TestLoadSecrets(t *testing.T) {
	tests := []struct {
		name    string
		env     fakeEnv
		wantIDs []string
		wantErr bool
	}{
		{"none", fakeEnv{}, []string{}, false},
		{"single secret", fakeEnv{"CF_HMAC_SECRET": testSecretA}, []string{testIDA}, false},
		{"numbered secrets", fakeEnv{"CF_HMAC_SECRET_1": testSecretA, "CF_HMAC_SECRET_2": testSecretB}, []string{testIDA, testIDB}, false},
		{"primary and rotation", fakeEnv{"CF_HMAC_SECRET": testSecretB, "CF_HMAC_SECRET_1": testSecretA}, []string{testIDA, testIDB}, false},
		{"numbering stops at first gap", fakeEnv{"CF_HMAC_SECRET_2": testSecretB}, []string{}, false},
		{"invalid format", fakeEnv{"CF_HMAC_SECRET": "invalid_format"}, nil, true},
		{"invalid rotation secret", fakeEnv{"CF_HMAC_SECRET": testSecretA, "CF_HMAC_SECRET_1": "x"}, nil, true},
		{"duplicate id in numbered secrets", fakeEnv{"CF_HMAC_SECRET_1": testSecretA, "CF_HMAC_SECRET_2": testIDA + ":YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"}, nil, true},
		{"duplicate id between primary and numbered", fakeEnv{"CF_HMAC_SECRET": testSecretA, "CF_HMAC_SECRET_1": testSecretA}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secrets, err := loadSecrets(tt.env.get)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("loadSecrets() = %v, want error", secrets.IDs())
				}
				return
			}
			if err != nil {
				t.Fatalf("loadSecrets() error = %v", err)
			}
			if got := secrets.IDs(); !reflect.DeepEqual(got, tt.wantIDs) {
				t.Errorf("IDs() = %v, want %v", got, tt.wantIDs)
			}
		})
	}

	t.Run("error names the variable", func(t *testing.T) {
		_, err := loadSecrets(fakeEnv{"CF_HMAC_SECRET": testSecretA, "CF_HMAC_SECRET_1": "x"}.get)
		if err == nil || !strings.HasPrefix(err.Error(), "CF_HMAC_SECRET_1:") {
			t.Errorf("error = %v, want CF_HMAC_SECRET_1 prefix", err)
		}
	})
}

func TestSecretsSigning(t *testing.T) {
	one := Secrets{testIDA: []byte("1")}
	id, key, err := one.Signing("")
	if err != nil {
		t.Fatalf("Signing() error = %v", err)
	}
	if id != testIDA || string(key) != "1" {
		t.Errorf("Signing() = %s, %q", id, key)
	}

	two := Secrets{testIDA: []byte("1"), testIDB: []byte("2")}
	if _, _, err := two.Signing(""); !errors.Is(err, ErrAmbiguousSecret) {
		t.Errorf("Signing() error = %v, want ErrAmbiguousSecret", err)
	} else if !strings.Contains(err.Error(), testIDA+", "+testIDB) {
		t.Errorf("error %q should list the candidate ids", err)
	}
	id, key, err = two.Signing(testIDB)
	if err != nil {
		t.Fatalf("Signing(%s) error = %v", testIDB, err)
	}
	if id != testIDB || string(key) != "2" {
		t.Errorf("Signing(%s) = %s, %q", testIDB, id, key)
	}

	if _, _, err := two.Signing("ffffffffffffffffffffffffffffffff"); err == nil {
		t.Error("expected error for unknown secret id")
	}
	if _, _, err := Secrets(nil).Signing(""); !errors.Is(err, ErrNoSecrets) {
		t.Errorf("Signing() error = %v, want ErrNoSecrets", err)
	}
}

func TestLoadConfig(t *testing.T) {
	os.Unsetenv("CF_SERVER_HOST")
	os.Unsetenv("CF_SERVER_PORT")

	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("", nil)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Host != "0.0.0.0" {
			t.Errorf("expected host 0.0.0.0, got %s", cfg.Host)
		}
		if cfg.Port != 50051 {
			t.Errorf("expected port 50051, got %d", cfg.Port)
		}
		if cfg.MaxConnections != 1000 {
			t.Errorf("expected max_connections 1000, got %d", cfg.MaxConnections)
		}
		if cfg.RequestTimeout != 30*time.Second {
			t.Errorf("expected timeout 30s, got %v", cfg.RequestTimeout)
		}
		if cfg.MaxFormFields != 1000 {
			t.Errorf("expected max_form_fields 1000, got %d", cfg.MaxFormFields)
		}
		if cfg.MetricsAddr != ":9090" {
			t.Errorf("expected metrics_addr :9090, got %s", cfg.MetricsAddr)
		}
		if cfg.DataDir != "./data" {
			t.Errorf("expected data_dir ./data, got %s", cfg.DataDir)
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("CF_SERVER_PORT", "9999")
		t.Setenv("CF_SERVER_HOST", "127.0.0.1")
		t.Setenv("CF_SERVER_MAX_FORM_FIELDS", "50")

		cfg, err := LoadConfig("", nil)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != 9999 {
			t.Errorf("expected port 9999, got %d", cfg.Port)
		}
		if cfg.Host != "127.0.0.1" {
			t.Errorf("expected host 127.0.0.1, got %s", cfg.Host)
		}
		if cfg.MaxFormFields != 50 {
			t.Errorf("expected max_form_fields 50, got %d", cfg.MaxFormFields)
		}
	})

	t.Run("flag override", func(t *testing.T) {
		t.Setenv("CF_SERVER_PORT", "9999")

		flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
		flags.Int("port", 50051, "")
		flags.String("host", "0.0.0.0", "")
		if err := flags.Parse([]string{"--port", "7000"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig("", flags)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != 7000 {
			t.Errorf("expected flag port 7000, got %d", cfg.Port)
		}
		if cfg.Host != "0.0.0.0" {
			t.Errorf("unset flag should not override default host, got %s", cfg.Host)
		}
	})

	t.Run("invalid port range", func(t *testing.T) {
		t.Setenv("CF_SERVER_PORT", "70000")

		if _, err := LoadConfig("", nil); err == nil {
			t.Error("expected error for port > 65535")
		}
	})

	t.Run("invalid negative values", func(t *testing.T) {
		t.Setenv("CF_SERVER_MAX_CONNECTIONS", "-1")

		if _, err := LoadConfig("", nil); err == nil {
			t.Error("expected error for negative max_connections")
		}
	})

	t.Run("zero max_form_fields", func(t *testing.T) {
		t.Setenv("CF_SERVER_MAX_FORM_FIELDS", "0")

		if _, err := LoadConfig("", nil); err == nil {
			t.Error("expected error for zero max_form_fields")
		}
	})
}

func TestParseSecret(t *testing.T) {
	t.Run("valid format", func(t *testing.T) {
		id, key, err := ParseSecret("  " + testSecretA + "\n")
		if err != nil {
			t.Fatalf("ParseSecret failed: %v", err)
		}
		if id != testIDA {
			t.Errorf("unexpected secret_id: %s", id)
		}
		if len(key) < minSecretLen {
			t.Errorf("secret too short: %d bytes", len(key))
		}
	})

	tests := []struct {
		name  string
		value string
	}{
		{"missing colon", testIDA},
		{"invalid secret_id length", "tooshort:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"},
		{"non-hex chars in secret_id", "0123456789abcdefghijklmnopqrstuv:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"},
		{"uppercase secret_id", "0123456789ABCDEF0123456789ABCDEF:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"},
		{"hyphenated secret_id", "01234567-89ab-cdef-0123-456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"},
		{"invalid base64", testIDA + ":not-valid-base64!!!"},
		{"secret too short", testIDA + ":c2hvcnQ="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseSecret(tt.value); err == nil {
				t.Errorf("expected error for %q", tt.value)
			}
		})
	}
}

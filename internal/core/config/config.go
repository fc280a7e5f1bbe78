// Package config loads caseflow server settings and the HMAC secrets that
// sign tenant API keys.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ServerConfig is the form rules service configuration.
type ServerConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration

	// MaxFormFields caps the form_data entries of one Evaluate call.
	MaxFormFields int

	// MetricsAddr is the Prometheus listener; empty disables it.
	MetricsAddr string

	// DataDir holds the daily evaluation audit logs.
	DataDir string
}

// DefaultServerConfig returns the settings used when nothing overrides them.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           50051,
		MaxConnections: 1000,
		RequestTimeout: 30 * time.Second,
		MaxFormFields:  1000,
		MetricsAddr:    ":9090",
		DataDir:        "./data",
	}
}

// secretEnv holds the primary signing secret. Rotation secrets follow as
// secretEnv_1, secretEnv_2, ... up to the first unset index.
const secretEnv = "CF_HMAC_SECRET"

// minSecretLen matches the SHA-256 output size.
const minSecretLen = 32

var (
	// ErrNoSecrets indicates no signing secret is configured.
	ErrNoSecrets = errors.New("no HMAC secrets configured (set " + secretEnv + " environment variable)")

	// ErrAmbiguousSecret indicates several secrets and no choice between them.
	ErrAmbiguousSecret = errors.New("several HMAC secrets configured")
)

// Secrets maps secret ids to HMAC keys. API keys carry the id of the
// secret that signed them (cf-v1-<secret_id>-...), so verification looks
// the key up instead of trying each one.
type Secrets map[string][]byte

// LoadSecrets reads signing secrets from the environment. Config files
// never carry them; LoadConfig rejects any that try.
func LoadSecrets() (Secrets, error) {
	return loadSecrets(os.Getenv)
}

func loadSecrets(getenv func(string) string) (Secrets, error) {
	secrets := make(Secrets)
	for _, name := range secretEnvNames(getenv) {
		id, key, err := ParseSecret(getenv(name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if _, dup := secrets[id]; dup {
			return nil, fmt.Errorf("%s: secret id %s is configured twice", name, id)
		}
		secrets[id] = key
	}
	return secrets, nil
}

// secretEnvNames lists the set secret variables in load order.
func secretEnvNames(getenv func(string) string) []string {
	var names []string
	if getenv(secretEnv) != "" {
		names = append(names, secretEnv)
	}
	for i := 1; ; i++ {
		name := secretEnv + "_" + strconv.Itoa(i)
		if getenv(name) == "" {
			return names
		}
		names = append(names, name)
	}
}

// IDs returns the configured secret ids, sorted.
func (s Secrets) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Signing picks the secret new API keys are signed with: the one named by
// id, or the only one configured when id is empty.
func (s Secrets) Signing(id string) (string, []byte, error) {
	if len(s) == 0 {
		return "", nil, ErrNoSecrets
	}
	if id != "" {
		key, ok := s[id]
		if !ok {
			return "", nil, fmt.Errorf("HMAC secret %q not configured", id)
		}
		return id, key, nil
	}
	ids := s.IDs()
	if len(ids) > 1 {
		return "", nil, fmt.Errorf("%w (%s)", ErrAmbiguousSecret, strings.Join(ids, ", "))
	}
	return ids[0], s[ids[0]], nil
}

// ParseSecret parses "<secret_id>:<base64 key>". The id is a UUID written
// as 32 lowercase hex digits, the form it takes inside an API key.
func ParseSecret(value string) (id string, key []byte, err error) {
	id, encoded, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	if len(id) != 32 || strings.ToLower(id) != id {
		return "", nil, fmt.Errorf("secret_id must be 32 lowercase hex chars")
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", nil, fmt.Errorf("secret_id must be 32 lowercase hex chars: %w", err)
	}

	key, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(key) < minSecretLen {
		return "", nil, fmt.Errorf("secret must be at least %d bytes, got %d", minSecretLen, len(key))
	}
	return id, key, nil
}

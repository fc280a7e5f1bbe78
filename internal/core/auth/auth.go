// Package auth provides HMAC-based API key authentication for gRPC services.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/caseflow/internal/types"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// tenantIDKey is the context key for storing authenticated tenant ID.
const tenantIDKey = contextKey("tenant_id")

// lastUsedThrottle bounds how often last_used_at is written per key.
const lastUsedThrottle = time.Minute

// Queries defines the database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	GetContext(ctx context.Context, name string, dest interface{}, args ...interface{}) error
	ExecContext(ctx context.Context, name string, args ...interface{}) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  *slog.Logger
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger,
	}
}

// Authenticate validates API key and returns tenant_id on success.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	// key_hash is unique
	var result struct {
		TenantID   string       `db:"tenant_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		APIKeyID   string       `db:"api_key_id"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}

	err = a.queries.GetContext(ctx, "get-api-key-by-hash", &result, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	if shouldUpdateLastUsed(result.LastUsedAt) {
		if _, err := a.queries.ExecContext(ctx, "update-last-used", time.Now().UTC(), result.APIKeyID); err != nil {
			a.logger.Warn("failed to update last_used_at", "api_key_id", result.APIKeyID, "error", err)
		}
	}

	return result.TenantID, nil
}

// shouldUpdateLastUsed throttles last_used_at writes for busy keys.
func shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return time.Since(lastUsed.Time) > lastUsedThrottle
}

// IssuedKey is a freshly created API key. Key is shown once and never stored.
type IssuedKey struct {
	ID       types.APIKeyID
	TenantID string
	Key      string
}

// CreateAPIKey generates a key for tenantID signed with the given secret and
// stores its hash.
func CreateAPIKey(ctx context.Context, queries Queries, tenantID, name, secretID string, secret []byte) (*IssuedKey, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is empty")
	}

	key, hash, err := GenerateAPIKey(secretID, secret)
	if err != nil {
		return nil, err
	}

	id := types.NewAPIKeyID()
	if _, err := queries.ExecContext(ctx, "insert-api-key", id, tenantID, name, secretID, hash, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &IssuedKey{ID: id, TenantID: tenantID, Key: key}, nil
}

// RevokeAPIKey marks a key revoked. Revoking an unknown or already revoked
// key returns ErrKeyNotFound.
func RevokeAPIKey(ctx context.Context, queries Queries, tenantID string, id types.APIKeyID) error {
	res, err := queries.ExecContext(ctx, "revoke-api-key", time.Now().UTC(), id, tenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Methods listed in public skip authentication (e.g. health checks).
func (a *Authenticator) UnaryInterceptor(public ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]bool, len(public))
	for _, m := range public {
		skip[m] = true
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if skip[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get("x-api-key")
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		tenantID, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			switch {
			case errors.Is(err, ErrKeyRevoked):
				return nil, status.Error(codes.PermissionDenied, err.Error())
			case errors.Is(err, ErrDatabase):
				a.logger.Error("authentication unavailable", "method", info.FullMethod, "error", err)
				return nil, status.Error(codes.Unavailable, err.Error())
			default:
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
		}

		return handler(WithTenantID(ctx, tenantID), req)
	}
}

// WithTenantID returns a context carrying tenantID, as the interceptor does.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantIDFromContext extracts tenant ID from context.
// Returns empty string if not found.
func TenantIDFromContext(ctx context.Context) string {
	if tenantID, ok := ctx.Value(tenantIDKey).(string); ok {
		return tenantID
	}
	return ""
}

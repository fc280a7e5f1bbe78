package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/caseflow/internal/core/db"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecret = []byte("testsecret1234567890abcdefghijklmnop")

func newTestQueries(t *testing.T) *db.Queries {
	t.Helper()
	database, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = db.MigrateUp(database, nil)
	require.NoError(t, err)

	queries, err := db.LoadQueries(database)
	require.NoError(t, err)
	return queries
}

func TestParseAPIKey(t *testing.T) {
	valid := FormatAPIKey(testSecretID, strings.Repeat("ab", 32))
	secretID, random, err := ParseAPIKey(valid)
	require.NoError(t, err)
	assert.Equal(t, testSecretID, secretID)
	assert.Len(t, random, 64)
	assert.Len(t, valid, 103)

	invalid := []string{
		"",
		"xx-v1-" + testSecretID + "-" + strings.Repeat("ab", 32),
		"cf-v2-" + testSecretID + "-" + strings.Repeat("ab", 32),
		"cf-v1-" + testSecretID[:31] + "-" + strings.Repeat("ab", 32),
		"cf-v1-" + testSecretID + "-" + strings.Repeat("ab", 31),
		"cf-v1-" + testSecretID + "-" + strings.Repeat("AB", 32),
		"cf-v1-" + testSecretID + "-" + strings.Repeat("ab", 32) + "-extra",
	}
	for _, key := range invalid {
		_, _, err := ParseAPIKey(key)
		assert.ErrorIs(t, err, ErrInvalidKeyFormat, "key %q", key)
	}
}

func TestGenerateAPIKey(t *testing.T) {
	key, hash, err := GenerateAPIKey(testSecretID, testSecret)
	require.NoError(t, err)

	_, _, err = ParseAPIKey(key)
	require.NoError(t, err)
	assert.True(t, VerifyHMAC(hash, ComputeHMAC(testSecret, key)))

	other, _, err := GenerateAPIKey(testSecretID, testSecret)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, _, err = GenerateAPIKey("not-hex", testSecret)
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestAuthenticate(t *testing.T) {
	queries := newTestQueries(t)
	ctx := context.Background()
	authenticator := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, queries, nil)

	issued, err := CreateAPIKey(ctx, queries, "tenant-a", "ci", testSecretID, testSecret)
	require.NoError(t, err)

	tenantID, err := authenticator.Authenticate(ctx, issued.Key)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", tenantID)

	var row struct {
		TenantID   string       `db:"tenant_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		APIKeyID   string       `db:"api_key_id"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}
	require.NoError(t, queries.GetContext(ctx, "get-api-key-by-hash", &row, ComputeHMAC(testSecret, issued.Key)))
	assert.Equal(t, string(issued.ID), row.APIKeyID)
	assert.True(t, row.LastUsedAt.Valid, "successful authentication records last use")

	t.Run("unknown secret id", func(t *testing.T) {
		key := FormatAPIKey("fedcba9876543210fedcba9876543210", strings.Repeat("cd", 32))
		_, err := authenticator.Authenticate(ctx, key)
		assert.ErrorIs(t, err, ErrUnknownKey)
	})

	t.Run("valid format, not issued", func(t *testing.T) {
		key := FormatAPIKey(testSecretID, strings.Repeat("cd", 32))
		_, err := authenticator.Authenticate(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, RevokeAPIKey(ctx, queries, "tenant-a", issued.ID))
		_, err := authenticator.Authenticate(ctx, issued.Key)
		assert.ErrorIs(t, err, ErrKeyRevoked)

		assert.ErrorIs(t, RevokeAPIKey(ctx, queries, "tenant-a", issued.ID), ErrKeyNotFound)
	})
}

func TestShouldUpdateLastUsed(t *testing.T) {
	assert.True(t, shouldUpdateLastUsed(sql.NullTime{}))
	assert.False(t, shouldUpdateLastUsed(sql.NullTime{Time: time.Now(), Valid: true}))
	assert.True(t, shouldUpdateLastUsed(sql.NullTime{Time: time.Now().Add(-2 * time.Minute), Valid: true}))
}

func TestUnaryInterceptor(t *testing.T) {
	queries := newTestQueries(t)
	ctx := context.Background()
	authenticator := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, queries, nil)
	interceptor := authenticator.UnaryInterceptor("/grpc.health.v1.Health/Check")

	issued, err := CreateAPIKey(ctx, queries, "tenant-a", "", testSecretID, testSecret)
	require.NoError(t, err)

	var seenTenant string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seenTenant = TenantIDFromContext(ctx)
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/caseflow.forms.v1.FormRules/Evaluate"}

	withKey := func(key string) context.Context {
		return metadata.NewIncomingContext(ctx, metadata.Pairs("x-api-key", key))
	}

	tests := []struct {
		name     string
		ctx      context.Context
		info     *grpc.UnaryServerInfo
		wantCode codes.Code
		wantID   string
	}{
		{"no metadata", ctx, info, codes.Unauthenticated, ""},
		{"no key", metadata.NewIncomingContext(ctx, metadata.Pairs()), info, codes.Unauthenticated, ""},
		{"bad format", withKey("nope"), info, codes.Unauthenticated, ""},
		{"valid key", withKey(issued.Key), info, codes.OK, "tenant-a"},
		{"public method", ctx, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, codes.OK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenTenant = ""
			_, err := interceptor(tt.ctx, nil, tt.info, handler)
			assert.Equal(t, tt.wantCode, status.Code(err))
			assert.Equal(t, tt.wantID, seenTenant)
		})
	}

	require.NoError(t, RevokeAPIKey(ctx, queries, "tenant-a", issued.ID))
	_, err = interceptor(withKey(issued.Key), nil, info, handler)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestTenantIDFromContext(t *testing.T) {
	assert.Empty(t, TenantIDFromContext(context.Background()))
	assert.Equal(t, "t", TenantIDFromContext(WithTenantID(context.Background(), "t")))
}

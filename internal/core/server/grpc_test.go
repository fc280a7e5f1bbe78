package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/caseflow/internal/core/api"
	"github.com/solatis/caseflow/internal/core/auth"
	"github.com/solatis/caseflow/internal/core/config"
	"github.com/solatis/caseflow/internal/core/db"
	"github.com/solatis/caseflow/internal/core/schemas"
	"github.com/solatis/caseflow/internal/rules"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecret = []byte("testsecret1234567890abcdefghijklmnop")

type testServer struct {
	server *GRPCServer
	conn   *grpc.ClientConn
	apiKey string
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	_, err = db.MigrateUp(database, nil)
	require.NoError(t, err)
	queries, err := db.LoadQueries(database)
	require.NoError(t, err)

	issued, err := auth.CreateAPIKey(context.Background(), queries, "tenant-a", "test", testSecretID, testSecret)
	require.NoError(t, err)

	cfg := config.DefaultServerConfig()
	cfg.DataDir = t.TempDir()
	cfg.MetricsAddr = ""

	service, err := api.NewFormRulesService(
		schemas.NewStore(queries, nil),
		rules.NewEngine(nil),
		cfg,
		api.NewMetrics(prometheus.NewRegistry()),
		nil,
	)
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator(map[string][]byte{testSecretID: testSecret}, queries, nil)
	srv, err := NewGRPCServer(cfg, service, authenticator, nil, nil)
	require.NoError(t, err)

	listener := bufconn.Listen(1 << 20)
	go srv.Serve(listener)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return &testServer{server: srv, conn: conn, apiKey: issued.Key}
}

func (ts *testServer) authed() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-api-key", ts.apiKey)
}

func TestNewGRPCServer_Validation(t *testing.T) {
	_, err := NewGRPCServer(nil, nil, nil, nil, nil)
	assert.Error(t, err)

	cfg := config.DefaultServerConfig()
	_, err = NewGRPCServer(cfg, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestGRPCServer_HealthIsPublic(t *testing.T) {
	ts := startTestServer(t)

	client := grpc_health_v1.NewHealthClient(ts.conn)
	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: api.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestGRPCServer_RequiresAPIKey(t *testing.T) {
	ts := startTestServer(t)
	client := api.NewFormRulesClient(ts.conn)

	_, err := client.ListSchemas(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "cf-v1-nope")
	_, err = client.ListSchemas(bad, &structpb.Struct{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestGRPCServer_PutAndEvaluate(t *testing.T) {
	ts := startTestServer(t)
	client := api.NewFormRulesClient(ts.conn)

	schema, err := structpb.NewStruct(map[string]any{
		"sections": []any{map[string]any{
			"id":     "main",
			"fields": []any{map[string]any{"id": "plan"}, map[string]any{"id": "seats"}},
		}},
		"rules": []any{map[string]any{
			"id":     "seats-for-teams",
			"target": "seats",
			"condition": map[string]any{
				"type":   "not_equals",
				"config": map[string]any{"field": "plan", "value": "team"},
			},
			"action": map[string]any{"type": "hide"},
		}},
	})
	require.NoError(t, err)

	put, err := client.PutSchema(ts.authed(), &structpb.Struct{Fields: map[string]*structpb.Value{
		"workflow_id": structpb.NewStringValue("signup"),
		"schema":      structpb.NewStructValue(schema),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, put.GetFields()["version"].GetNumberValue())

	form, err := structpb.NewStruct(map[string]any{"plan": "solo"})
	require.NoError(t, err)
	resp, err := client.Evaluate(ts.authed(), &structpb.Struct{Fields: map[string]*structpb.Value{
		"workflow_id": structpb.NewStringValue("signup"),
		"form_data":   structpb.NewStructValue(form),
	}})
	require.NoError(t, err)

	seats := resp.GetFields()["results"].GetStructValue().GetFields()["seats"].GetStructValue()
	require.NotNil(t, seats)
	assert.False(t, seats.GetFields()["is_visible"].GetBoolValue())

	list, err := client.ListSchemas(ts.authed(), &structpb.Struct{})
	require.NoError(t, err)
	assert.Len(t, list.GetFields()["schemas"].GetListValue().GetValues(), 1)
}

func TestGRPCServer_Shutdown(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ts.server.Shutdown(ctx))

	_, err := api.NewFormRulesClient(ts.conn).ListSchemas(ts.authed(), &structpb.Struct{})
	assert.Error(t, err)
}

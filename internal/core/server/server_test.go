package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/solatis/quill/internal/core/api"
	"github.com/solatis/quill/internal/core/auth"
	"github.com/solatis/quill/internal/core/config"
	"github.com/solatis/quill/internal/metrics"
	"github.com/solatis/quill/internal/pkg/logger"
	"github.com/solatis/quill/internal/rewrite"
	"github.com/solatis/quill/internal/rulefile"
	"github.com/solatis/quill/internal/rules"
	"github.com/solatis/quill/internal/selection"
	"github.com/solatis/quill/internal/types"
)

const (
	testSecretID = "0123456789abcdef0123456789abcdef"
	testRules    = "tv =>\n  SYNONYM: television\n"
)

var testSecret = []byte("an hmac secret of at least thirty-two bytes")

func startServer(t *testing.T, authenticator *auth.Authenticator) *grpc.ClientConn {
	t.Helper()
	rc, err := rulefile.Compile(strings.NewReader(testRules), rules.DefaultOptions())
	require.NoError(t, err)

	svc, err := api.NewRewriteService(config.DefaultConfig().Server, rewrite.New(rules.NewEngine(rc), nil),
		selection.NewRegistry(), nil, metrics.New(prometheus.NewRegistry()), logger.Nop())
	require.NoError(t, err)

	srv, err := NewGRPCServer("bufconn", svc, authenticator, logger.Nop())
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPCServer_RewriteRoundTrip(t *testing.T) {
	client := api.NewClient(startServer(t, nil))

	req, err := api.NewRewriteRequest("cheap tv", "", nil)
	require.NoError(t, err)

	var header metadata.MD
	resp, err := client.Rewrite(context.Background(), req, grpc.Header(&header))
	require.NoError(t, err)
	require.Equal(t, "cheap (tv | television)", resp.AsMap()["user_query"])

	ids := header.Get(api.RequestIDKey)
	require.Len(t, ids, 1)
	require.Equal(t, ids[0], resp.AsMap()["request_id"])
	_, err = types.ParseRequestID(ids[0])
	require.NoError(t, err)
}

func TestGRPCServer_PropagatesRequestID(t *testing.T) {
	client := api.NewClient(startServer(t, nil))
	id := string(types.NewRequestID())

	req, err := api.NewRewriteRequest("tv", "", nil)
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), api.RequestIDKey, id)
	resp, err := client.Rewrite(ctx, req)
	require.NoError(t, err)
	require.Equal(t, id, resp.AsMap()["request_id"])
}

func TestGRPCServer_Authentication(t *testing.T) {
	authenticator := auth.NewAuthenticator(map[string][]byte{testSecretID: testSecret}, "/grpc.health.v1.Health/")
	conn := startServer(t, authenticator)
	client := api.NewClient(conn)

	req, err := api.NewRewriteRequest("tv", "", nil)
	require.NoError(t, err)

	_, err = client.Rewrite(context.Background(), req)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	key, err := auth.IssueAPIKey(testSecretID, testSecret)
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), auth.MetadataKey, key)
	_, err = client.Rewrite(ctx, req)
	require.NoError(t, err)

	// Health stays reachable without a key.
	hc, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: api.ServiceName})
	require.NoError(t, err)
	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, hc.GetStatus())
}

func TestGRPCServer_Actions(t *testing.T) {
	client := api.NewClient(startServer(t, nil))

	req, err := api.NewRewriteRequest("tv", "criteria", map[string][]string{"limit": {"5"}})
	require.NoError(t, err)
	resp, err := client.Actions(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.AsMap()["actions"], 1)

	_, err = client.ReloadRules(context.Background())
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestNewGRPCServer_NilService(t *testing.T) {
	_, err := NewGRPCServer(":0", nil, nil, nil)
	require.Error(t, err)
}

func TestMetricsServer_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveReload(nil, 3)

	srv := NewMetricsServer(":0", reg, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "quill_rules_loaded 3")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

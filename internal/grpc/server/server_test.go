package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"harvest-engine/internal/config"
	"harvest-engine/internal/grpc/interceptors"
	"harvest-engine/pkg/models"
)

type fakeSource struct {
	mu     sync.Mutex
	status string
}

func (f *fakeSource) set(status string) {
	f.mu.Lock()
	f.status = status
	f.mu.Unlock()
}

func (f *fakeSource) GetHealthCheck() models.HealthCheck {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.HealthCheck{Status: f.status}
}

func startServer(t *testing.T, source HealthSource) (*Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := NewServer(config.Default(), source)
	go func() { _ = s.Start(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		s.Stop()
	})
	return s, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthFollowsEngineStatus(t *testing.T) {
	source := &fakeSource{status: models.HealthHealthy}
	s, client := startServer(t, source)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))

	source.set(models.HealthDegraded)
	s.refresh()
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))

	source.set(models.HealthDown)
	s.refresh()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))

	assert.EqualValues(t, 4, s.Metrics().GetAllMetrics()["/grpc.health.v1.Health/Check"].RequestCount)
}

func TestHealthUnknownService(t *testing.T) {
	_, client := startServer(t, &fakeSource{status: models.HealthHealthy})

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRecoveryInterceptor(t *testing.T) {
	collector := interceptors.NewMetricsCollector()
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Panic"}
	panicking := func(ctx context.Context, req interface{}) (interface{}, error) { panic("boom") }

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return interceptors.MetricsInterceptor(collector)(ctx, req, info, panicking)
	}
	resp, err := interceptors.RecoveryInterceptor()(context.Background(), nil, info, handler)

	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
}

package mux

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"harvest-engine/internal/config"
	"harvest-engine/internal/grpc/server"
	"harvest-engine/pkg/models"
)

type healthySource struct{}

func (healthySource) GetHealthCheck() models.HealthCheck {
	return models.HealthCheck{Status: models.HealthHealthy}
}

func TestServesHTTPAndGRPCOnOnePort(t *testing.T) {
	cfg := config.Default()
	httpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	m := NewMultiplexer(cfg, server.NewServer(cfg, healthySource{}), httpHandler)
	require.NoError(t, m.Serve(lis))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	}()

	resp, err := http.Get("http://" + m.GetAddress() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	conn, err := grpc.NewClient(m.GetAddress(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: server.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.GetStatus())
}

package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"rentescrow/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestGRPCServer_Health(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.APIConfig{
		Enabled: true,
		GRPC:    config.APIGRPCConfig{Port: 0},
	}

	checker := &fakeHealth{}
	s, err := NewGRPCServer(&cfg, checker, &logger)
	require.NoError(t, err)
	require.NotEmpty(t, s.Addr())

	go func() { _ = s.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(s.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.checkHealth(ctx)
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	checker.err = errors.New("database is locked")
	s.checkHealth(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestBuildTLSConfig(t *testing.T) {
	t.Run("EmptyPaths", func(t *testing.T) {
		_, err := buildTLSConfig(config.APITLSConfig{Enabled: true})
		assert.Error(t, err)
	})

	t.Run("InvalidCert", func(t *testing.T) {
		_, err := buildTLSConfig(config.APITLSConfig{
			Enabled:  true,
			CertFile: "/nonexistent",
			KeyFile:  "/nonexistent",
		})
		assert.Error(t, err)
	})
}

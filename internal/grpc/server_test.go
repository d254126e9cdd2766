package grpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type mockPinger struct {
	mu  sync.Mutex
	err error
}

func (m *mockPinger) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *mockPinger) set(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func startServer(t *testing.T, p Pinger) (*Server, grpc_health_v1.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(p, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.GracefulStop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return srv, grpc_health_v1.NewHealthClient(conn)
}

func check(t *testing.T, client grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestHealth_NotServingUntilChecked(t *testing.T) {
	_, client := startServer(t, &mockPinger{})

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))
}

func TestHealth_FollowsStore(t *testing.T) {
	pinger := &mockPinger{}
	srv, client := startServer(t, pinger)

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, srv.Check(context.Background()))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, ServiceName))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, ""))

	pinger.set(errors.New("connection refused"))
	srv.Check(context.Background())
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))
}

func TestWatch_UpdatesPeriodically(t *testing.T) {
	pinger := &mockPinger{err: errors.New("not yet")}
	srv, client := startServer(t, pinger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Watch(ctx, 10*time.Millisecond)

	pinger.set(nil)
	assert.Eventually(t, func() bool {
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.Status == grpc_health_v1.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)
}

package grpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const testHealthService = "pledgebank.test.v1.Probe"

type healthFixture struct {
	addr   string
	health *health.Server
}

func startHealthServer(t *testing.T, status grpc_health_v1.HealthCheckResponse_ServingStatus) healthFixture {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := gogrpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(testHealthService, status)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)
	return healthFixture{addr: listener.Addr().String(), health: healthServer}
}

func TestDialWaitsForServing(t *testing.T) {
	fixture := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	go func() {
		time.Sleep(150 * time.Millisecond)
		fixture.health.SetServingStatus(testHealthService, grpc_health_v1.HealthCheckResponse_SERVING)
	}()

	conn, err := Dial(context.Background(), DialConfig{
		Addr:          fixture.addr,
		HealthService: testHealthService,
		Timeout:       3 * time.Second,
		Logf:          t.Logf,
	}, DefaultClientDialOptions()...)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDialTimesOutWhileNotServing(t *testing.T) {
	fixture := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	start := time.Now()
	conn, err := Dial(context.Background(), DialConfig{
		Addr:          fixture.addr,
		HealthService: testHealthService,
		Timeout:       250 * time.Millisecond,
	}, DefaultClientDialOptions()...)
	if err == nil {
		_ = conn.Close()
		t.Fatal("expected readiness error")
	}
	var dialErr *DialError
	if !errors.As(err, &dialErr) || dialErr.Stage != DialStageHealth {
		t.Fatalf("expected health stage error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout did not bound readiness, took %v", elapsed)
	}
}

func TestDialFailsFastForUnknownService(t *testing.T) {
	fixture := startHealthServer(t, grpc_health_v1.HealthCheckResponse_SERVING)

	start := time.Now()
	_, err := Dial(context.Background(), DialConfig{
		Addr:          fixture.addr,
		HealthService: "pledgebank.test.v1.Missing",
		Timeout:       5 * time.Second,
	}, DefaultClientDialOptions()...)
	if err == nil || !strings.Contains(err.Error(), "is not registered") {
		t.Fatalf("expected unknown service error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("expected fast failure, took %v", elapsed)
	}
}

func TestDialConnectStage(t *testing.T) {
	_, err := Dial(context.Background(), DialConfig{
		Addr: "ledger:1",
		NewClient: func(string, ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
			return nil, errors.New("bad target")
		},
	})
	var dialErr *DialError
	if !errors.As(err, &dialErr) || dialErr.Stage != DialStageConnect {
		t.Fatalf("expected connect stage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "gRPC connect ledger:1: bad target") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestDialRequiresAddress(t *testing.T) {
	if _, err := Dial(context.Background(), DialConfig{Addr: "  "}); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestDialErrorNilReceiver(t *testing.T) {
	var dialErr *DialError
	if dialErr.Error() == "" {
		t.Fatal("expected fallback message")
	}
	if dialErr.Unwrap() != nil {
		t.Fatal("expected nil unwrap")
	}
}

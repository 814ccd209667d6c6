// Package grpc holds shared gRPC client helpers and the JSON wire codec.
package grpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Readiness polling starts fast and settles at one probe per second.
const (
	readyPollInitial = 100 * time.Millisecond
	readyPollMax     = time.Second
	readyProbeLimit  = time.Second
)

// DialConfig describes a gRPC service that reports readiness through the
// standard health protocol.
type DialConfig struct {
	Addr string
	// HealthService is the name that must report SERVING. Empty checks the
	// server as a whole.
	HealthService string
	// Timeout bounds connection and readiness together. Zero leaves only ctx.
	Timeout time.Duration
	Logf    func(string, ...any)
	// NewClient overrides connection creation.
	NewClient func(addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)
}

// DialStage names the step a dial failed at.
type DialStage string

const (
	DialStageConnect DialStage = "connect"
	DialStageHealth  DialStage = "health"
)

// DialError reports a failed dial with the step it failed at.
type DialError struct {
	Addr  string
	Stage DialStage
	Err   error
}

func (e *DialError) Error() string {
	if e == nil {
		return "gRPC dial error"
	}
	return fmt.Sprintf("gRPC %s %s: %v", e.Stage, e.Addr, e.Err)
}

func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DefaultClientDialOptions returns the dial options every ledger client uses:
// plaintext transport, OTel trace propagation and the JSON codec.
func DefaultClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		gogrpc.WithDefaultCallOptions(gogrpc.CallContentSubtype(CodecName)),
	}
}

// Dial opens a client connection to cfg.Addr and waits until the health
// service reports SERVING. The connection is closed when readiness fails.
func Dial(ctx context.Context, cfg DialConfig, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, &DialError{Stage: DialStageConnect, Err: fmt.Errorf("address is required")}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	newClient := cfg.NewClient
	if newClient == nil {
		newClient = gogrpc.NewClient
	}

	conn, err := newClient(addr, opts...)
	if err != nil {
		return nil, &DialError{Addr: addr, Stage: DialStageConnect, Err: err}
	}
	if err := waitReady(ctx, grpc_health_v1.NewHealthClient(conn), cfg.HealthService, cfg.Logf); err != nil {
		_ = conn.Close()
		return nil, &DialError{Addr: addr, Stage: DialStageHealth, Err: err}
	}
	return conn, nil
}

// waitReady probes health until SERVING. A service the server does not know
// fails at once instead of waiting out the deadline.
func waitReady(ctx context.Context, client grpc_health_v1.HealthClient, service string, logf func(string, ...any)) error {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	wait := readyPollInitial
	for attempt := 1; ; attempt++ {
		probeCtx, cancel := context.WithTimeout(ctx, readyProbeLimit)
		resp, err := client.Check(probeCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			logf("gRPC health SERVING after %d probes", attempt)
			return nil
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("health service %q is not registered", service)
		case err != nil:
			logf("gRPC health probe %d: %v", attempt, err)
		default:
			logf("gRPC health probe %d: %s", attempt, resp.GetStatus())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for health: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait = min(wait*2, readyPollMax)
	}
}

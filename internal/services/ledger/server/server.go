// Package server hosts the ledger gRPC service and its notification worker.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/pledgebank/internal/platform/identity"
	"github.com/louisbranch/pledgebank/internal/platform/telemetry"
	"github.com/louisbranch/pledgebank/internal/platform/timeouts"
	"github.com/louisbranch/pledgebank/internal/services/ledger/api/grpc/interceptors"
	ledgergrpc "github.com/louisbranch/pledgebank/internal/services/ledger/api/grpc/ledger"
	grpcmeta "github.com/louisbranch/pledgebank/internal/services/ledger/api/grpc/metadata"
	"github.com/louisbranch/pledgebank/internal/services/ledger/app"
	"github.com/louisbranch/pledgebank/internal/services/ledger/notify"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage/integrity"
	storagesqlite "github.com/louisbranch/pledgebank/internal/services/ledger/storage/sqlite"
	"github.com/louisbranch/pledgebank/internal/services/ledger/transfer/vault"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Config describes one ledger process.
type Config struct {
	// Addr is the listen address; when empty the server listens on Port.
	Addr           string
	Port           int
	DBPath         string
	VaultDBPath    string
	NotifyEnabled  bool
	NotifyInterval time.Duration
	WebhookURL     string
	Verifier       identity.VerifierConfig
	Keyring        *integrity.Keyring
	// Clock overrides time.Now for the service, stores and dispatcher.
	Clock func() time.Time
}

// Server hosts the ledger gRPC API.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *storagesqlite.Store
	vault      *vault.Vault
	dispatcher *notify.Dispatcher
	closeOnce  sync.Once
}

// New opens storage, wires the service and listens.
func New(cfg Config) (*Server, error) {
	if cfg.Keyring == nil {
		return nil, errors.New("journal keyring is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	store, err := openLedgerStore(cfg.DBPath, cfg.Keyring, clock)
	if err != nil {
		return nil, err
	}
	custody, err := openVault(cfg.VaultDBPath, clock)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	emitter := telemetry.NewEmitter(store, clock)
	service, err := app.NewService(store, custody, app.WithClock(clock), app.WithEmitter(emitter))
	if err != nil {
		_ = custody.Close()
		_ = store.Close()
		return nil, err
	}

	var dispatcher *notify.Dispatcher
	if cfg.NotifyEnabled {
		dispatcher, err = newDispatcher(cfg, store, emitter, clock)
		if err != nil {
			_ = custody.Close()
			_ = store.Close()
			return nil, err
		}
	}

	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Port)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = custody.Close()
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcmeta.UnaryServerInterceptor(nil),
			interceptors.AuthInterceptor(interceptors.NewTokenVerifier(cfg.Verifier)),
			interceptors.AuditInterceptor(emitter),
		),
	)
	healthServer := health.NewServer()
	ledgergrpc.RegisterLedgerServer(grpcServer, ledgergrpc.NewService(service))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ledgergrpc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		vault:      custody,
		dispatcher: dispatcher,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a ledger server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve runs the gRPC server and notification worker until ctx ends or the
// server fails.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	workerCtx, stopWorker := context.WithCancel(ctx)
	var workerDone sync.WaitGroup
	if s.dispatcher != nil {
		workerDone.Add(1)
		go func() {
			defer workerDone.Done()
			if err := s.dispatcher.Run(workerCtx); err != nil {
				log.Printf("notification worker: %v", err)
			}
		}()
	}
	defer func() {
		stopWorker()
		workerDone.Wait()
	}()

	log.Printf("ledger server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.gracefulStop()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		return handleErr(err)
	}
}

// gracefulStop waits for in-flight calls up to the shutdown timeout, then
// forces the stop.
func (s *Server) gracefulStop() {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeouts.Shutdown):
		log.Printf("ledger server: graceful stop timed out")
		s.grpcServer.Stop()
	}
}

// Close releases the stores. It is safe to call more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.listener != nil {
			_ = s.listener.Close()
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				log.Printf("close ledger store: %v", err)
			}
		}
		if s.vault != nil {
			if err := s.vault.Close(); err != nil {
				log.Printf("close vault: %v", err)
			}
		}
	})
}

func newDispatcher(cfg Config, store *storagesqlite.Store, emitter *telemetry.Emitter, clock func() time.Time) (*notify.Dispatcher, error) {
	subscribers := []notify.Subscriber{notify.LogSubscriber{Logf: log.Printf}}
	if url := strings.TrimSpace(cfg.WebhookURL); url != "" {
		webhook, err := notify.NewWebhookSubscriber(url, &http.Client{Timeout: timeouts.Webhook})
		if err != nil {
			return nil, fmt.Errorf("configure webhook: %w", err)
		}
		subscribers = append(subscribers, webhook)
	}
	return notify.NewDispatcher(store, subscribers,
		notify.WithInterval(cfg.NotifyInterval),
		notify.WithClock(clock),
		notify.WithEmitter(emitter),
	), nil
}

func openLedgerStore(path string, keyring *integrity.Keyring, clock func() time.Time) (*storagesqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "ledger.db")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	store, err := storagesqlite.Open(path, keyring, storagesqlite.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	return store, nil
}

func openVault(path string, clock func() time.Time) (*vault.Vault, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "vault.db")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	custody, err := vault.Open(path, vault.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	return custody, nil
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/pledgebank/internal/platform/branding"
	platformgrpc "github.com/louisbranch/pledgebank/internal/platform/grpc"
	"github.com/louisbranch/pledgebank/internal/platform/timeouts"
	"github.com/louisbranch/pledgebank/internal/services/ledger/api/grpc/ledger"
	"github.com/louisbranch/pledgebank/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
)

// serverVersion identifies the MCP server version.
const serverVersion = "0.1.0"

// serverName identifies this MCP server to clients.
var serverName = branding.AppName + " MCP"

// Config configures the MCP server.
type Config struct {
	// LedgerAddr is the ledger gRPC address.
	LedgerAddr string
	// Token is the bearer token every ledger call carries; it fixes the
	// identity the assistant acts as.
	Token string
	// Locale selects the language of ledger error messages.
	Locale string
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
}

// New dials the ledger and builds an MCP server bound to it.
func New(ctx context.Context, cfg Config) (*Server, error) {
	addr := strings.TrimSpace(cfg.LedgerAddr)
	if addr == "" {
		return nil, fmt.Errorf("ledger address is required")
	}
	conn, err := dialLedgerGRPC(ctx, addr)
	if err != nil {
		return nil, err
	}
	client := ledger.NewClient(conn, ledger.WithToken(cfg.Token), ledger.WithLocale(cfg.Locale))
	server := newServer(client)
	server.conn = conn
	return server, nil
}

// newServer registers tool and resource handlers against client.
func newServer(client domain.LedgerClient) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		SubscribeHandler:   resourceSubscribeHandler,
		UnsubscribeHandler: resourceUnsubscribeHandler,
	})

	resourceNotifier := func(ctx context.Context, uri string) {
		if ctx == nil {
			ctx = context.Background()
		}
		if err := mcpServer.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{URI: uri}); err != nil {
			log.Printf("mcp resource updated notify failed: uri=%s err=%v", uri, err)
		}
	}

	registerCampaignTools(mcpServer, client, resourceNotifier)
	registerCampaignResources(mcpServer, client)
	return &Server{mcpServer: mcpServer}
}

// Subscriptions are tracked by the SDK session; the handlers only reject
// requests without a URI.
func resourceSubscribeHandler(_ context.Context, req *mcp.SubscribeRequest) error {
	if req == nil || req.Params == nil {
		return requireResourceURI("")
	}
	return requireResourceURI(req.Params.URI)
}

func resourceUnsubscribeHandler(_ context.Context, req *mcp.UnsubscribeRequest) error {
	if req == nil || req.Params == nil {
		return requireResourceURI("")
	}
	return requireResourceURI(req.Params.URI)
}

func requireResourceURI(uri string) error {
	if strings.TrimSpace(uri) == "" {
		return errors.New("resource uri is required")
	}
	return nil
}

// Run dials the ledger and serves MCP over stdio until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve bridges stdio to the ledger until the client disconnects or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close drops the ledger connection. It is safe to call more than once.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	return conn.Close()
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return errors.New("mcp server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var runErr error
	err := s.mcpServer.Run(ctx, transport)
	if err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		runErr = fmt.Errorf("serve mcp: %w", err)
	}
	var closeErr error
	if err = s.Close(); err != nil {
		closeErr = fmt.Errorf("close ledger connection: %w", err)
	}
	return errors.Join(runErr, closeErr)
}

func dialLedgerGRPC(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	logf := func(format string, args ...any) {
		log.Printf("ledger %s", fmt.Sprintf(format, args...))
	}
	conn, err := platformgrpc.Dial(ctx, platformgrpc.DialConfig{
		Addr:          addr,
		HealthService: ledger.ServiceName,
		Timeout:       timeouts.GRPCDial,
		Logf:          logf,
	}, platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		var dialErr *platformgrpc.DialError
		if errors.As(err, &dialErr) && dialErr.Stage == platformgrpc.DialStageConnect {
			return nil, fmt.Errorf("connect to ledger at %s: %w", addr, dialErr.Err)
		}
		return nil, fmt.Errorf("ledger at %s is not ready: %w", addr, err)
	}
	return conn, nil
}

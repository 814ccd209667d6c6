package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/pledgebank/internal/platform/identity"
	"github.com/louisbranch/pledgebank/internal/services/ledger/api/grpc/ledger"
	ledgerserver "github.com/louisbranch/pledgebank/internal/services/ledger/server"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage/integrity"
	"github.com/louisbranch/pledgebank/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
)

// stubLedgerClient answers reads with fixed data and fails every mutation.
type stubLedgerClient struct {
	domain.LedgerClient
}

func (stubLedgerClient) GetCampaign(_ context.Context, in *ledger.GetCampaignRequest, _ ...grpc.CallOption) (*ledger.GetCampaignResponse, error) {
	return &ledger.GetCampaignResponse{Campaign: &ledger.Campaign{
		ID:           in.CampaignID,
		Creator:      "alice",
		Title:        "Garden",
		TargetAmount: 100,
		Phase:        "ongoing",
	}}, nil
}

func (stubLedgerClient) GetCampaignCount(context.Context, *ledger.GetCampaignCountRequest, ...grpc.CallOption) (*ledger.GetCampaignCountResponse, error) {
	return &ledger.GetCampaignCountResponse{Count: 3}, nil
}

func connectSession(t *testing.T, ctx context.Context, server *Server) (*mcp.ClientSession, <-chan error) {
	t.Helper()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.serveWithTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	connectCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	session, err := client.Connect(connectCtx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	return session, serveErr
}

func decodeStructured[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	var out T
	data, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode structured content: %v", err)
	}
	return out
}

func TestServerRegistersCampaignTools(t *testing.T) {
	server := newServer(stubLedgerClient{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session, _ := connectSession(t, ctx, server)
	defer session.Close()

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{
		"campaign_claim_refund",
		"campaign_contribute",
		"campaign_create",
		"campaign_events",
		"campaign_get",
		"campaign_list",
		"campaign_withdraw",
		"contribution_get",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("tools = %v, want %v", names, want)
	}

	resource, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "campaigns://count"})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if len(resource.Contents) != 1 || !strings.Contains(resource.Contents[0].Text, `"3"`) {
		t.Fatalf("resource contents = %+v", resource.Contents)
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "campaign_get",
		Arguments: map[string]any{"campaign_id": "9"},
	})
	if err != nil {
		t.Fatalf("call campaign_get: %v", err)
	}
	if result.IsError {
		t.Fatalf("campaign_get returned tool error: %+v", result.Content)
	}
	got := decodeStructured[domain.CampaignGetResult](t, result)
	if got.Campaign.ID != "9" || got.Campaign.Creator != "alice" {
		t.Fatalf("campaign = %+v", got.Campaign)
	}
}

func TestServerReportsInvalidToolInput(t *testing.T) {
	server := newServer(stubLedgerClient{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session, _ := connectSession(t, ctx, server)
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "campaign_get",
		Arguments: map[string]any{"campaign_id": "zero"},
	})
	if err == nil && !result.IsError {
		t.Fatal("expected tool error for invalid campaign id")
	}
}

func TestNewRequiresLedgerAddress(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty ledger address")
	}
}

func TestServeBridgesToLedger(t *testing.T) {
	dir := t.TempDir()
	keyring, err := integrity.NewKeyring(map[string][]byte{"v1": []byte("mcp-test-key")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	ledgerSrv, err := ledgerserver.New(ledgerserver.Config{
		Addr:        "127.0.0.1:0",
		DBPath:      filepath.Join(dir, "ledger.db"),
		VaultDBPath: filepath.Join(dir, "vault.db"),
		Verifier:    identity.VerifierConfig{Issuer: "pledgebank", Audience: "ledger", Key: public},
		Keyring:     keyring,
	})
	if err != nil {
		t.Fatalf("new ledger server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ledgerErr := make(chan error, 1)
	go func() {
		ledgerErr <- ledgerSrv.Serve(ctx)
	}()

	token, err := identity.Mint("dana", time.Hour, "tok-mcp", identity.SignerConfig{Issuer: "pledgebank", Audience: "ledger", Key: private})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	bridge, err := New(ctx, Config{LedgerAddr: ledgerSrv.Addr(), Token: token})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}

	sessionCtx, sessionCancel := context.WithCancel(ctx)
	defer sessionCancel()
	session, serveErr := connectSession(t, sessionCtx, bridge)
	defer session.Close()

	created, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: "campaign_create",
		Arguments: map[string]any{
			"title":         "Mural",
			"description":   "Paint the wall",
			"target_amount": "500",
			"duration_days": 10,
		},
	})
	if err != nil {
		t.Fatalf("call campaign_create: %v", err)
	}
	if created.IsError {
		t.Fatalf("campaign_create returned tool error: %+v", created.Content)
	}
	mutation := decodeStructured[domain.CampaignMutationResult](t, created)
	if mutation.Campaign.ID != "1" || mutation.Campaign.Creator != "dana" {
		t.Fatalf("campaign = %+v", mutation.Campaign)
	}

	contributed, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "campaign_contribute",
		Arguments: map[string]any{"campaign_id": "1", "amount": "120"},
	})
	if err != nil || contributed.IsError {
		t.Fatalf("call campaign_contribute: err=%v result=%+v", err, contributed)
	}

	pledge, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "contribution_get",
		Arguments: map[string]any{"campaign_id": "1"},
	})
	if err != nil || pledge.IsError {
		t.Fatalf("call contribution_get: err=%v result=%+v", err, pledge)
	}
	contribution := decodeStructured[domain.ContributionGetResult](t, pledge)
	if contribution.Identity != "dana" || contribution.Amount != "120" {
		t.Fatalf("contribution = %+v", contribution)
	}

	withdrawn, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "campaign_withdraw",
		Arguments: map[string]any{"campaign_id": "1"},
	})
	if err == nil && !withdrawn.IsError {
		t.Fatal("expected withdraw before goal to fail")
	}

	resource, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "campaigns://count"})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if !strings.Contains(resource.Contents[0].Text, `"1"`) {
		t.Fatalf("count payload = %s", resource.Contents[0].Text)
	}

	sessionCancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("bridge serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
	}

	cancel()
	select {
	case err := <-ledgerErr:
		if err != nil {
			t.Fatalf("ledger serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("ledger did not stop")
	}
}

package ledger

import (
	"context"
	"strings"

	platformgrpc "github.com/louisbranch/pledgebank/internal/platform/grpc"
	"github.com/louisbranch/pledgebank/internal/platform/requestctx"
	grpcmeta "github.com/louisbranch/pledgebank/internal/services/ledger/api/grpc/metadata"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client calls the ledger service over a gRPC connection.
type Client struct {
	conn   grpc.ClientConnInterface
	token  string
	locale string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sends token as the caller's bearer credential on every call.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithLocale requests localized error messages.
func WithLocale(locale string) ClientOption {
	return func(c *Client) {
		c.locale = strings.TrimSpace(locale)
	}
}

// NewClient creates a ledger client.
func NewClient(conn grpc.ClientConnInterface, opts ...ClientOption) *Client {
	c := &Client{conn: conn}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) CreateCampaign(ctx context.Context, in *CreateCampaignRequest, opts ...grpc.CallOption) (*CreateCampaignResponse, error) {
	out := new(CreateCampaignResponse)
	if err := c.invoke(ctx, CreateCampaignFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Contribute(ctx context.Context, in *ContributeRequest, opts ...grpc.CallOption) (*ContributeResponse, error) {
	out := new(ContributeResponse)
	if err := c.invoke(ctx, ContributeFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Withdraw(ctx context.Context, in *WithdrawRequest, opts ...grpc.CallOption) (*WithdrawResponse, error) {
	out := new(WithdrawResponse)
	if err := c.invoke(ctx, WithdrawFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ClaimRefund(ctx context.Context, in *ClaimRefundRequest, opts ...grpc.CallOption) (*ClaimRefundResponse, error) {
	out := new(ClaimRefundResponse)
	if err := c.invoke(ctx, ClaimRefundFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCampaign(ctx context.Context, in *GetCampaignRequest, opts ...grpc.CallOption) (*GetCampaignResponse, error) {
	out := new(GetCampaignResponse)
	if err := c.invoke(ctx, GetCampaignFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCampaignCount(ctx context.Context, in *GetCampaignCountRequest, opts ...grpc.CallOption) (*GetCampaignCountResponse, error) {
	out := new(GetCampaignCountResponse)
	if err := c.invoke(ctx, GetCampaignCountFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetContribution(ctx context.Context, in *GetContributionRequest, opts ...grpc.CallOption) (*GetContributionResponse, error) {
	out := new(GetContributionResponse)
	if err := c.invoke(ctx, GetContributionFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListCampaigns(ctx context.Context, in *ListCampaignsRequest, opts ...grpc.CallOption) (*ListCampaignsResponse, error) {
	out := new(ListCampaignsResponse)
	if err := c.invoke(ctx, ListCampaignsFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListEvents(ctx context.Context, in *ListEventsRequest, opts ...grpc.CallOption) (*ListEventsResponse, error) {
	out := new(ListEventsResponse)
	if err := c.invoke(ctx, ListEventsFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) VerifyJournal(ctx context.Context, in *VerifyJournalRequest, opts ...grpc.CallOption) (*VerifyJournalResponse, error) {
	out := new(VerifyJournalResponse)
	if err := c.invoke(ctx, VerifyJournalFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// invoke forwards the bearer token, locale and any request id already in ctx.
func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	ctx = grpcmeta.OutgoingContext(ctx, requestctx.RequestIDFromContext(ctx), c.locale)
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, grpcmeta.AuthorizationHeader, "Bearer "+c.token)
	}
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(platformgrpc.CodecName)}, opts...)
	return c.conn.Invoke(ctx, method, in, out, opts...)
}

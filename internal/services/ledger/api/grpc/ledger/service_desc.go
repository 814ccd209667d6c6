package ledger

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified ledger gRPC service name.
const ServiceName = "pledgebank.ledger.v1.LedgerService"

// Full method names.
const (
	CreateCampaignFullMethodName   = "/" + ServiceName + "/CreateCampaign"
	ContributeFullMethodName       = "/" + ServiceName + "/Contribute"
	WithdrawFullMethodName         = "/" + ServiceName + "/Withdraw"
	ClaimRefundFullMethodName      = "/" + ServiceName + "/ClaimRefund"
	GetCampaignFullMethodName      = "/" + ServiceName + "/GetCampaign"
	GetCampaignCountFullMethodName = "/" + ServiceName + "/GetCampaignCount"
	GetContributionFullMethodName  = "/" + ServiceName + "/GetContribution"
	ListCampaignsFullMethodName    = "/" + ServiceName + "/ListCampaigns"
	ListEventsFullMethodName       = "/" + ServiceName + "/ListEvents"
	VerifyJournalFullMethodName    = "/" + ServiceName + "/VerifyJournal"
)

// LedgerServer is the server API for the ledger service.
type LedgerServer interface {
	CreateCampaign(context.Context, *CreateCampaignRequest) (*CreateCampaignResponse, error)
	Contribute(context.Context, *ContributeRequest) (*ContributeResponse, error)
	Withdraw(context.Context, *WithdrawRequest) (*WithdrawResponse, error)
	ClaimRefund(context.Context, *ClaimRefundRequest) (*ClaimRefundResponse, error)
	GetCampaign(context.Context, *GetCampaignRequest) (*GetCampaignResponse, error)
	GetCampaignCount(context.Context, *GetCampaignCountRequest) (*GetCampaignCountResponse, error)
	GetContribution(context.Context, *GetContributionRequest) (*GetContributionResponse, error)
	ListCampaigns(context.Context, *ListCampaignsRequest) (*ListCampaignsResponse, error)
	ListEvents(context.Context, *ListEventsRequest) (*ListEventsResponse, error)
	VerifyJournal(context.Context, *VerifyJournalRequest) (*VerifyJournalResponse, error)
}

// RegisterLedgerServer registers srv on s.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the ledger service for grpc.Server registration.
// Messages are plain structs carried by the JSON codec.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateCampaign", Handler: unaryHandler(CreateCampaignFullMethodName, LedgerServer.CreateCampaign)},
		{MethodName: "Contribute", Handler: unaryHandler(ContributeFullMethodName, LedgerServer.Contribute)},
		{MethodName: "Withdraw", Handler: unaryHandler(WithdrawFullMethodName, LedgerServer.Withdraw)},
		{MethodName: "ClaimRefund", Handler: unaryHandler(ClaimRefundFullMethodName, LedgerServer.ClaimRefund)},
		{MethodName: "GetCampaign", Handler: unaryHandler(GetCampaignFullMethodName, LedgerServer.GetCampaign)},
		{MethodName: "GetCampaignCount", Handler: unaryHandler(GetCampaignCountFullMethodName, LedgerServer.GetCampaignCount)},
		{MethodName: "GetContribution", Handler: unaryHandler(GetContributionFullMethodName, LedgerServer.GetContribution)},
		{MethodName: "ListCampaigns", Handler: unaryHandler(ListCampaignsFullMethodName, LedgerServer.ListCampaigns)},
		{MethodName: "ListEvents", Handler: unaryHandler(ListEventsFullMethodName, LedgerServer.ListEvents)},
		{MethodName: "VerifyJournal", Handler: unaryHandler(VerifyJournalFullMethodName, LedgerServer.VerifyJournal)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pledgebank/ledger/v1/ledger",
}

// unaryHandler adapts a typed server method to grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(LedgerServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

package ledgergrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/tolelom/tolgame/core"
)

const serviceName = "tolgame.v1.Ledger"

// LedgerServer is the server-side interface of the ledger service.
type LedgerServer interface {
	CurrentHeight(context.Context, *HeightRequest) (*HeightResponse, error)
	UnspentOutputsFor(context.Context, *AddressRequest) (*BoxesResponse, error)
	BoxByID(context.Context, *BoxRequest) (*BoxResponse, error)
	Submit(context.Context, *core.SignedTx) (*SubmitResponse, error)
	GameBoxByNFT(context.Context, *GameRequest) (*BoxResponse, error)
	ParticipationsByNFT(context.Context, *GameRequest) (*BoxesResponse, error)
}

// RegisterLedgerServer registers srv on a gRPC server.
func RegisterLedgerServer(s *grpc.Server, srv LedgerServer) {
	s.RegisterService(&serviceDesc, srv)
}

func handlerCurrentHeight(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
	req := new(HeightRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return intercept(ctx, req, ic, "CurrentHeight", func(ctx context.Context, r any) (any, error) {
		return srv.(LedgerServer).CurrentHeight(ctx, r.(*HeightRequest))
	})
}

func handlerUnspentOutputsFor(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
	req := new(AddressRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return intercept(ctx, req, ic, "UnspentOutputsFor", func(ctx context.Context, r any) (any, error) {
		return srv.(LedgerServer).UnspentOutputsFor(ctx, r.(*AddressRequest))
	})
}

func handlerBoxByID(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
	req := new(BoxRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return intercept(ctx, req, ic, "BoxByID", func(ctx context.Context, r any) (any, error) {
		return srv.(LedgerServer).BoxByID(ctx, r.(*BoxRequest))
	})
}

func handlerSubmit(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
	req := new(core.SignedTx)
	if err := dec(req); err != nil {
		return nil, err
	}
	return intercept(ctx, req, ic, "Submit", func(ctx context.Context, r any) (any, error) {
		return srv.(LedgerServer).Submit(ctx, r.(*core.SignedTx))
	})
}

func handlerGameBoxByNFT(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
	req := new(GameRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return intercept(ctx, req, ic, "GameBoxByNFT", func(ctx context.Context, r any) (any, error) {
		return srv.(LedgerServer).GameBoxByNFT(ctx, r.(*GameRequest))
	})
}

func handlerParticipationsByNFT(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
	req := new(GameRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return intercept(ctx, req, ic, "ParticipationsByNFT", func(ctx context.Context, r any) (any, error) {
		return srv.(LedgerServer).ParticipationsByNFT(ctx, r.(*GameRequest))
	})
}

// intercept runs h through the server's unary interceptor when one is
// installed.
func intercept(ctx context.Context, req any, ic grpc.UnaryServerInterceptor, method string, h grpc.UnaryHandler) (any, error) {
	if ic == nil {
		return h(ctx, req)
	}
	info := &grpc.UnaryServerInfo{FullMethod: fullMethod(method)}
	return ic(ctx, req, info, h)
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor for the ledger.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CurrentHeight", Handler: handlerCurrentHeight},
		{MethodName: "UnspentOutputsFor", Handler: handlerUnspentOutputsFor},
		{MethodName: "BoxByID", Handler: handlerBoxByID},
		{MethodName: "Submit", Handler: handlerSubmit},
		{MethodName: "GameBoxByNFT", Handler: handlerGameBoxByNFT},
		{MethodName: "ParticipationsByNFT", Handler: handlerParticipationsByNFT},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tolgame/v1/ledger.cram",
}

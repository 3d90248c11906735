package ledgergrpc

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/decred/slog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
)

// Compile-time interface check.
var _ LedgerServer = (*Server)(nil)

// Server adapts a core.Chain to the ledger service. The NFT lookups are
// served only when a GameLocator is supplied.
type Server struct {
	chain   core.Chain
	locator core.GameLocator
	log     slog.Logger
}

// NewServer creates a Server. locator may be nil.
func NewServer(chain core.Chain, locator core.GameLocator, log slog.Logger) *Server {
	if log == nil {
		log = slog.Disabled
	}
	return &Server{chain: chain, locator: locator, log: log}
}

// Register installs the service on gs.
func (s *Server) Register(gs *grpc.Server) {
	RegisterLedgerServer(gs, s)
}

func (s *Server) CurrentHeight(ctx context.Context, _ *HeightRequest) (*HeightResponse, error) {
	h, err := s.chain.CurrentHeight(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &HeightResponse{Height: h}, nil
}

func (s *Server) UnspentOutputsFor(ctx context.Context, req *AddressRequest) (*BoxesResponse, error) {
	if _, err := crypto.Address(req.Address).Proposition(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	raws, err := s.chain.UnspentOutputsFor(ctx, crypto.Address(req.Address))
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapBoxes(raws), nil
}

func (s *Server) BoxByID(ctx context.Context, req *BoxRequest) (*BoxResponse, error) {
	raw, err := s.chain.BoxByID(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BoxResponse{Box: *raw}, nil
}

func (s *Server) Submit(ctx context.Context, tx *core.SignedTx) (*SubmitResponse, error) {
	id, err := s.chain.Submit(ctx, tx)
	if err != nil {
		s.log.Debugf("Submit rejected: %v", err)
		return nil, toStatus(err)
	}
	return &SubmitResponse{TxID: id}, nil
}

func (s *Server) GameBoxByNFT(ctx context.Context, req *GameRequest) (*BoxResponse, error) {
	if s.locator == nil {
		return nil, status.Error(codes.Unimplemented, "game index not served")
	}
	raw, err := s.locator.GameBoxByNFT(ctx, req.NFTID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BoxResponse{Box: *raw}, nil
}

func (s *Server) ParticipationsByNFT(ctx context.Context, req *GameRequest) (*BoxesResponse, error) {
	if s.locator == nil {
		return nil, status.Error(codes.Unimplemented, "game index not served")
	}
	raws, err := s.locator.ParticipationsByNFT(ctx, req.NFTID)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapBoxes(raws), nil
}

// toStatus maps ledger errors onto gRPC status codes. Transient submit
// failures become Unavailable so the client can tell them apart from
// permanent rejections.
func toStatus(err error) error {
	var se *core.SubmitError
	switch {
	case errors.Is(err, core.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.As(err, &se) && se.Transient:
		return status.Error(codes.Unavailable, err.Error())
	case errors.As(err, &se):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// TokenAuth returns a unary interceptor requiring "authorization: Bearer
// <token>" metadata on every call. An empty token disables the check.
func TokenAuth(token string) grpc.UnaryServerInterceptor {
	want := []byte("Bearer " + token)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
		if token == "" {
			return h(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		for _, v := range md.Get("authorization") {
			if subtle.ConstantTimeCompare([]byte(v), want) == 1 {
				return h(ctx, req)
			}
		}
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
}

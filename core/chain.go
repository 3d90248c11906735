package core

import (
	"context"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/crypto"
)

// Chain is the ledger query and submission capability.
type Chain interface {
	CurrentHeight(ctx context.Context) (int64, error)
	// UnspentOutputsFor returns every unspent box guarded by addr.
	UnspentOutputsFor(ctx context.Context, addr crypto.Address) ([]*box.Raw, error)
	// BoxByID returns ErrNotFound when the box is unknown or spent.
	BoxByID(ctx context.Context, id string) (*box.Raw, error)
	// Submit returns the transaction id or a *SubmitError.
	Submit(ctx context.Context, tx *SignedTx) (string, error)
}

// GameLocator is an optional Chain capability: direct lookup of protocol
// boxes by game NFT id instead of scanning contract addresses.
type GameLocator interface {
	GameBoxByNFT(ctx context.Context, nftID string) (*box.Raw, error)
	ParticipationsByNFT(ctx context.Context, nftID string) ([]*box.Raw, error)
}

// Signer turns an unsigned transaction into a signed one. It returns
// ErrUserCancelled when the user declines, or a *SignError.
type Signer interface {
	Sign(ctx context.Context, tx *UnsignedTx) (*SignedTx, error)
}

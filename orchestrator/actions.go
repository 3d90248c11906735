package orchestrator

import (
	"context"

	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
)

// CreateGame opens a game staking p.CreatorStake.
func (o *Orchestrator) CreateGame(ctx context.Context, p ActionParams) (string, error) {
	return o.Execute(ctx, Request{Kind: core.ActionCreateGame, Params: p})
}

// SubmitParticipation joins the game with a commitment.
func (o *Orchestrator) SubmitParticipation(ctx context.Context, nftID string, commitment []byte) (string, error) {
	return o.Execute(ctx, Request{
		Kind:    core.ActionSubmitParticipation,
		GameRef: nftID,
		Params:  ActionParams{Commitment: commitment},
	})
}

// Resolve reveals the secret and settles every submitted participation.
// An empty winner resolves without one.
func (o *Orchestrator) Resolve(ctx context.Context, nftID string, secret []byte, winner string, judges [][]byte) (string, error) {
	return o.Execute(ctx, Request{
		Kind:    core.ActionResolveGame,
		GameRef: nftID,
		Params:  ActionParams{Secret: secret, Winner: winner, JudgePubKeys: judges},
	})
}

// Cancel moves an active game into draining. A nil secret cancels an
// expired game. The drained stake goes to payTo, or to the caller when
// payTo is empty.
func (o *Orchestrator) Cancel(ctx context.Context, nftID string, secret []byte, payTo crypto.Address) (string, error) {
	return o.Execute(ctx, Request{
		Kind:          core.ActionCancelGame,
		GameRef:       nftID,
		TargetAddress: payTo,
		Params:        ActionParams{Secret: secret},
	})
}

// Drain releases the next slice of a cancelled game's stake.
func (o *Orchestrator) Drain(ctx context.Context, nftID string) (string, error) {
	return o.Execute(ctx, Request{Kind: core.ActionDrainStake, GameRef: nftID})
}

// Refund returns a participation of a cancelled game to its player.
func (o *Orchestrator) Refund(ctx context.Context, nftID, participationID string) (string, error) {
	return o.participationAction(ctx, core.ActionRefund, nftID, participationID)
}

// ReclaimAfterGrace returns a participation of a game nobody resolved.
func (o *Orchestrator) ReclaimAfterGrace(ctx context.Context, nftID, participationID string) (string, error) {
	return o.participationAction(ctx, core.ActionReclaimAfterGrace, nftID, participationID)
}

// ReclaimAbandoned sweeps an unclaimed participation to the resolver.
func (o *Orchestrator) ReclaimAbandoned(ctx context.Context, nftID, participationID string) (string, error) {
	return o.participationAction(ctx, core.ActionReclaimAbandoned, nftID, participationID)
}

// ClaimPrize pays a winner's resolved participation out to the player.
func (o *Orchestrator) ClaimPrize(ctx context.Context, participationID string) (string, error) {
	return o.participationAction(ctx, core.ActionClaimPrize, "", participationID)
}

// CloseResolved releases the resolver stake and burns the game NFT.
func (o *Orchestrator) CloseResolved(ctx context.Context, nftID string) (string, error) {
	return o.Execute(ctx, Request{Kind: core.ActionCloseResolved, GameRef: nftID})
}

func (o *Orchestrator) participationAction(ctx context.Context, kind core.ActionKind, nftID, participationID string) (string, error) {
	return o.Execute(ctx, Request{Kind: kind, GameRef: nftID, ParticipationRef: participationID})
}

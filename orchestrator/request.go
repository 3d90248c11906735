package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/rules"
)

// ActionParams carries the per-action inputs. Fields an action does not use
// are ignored.
type ActionParams struct {
	// Create and cancel: the game secret. Resolve reveals it.
	Secret []byte

	// Create.
	Deadline         int64
	CreatorStake     uint64
	ParticipationFee int64
	PerJudgeBps      int64
	CreatorBps       int64
	InvitedJudges    [][]byte // judge public keys
	Details          []byte

	// Submit.
	Commitment []byte

	// Resolve.
	JudgePubKeys [][]byte
	// Box id of the winning participation; empty for no winner.
	Winner string
}

// Request is one lifecycle action. GameRef is the game NFT id and
// ParticipationRef a participation box id. TargetAddress overrides the
// payout guard where the action has one.
type Request struct {
	Kind             core.ActionKind
	GameRef          string
	ParticipationRef string
	TargetAddress    crypto.Address
	Params           ActionParams
}

// intent reads the boxes req touches and builds the transition intent.
func (o *Orchestrator) intent(ctx context.Context, req Request, height int64, funding []*box.Box) (*rules.Intent, error) {
	r, err := rules.Lookup(req.Kind)
	if err != nil {
		return nil, err
	}
	in := rules.NewIntent(req.Kind, height)

	if r.Game != rules.RoleNone {
		if req.GameRef == "" {
			return nil, fmt.Errorf("%s needs a game reference", req.Kind)
		}
		gb, err := o.gameBox(ctx, req.GameRef)
		if err != nil {
			return nil, err
		}
		if err := in.UseGame(gb); err != nil {
			return nil, fmt.Errorf("game %s: %w", req.GameRef, err)
		}
	}
	if r.Participations == 1 {
		if req.ParticipationRef == "" {
			return nil, fmt.Errorf("%s needs a participation reference", req.Kind)
		}
		pb, err := o.boxByID(ctx, req.ParticipationRef)
		if err != nil {
			return nil, err
		}
		if err := in.UseParticipation(pb); err != nil {
			return nil, fmt.Errorf("participation %s: %w", req.ParticipationRef, err)
		}
	}
	if req.TargetAddress != "" {
		prop, err := req.TargetAddress.Proposition()
		if err != nil {
			return nil, fmt.Errorf("target address: %w", err)
		}
		in.Recipient, in.PayoutTo = prop, prop
	}

	p := req.Params
	switch req.Kind {
	case core.ActionCreateGame:
		if len(funding) > 0 {
			in.FirstInputID = funding[0].ID
		}
		in.NewGame = o.newGame(in.FirstInputID, p)
	case core.ActionSubmitParticipation:
		if in.Game.Active == nil {
			return nil, core.Violation(req.Kind, core.PredDataInput, "game %s is %s", in.Game.NFTID, in.Game.Status)
		}
		in.NewParticipation = &game.Participation{
			Value:            uint64(in.Game.Active.Terms.ParticipationFee),
			Status:           game.ParticipationSubmitted,
			PlayerPubKey:     bytes.Clone(o.opts.Identity),
			GameNFTID:        in.Game.NFTID,
			Commitment:       p.Commitment,
			ParticipationFee: in.Game.Active.Terms.ParticipationFee,
		}
	case core.ActionResolveGame:
		if err := o.resolveSet(ctx, in, p); err != nil {
			return nil, err
		}
	case core.ActionCancelGame:
		in.Secret = p.Secret
		if in.PayoutTo == nil {
			in.PayoutTo = crypto.P2PK(o.opts.Identity)
		}
	}
	return in, nil
}

func (o *Orchestrator) newGame(nftID string, p ActionParams) *game.Game {
	judges := make([][]byte, 0, len(p.InvitedJudges))
	for _, j := range p.InvitedJudges {
		judges = append(judges, game.JudgeKeyHash(j))
	}
	return &game.Game{
		Value:   p.CreatorStake,
		NFTID:   nftID,
		Status:  game.StatusActive,
		Details: p.Details,
		Active: &game.ActiveState{
			CreatorPubKey: bytes.Clone(o.opts.Identity),
			SecretHash:    crypto.HashBytes(p.Secret),
			InvitedJudges: judges,
			Terms: game.Terms{
				Deadline:         p.Deadline,
				ParticipationFee: p.ParticipationFee,
				PerJudgeBps:      p.PerJudgeBps,
				CreatorBps:       p.CreatorBps,
			},
			CreatorStake: int64(p.CreatorStake),
		},
	}
}

// resolveSet consumes every submitted participation of the game and picks
// the winner index.
func (o *Orchestrator) resolveSet(ctx context.Context, in *rules.Intent, p ActionParams) error {
	in.Secret = p.Secret
	in.JudgePubKeys = p.JudgePubKeys
	parts, err := o.participations(ctx, in.Game.NFTID)
	if err != nil {
		return err
	}
	for _, pb := range parts {
		dp, err := game.DecodeParticipation(pb)
		if err != nil || dp.GameNFTID != in.Game.NFTID || dp.Status != game.ParticipationSubmitted {
			continue
		}
		if pb.ID == p.Winner {
			in.Winner = int32(len(in.Participations))
		}
		if err := in.UseParticipation(pb); err != nil {
			return err
		}
	}
	if p.Winner != "" && in.Winner == core.NoWinner {
		return fmt.Errorf("winner %s is not a submitted participation of game %s", p.Winner, in.Game.NFTID)
	}
	return nil
}

func (o *Orchestrator) boxByID(ctx context.Context, id string) (*box.Box, error) {
	raw, err := o.chain.BoxByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("box %s: %w", id, err)
	}
	return box.Decode(raw)
}

// gameBox finds the unspent game box carrying nftID.
func (o *Orchestrator) gameBox(ctx context.Context, nftID string) (*box.Box, error) {
	if loc, ok := o.chain.(core.GameLocator); ok {
		raw, err := loc.GameBoxByNFT(ctx, nftID)
		if err != nil {
			return nil, fmt.Errorf("game %s: %w", nftID, err)
		}
		return box.Decode(raw)
	}
	raws, err := o.chain.UnspentOutputsFor(ctx, crypto.AddressOf(game.GameContract))
	if err != nil {
		return nil, fmt.Errorf("game contract boxes: %w", err)
	}
	for _, raw := range raws {
		b, err := box.Decode(raw)
		if err != nil {
			continue
		}
		if len(b.Tokens) == 1 && b.Tokens[0].ID == nftID {
			return b, nil
		}
	}
	return nil, fmt.Errorf("game %s: %w", nftID, core.ErrNotFound)
}

// participations returns the unspent participation boxes referencing nftID.
func (o *Orchestrator) participations(ctx context.Context, nftID string) ([]*box.Box, error) {
	var raws []*box.Raw
	var err error
	if loc, ok := o.chain.(core.GameLocator); ok {
		raws, err = loc.ParticipationsByNFT(ctx, nftID)
	} else {
		raws, err = o.chain.UnspentOutputsFor(ctx, crypto.AddressOf(game.ParticipationContract))
	}
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("participations of %s: %w", nftID, err)
	}
	out := make([]*box.Box, 0, len(raws))
	for _, raw := range raws {
		b, err := box.Decode(raw)
		if err != nil {
			o.log.Warnf("Skipping undecodable participation %s: %v", raw.ID, err)
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

package rules

import (
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/game"
)

func init() {
	register(core.ActionCreateGame, &Rule{
		Game:    RoleNone,
		check:   checkCreate,
		outcome: outcomeCreate,
		bind:    bindCreate,
	})
}

func checkCreate(in *Intent, _ game.Params) error {
	const act = core.ActionCreateGame
	g := in.NewGame
	if g == nil || g.Status != game.StatusActive || g.Active == nil {
		return core.Violation(act, core.PredSchema, "new game must be Active")
	}
	if in.FirstInputID == "" || g.NFTID != in.FirstInputID {
		return core.Violation(act, core.PredNFTMint, "nft id %q must equal first input id %q", g.NFTID, in.FirstInputID)
	}
	a := g.Active
	if a.CreatorStake < 0 || uint64(a.CreatorStake) != g.Value {
		return core.Violation(act, core.PredStakeMatchesValue, "R8 stake %d, box value %d", a.CreatorStake, g.Value)
	}
	if a.Terms.Deadline <= in.Height {
		return core.Violation(act, core.PredDeadlineFuture, "deadline %d not after height %d", a.Terms.Deadline, in.Height)
	}
	t := a.Terms
	if t.ParticipationFee < 0 || t.PerJudgeBps < 0 || t.CreatorBps < 0 {
		return core.Violation(act, core.PredCommissionBounds, "fee and commissions must not be negative")
	}
	if t.PerJudgeBps > game.BpsDenominator || t.CreatorBps > game.BpsDenominator {
		return core.Violation(act, core.PredCommissionBounds, "commission above %d bps", game.BpsDenominator)
	}
	if total := t.CreatorBps + int64(len(a.InvitedJudges))*t.PerJudgeBps; total > game.BpsDenominator {
		return core.Violation(act, core.PredCommissionBounds, "commissions total %d bps", total)
	}
	if err := crypto.PublicKey(a.CreatorPubKey).Validate(); err != nil {
		return core.Violation(act, core.PredPlayerKey, "creator key: %v", err)
	}
	return nil
}

func outcomeCreate(in *Intent, _ game.Params) (*Outcome, error) {
	g := *in.NewGame
	g.BoxID, g.CreationHeight = "", 0
	g.NFTID = in.FirstInputID
	succ, err := game.EncodeGame(&g)
	if err != nil {
		return nil, err
	}
	return &Outcome{Successor: succ}, nil
}

func bindCreate(tx *core.UnsignedTx, in *Intent) error {
	if len(tx.Inputs) > 0 {
		in.FirstInputID = tx.Inputs[0].ID
	}
	if len(tx.Outputs) == 0 {
		return core.Violation(tx.Action, core.PredOutputShape, "no game output")
	}
	g, err := game.DecodeGame(tx.Outputs[0])
	if err != nil {
		return core.Violation(tx.Action, core.PredSchema, "game output: %v", err)
	}
	in.NewGame = g
	return nil
}

package rules

import (
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/game"
)

func init() {
	register(core.ActionSubmitParticipation, &Rule{
		Game:    RoleDataInput,
		prepare: prepareSubmit,
		check:   checkSubmit,
		outcome: outcomeSubmit,
		bind:    bindSubmit,
	})
}

func prepareSubmit(in *Intent, _ game.Params) {
	if p := in.NewParticipation; p != nil && p.SubmissionHeight == 0 {
		p.SubmissionHeight = in.Height
	}
}

func checkSubmit(in *Intent, _ game.Params) error {
	const act = core.ActionSubmitParticipation
	g := in.Game
	if g.Status != game.StatusActive {
		return core.Violation(act, core.PredDataInput, "game %s is %s", g.NFTID, g.Status)
	}
	p := in.NewParticipation
	if p == nil || p.Status != game.ParticipationSubmitted {
		return core.Violation(act, core.PredSchema, "new participation must be Submitted")
	}
	if p.GameNFTID != g.NFTID {
		return core.Violation(act, core.PredGameRef, "participation references %s, game is %s", p.GameNFTID, g.NFTID)
	}
	fee := g.Active.Terms.ParticipationFee
	if p.ParticipationFee != fee || p.Value != uint64(fee) {
		return core.Violation(act, core.PredParticipationValue, "value %d (R9 %d), game fee %d", p.Value, p.ParticipationFee, fee)
	}
	if in.Height >= g.Active.Terms.Deadline {
		return core.Violation(act, core.PredBeforeDeadline, "height %d, deadline %d", in.Height, g.Active.Terms.Deadline)
	}
	if err := crypto.PublicKey(p.PlayerPubKey).Validate(); err != nil {
		return core.Violation(act, core.PredPlayerKey, "%v", err)
	}
	if p.SubmissionHeight < 0 || p.SubmissionHeight > in.Height {
		return core.Violation(act, core.PredSubmissionHeight, "submission height %d at height %d", p.SubmissionHeight, in.Height)
	}
	return nil
}

func outcomeSubmit(in *Intent, _ game.Params) (*Outcome, error) {
	p := *in.NewParticipation
	p.BoxID, p.CreationHeight = "", 0
	succ, err := game.EncodeParticipation(&p)
	if err != nil {
		return nil, err
	}
	return &Outcome{Successor: succ}, nil
}

func bindSubmit(tx *core.UnsignedTx, in *Intent) error {
	if len(tx.Outputs) == 0 {
		return core.Violation(tx.Action, core.PredOutputShape, "no participation output")
	}
	p, err := game.DecodeParticipation(tx.Outputs[0])
	if err != nil {
		return core.Violation(tx.Action, core.PredSchema, "participation output: %v", err)
	}
	in.NewParticipation = p
	return nil
}

package rules

import (
	"bytes"

	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/game"
)

func init() {
	register(core.ActionResolveGame, &Rule{
		Game:           RoleInput,
		Participations: AnyCount,
		prepare:        prepareResolve,
		check:          checkResolve,
		outcome:        outcomeResolve,
		bind:           bindResolve,
	})
}

func prepareResolve(in *Intent, _ game.Params) {
	if in.ResolvedHeight == 0 {
		in.ResolvedHeight = in.Height
	}
}

func checkResolve(in *Intent, p game.Params) error {
	const act = core.ActionResolveGame
	g := in.Game
	if g.Status != game.StatusActive {
		return core.Violation(act, core.PredSubjectStatus, "game %s is %s", g.NFTID, g.Status)
	}
	a := g.Active
	if a.CreatorStake < 0 || uint64(a.CreatorStake) != g.Value {
		return core.Violation(act, core.PredStakeMatchesValue, "R8 stake %d, box value %d", a.CreatorStake, g.Value)
	}
	for _, part := range in.Participations {
		if part.Status != game.ParticipationSubmitted {
			return core.Violation(act, core.PredSubjectStatus, "participation %s is %s", part.BoxID, part.Status)
		}
		if part.GameNFTID != g.NFTID {
			return core.Violation(act, core.PredGameRef, "participation %s belongs to %s", part.BoxID, part.GameNFTID)
		}
	}
	if !bytes.Equal(crypto.HashBytes(in.Secret), a.SecretHash) {
		return core.Violation(act, core.PredSecretPreimage, "secret does not hash to the commitment")
	}
	deadline := a.Terms.Deadline
	if in.Height < deadline {
		return core.Violation(act, core.PredAfterDeadline, "height %d before deadline %d", in.Height, deadline)
	}
	if in.Height > deadline+p.GracePeriod {
		return core.Violation(act, core.PredWithinGrace, "height %d past resolution window ending %d", in.Height, deadline+p.GracePeriod)
	}
	if in.ResolvedHeight < deadline || in.ResolvedHeight > in.Height {
		return core.Violation(act, core.PredSuccessor, "resolved height %d outside [%d, %d]", in.ResolvedHeight, deadline, in.Height)
	}
	seen := make(map[string]bool, len(in.JudgePubKeys))
	for _, j := range in.JudgePubKeys {
		if err := crypto.PublicKey(j).Validate(); err != nil {
			return core.Violation(act, core.PredJudgeInvited, "judge key: %v", err)
		}
		if seen[string(j)] {
			return core.Violation(act, core.PredJudgeInvited, "judge %x listed twice", j)
		}
		seen[string(j)] = true
		if !game.IsInvited(a.InvitedJudges, j) {
			return core.Violation(act, core.PredJudgeInvited, "judge %x was not invited", j)
		}
	}
	if in.Winner != core.NoWinner && (in.Winner < 0 || int(in.Winner) >= len(in.Participations)) {
		return core.Violation(act, core.PredWinner, "winner index %d with %d participations", in.Winner, len(in.Participations))
	}
	if _, err := SplitPool(0, a.Terms, len(in.JudgePubKeys), false); err != nil {
		return core.Violation(act, core.PredCommissionBounds, "%v", err)
	}
	return nil
}

func outcomeResolve(in *Intent, _ game.Params) (*Outcome, error) {
	g, a := in.Game, in.Game.Active
	var pool uint64
	for _, part := range in.Participations {
		var err error
		if pool, err = core.AddValues(pool, part.Value); err != nil {
			return nil, err
		}
	}
	var winner *game.Participation
	if in.Winner != core.NoWinner {
		winner = in.Participations[in.Winner]
	}
	split, err := SplitPool(pool, a.Terms, len(in.JudgePubKeys), winner != nil)
	if err != nil {
		return nil, core.Violation(in.Action, core.PredCommissionSplit, "%v", err)
	}

	res := &game.Game{
		Value:   g.Value,
		NFTID:   g.NFTID,
		Status:  game.StatusResolved,
		Details: g.Details,
		Resolution: &game.ResolutionState{
			RevealedSecret:       in.Secret,
			InvitedJudges:        a.InvitedJudges,
			ResolvedHeight:       in.ResolvedHeight,
			Terms:                a.Terms,
			ResolverStake:        a.CreatorStake,
			ResolverPubKeyOrTree: crypto.P2PK(a.CreatorPubKey),
		},
	}
	if winner != nil {
		res.Resolution.WinnerPubKey = winner.PlayerPubKey
	}
	succ, err := game.EncodeGame(res)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Successor:          succ,
		RecipientPredicate: core.PredPayoutRecipient,
		AmountPredicate:    core.PredCommissionSplit,
	}
	if split.Judge > 0 {
		for _, j := range in.JudgePubKeys {
			out.Payouts = append(out.Payouts, payout(crypto.P2PK(j), split.Judge))
		}
	}
	if winner != nil && split.Winner > 0 {
		prize, err := game.EncodeParticipation(&game.Participation{
			Value:          split.Winner,
			Status:         game.ParticipationResolved,
			PlayerPubKey:   winner.PlayerPubKey,
			GameNFTID:      winner.GameNFTID,
			Commitment:     winner.Commitment,
			ResolvedHeight: in.ResolvedHeight,
			Prize:          int64(split.Winner),
		})
		if err != nil {
			return nil, err
		}
		out.Payouts = append(out.Payouts, prize)
	}
	if split.Creator > 0 {
		out.Payouts = append(out.Payouts, payout(crypto.P2PK(a.CreatorPubKey), split.Creator))
	}
	return out, nil
}

func bindResolve(tx *core.UnsignedTx, in *Intent) error {
	in.Secret = tx.Extension.Secret
	in.JudgePubKeys = tx.Extension.JudgePubKeys
	in.Winner = tx.Extension.Winner
	if len(tx.Outputs) == 0 {
		return core.Violation(tx.Action, core.PredOutputShape, "no resolution output")
	}
	g, err := game.DecodeGame(tx.Outputs[0])
	if err != nil {
		return core.Violation(tx.Action, core.PredSuccessor, "resolution output: %v", err)
	}
	if g.Status != game.StatusResolved {
		return core.Violation(tx.Action, core.PredSuccessor, "successor is %s", g.Status)
	}
	in.ResolvedHeight = g.Resolution.ResolvedHeight
	return nil
}

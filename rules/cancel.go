package rules

import (
	"bytes"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/game"
)

func init() {
	register(core.ActionCancelGame, &Rule{
		Game:    RoleInput,
		prepare: prepareUnlock,
		check:   checkCancel,
		outcome: outcomeCancel,
		bind:    bindCancel,
	})
	register(core.ActionDrainStake, &Rule{
		Game:    RoleInput,
		prepare: prepareUnlock,
		check:   checkDrain,
		outcome: outcomeDrain,
		bind:    bindDrain,
	})
}

// prepareUnlock schedules the next drain step with the inclusion margin on
// top of the cooldown.
func prepareUnlock(in *Intent, p game.Params) {
	if in.UnlockHeight == 0 {
		in.UnlockHeight = in.Height + p.CooldownBlocks + p.CooldownMargin
	}
}

func checkCancel(in *Intent, p game.Params) error {
	const act = core.ActionCancelGame
	g := in.Game
	if g.Status != game.StatusActive {
		return core.Violation(act, core.PredSubjectStatus, "game %s is %s", g.NFTID, g.Status)
	}
	a := g.Active
	if a.CreatorStake < 0 || uint64(a.CreatorStake) != g.Value {
		return core.Violation(act, core.PredStakeMatchesValue, "R8 stake %d, box value %d", a.CreatorStake, g.Value)
	}
	deadline := a.Terms.Deadline
	revealed := len(in.Secret) > 0
	if revealed && !bytes.Equal(crypto.HashBytes(in.Secret), a.SecretHash) {
		return core.Violation(act, core.PredSecretPreimage, "secret does not hash to the commitment")
	}
	early := revealed && in.Height < deadline
	expired := in.Height >= deadline+p.GracePeriod
	if !early && !expired {
		return core.Violation(act, core.PredCancelCondition,
			"height %d: needs a revealed secret before deadline %d or height past %d", in.Height, deadline, deadline+p.GracePeriod)
	}
	if len(in.PayoutTo) == 0 {
		return core.Violation(act, core.PredPayoutRecipient, "cancellation needs a payout target")
	}
	return checkUnlockWindow(act, in, p)
}

func outcomeCancel(in *Intent, _ game.Params) (*Outcome, error) {
	g, a := in.Game, in.Game.Active
	status := game.StatusCancelledDraining
	if g.Value == 0 {
		status = game.StatusCancelledFinalized
	}
	succ, err := game.EncodeGame(&game.Game{
		Value:   g.Value,
		NFTID:   g.NFTID,
		Status:  status,
		Details: g.Details,
		Cancellation: &game.CancellationState{
			CreatorPubKey:        a.CreatorPubKey,
			RevealedSecret:       in.Secret,
			UnlockHeight:         in.UnlockHeight,
			ResolverStakeAmount:  a.CreatorStake,
			ResolverPubKeyOrTree: in.PayoutTo,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Successor: succ}, nil
}

func bindCancel(tx *core.UnsignedTx, in *Intent) error {
	in.Secret = tx.Extension.Secret
	c, err := cancellationSuccessor(tx)
	if err != nil {
		return err
	}
	in.UnlockHeight = c.UnlockHeight
	in.PayoutTo = c.ResolverPubKeyOrTree
	return nil
}

func checkDrain(in *Intent, p game.Params) error {
	const act = core.ActionDrainStake
	g := in.Game
	if g.Status != game.StatusCancelledDraining {
		return core.Violation(act, core.PredSubjectStatus, "game %s is %s", g.NFTID, g.Status)
	}
	c := g.Cancellation
	if c.ResolverStakeAmount < 0 || uint64(c.ResolverStakeAmount) != g.Value {
		return core.Violation(act, core.PredStakeMatchesValue, "R7 stake %d, box value %d", c.ResolverStakeAmount, g.Value)
	}
	if in.Height < c.UnlockHeight {
		return core.Violation(act, core.PredUnlockReached, "height %d before unlock %d", in.Height, c.UnlockHeight)
	}
	if in.UnlockHeight <= c.UnlockHeight {
		return core.Violation(act, core.PredUnlockMonotonic, "new unlock %d must exceed %d", in.UnlockHeight, c.UnlockHeight)
	}
	if err := checkUnlockWindow(act, in, p); err != nil {
		return err
	}
	if g.Value == 0 {
		return core.Violation(act, core.PredDrainAmount, "nothing left to drain")
	}
	return nil
}

func outcomeDrain(in *Intent, p game.Params) (*Outcome, error) {
	g, c := in.Game, in.Game.Cancellation
	claimed := p.DrainClaim(g.Value)
	remaining := g.Value - claimed
	status := game.StatusCancelledDraining
	if remaining == 0 {
		status = game.StatusCancelledFinalized
	}
	succ, err := game.EncodeGame(&game.Game{
		Value:   remaining,
		NFTID:   g.NFTID,
		Status:  status,
		Details: g.Details,
		Cancellation: &game.CancellationState{
			CreatorPubKey:        c.CreatorPubKey,
			RevealedSecret:       c.RevealedSecret,
			UnlockHeight:         in.UnlockHeight,
			ResolverStakeAmount:  int64(remaining),
			ResolverPubKeyOrTree: c.ResolverPubKeyOrTree,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Successor:          succ,
		Payouts:            []*box.Box{payout(c.ResolverPubKeyOrTree, claimed)},
		RecipientPredicate: core.PredPayoutRecipient,
		AmountPredicate:    core.PredDrainAmount,
	}, nil
}

func bindDrain(tx *core.UnsignedTx, in *Intent) error {
	c, err := cancellationSuccessor(tx)
	if err != nil {
		return err
	}
	in.UnlockHeight = c.UnlockHeight
	return nil
}

func cancellationSuccessor(tx *core.UnsignedTx) (*game.CancellationState, error) {
	if len(tx.Outputs) == 0 {
		return nil, core.Violation(tx.Action, core.PredOutputShape, "no successor output")
	}
	g, err := game.DecodeGame(tx.Outputs[0])
	if err != nil {
		return nil, core.Violation(tx.Action, core.PredSuccessor, "successor: %v", err)
	}
	if !g.Status.Cancelled() {
		return nil, core.Violation(tx.Action, core.PredSuccessor, "successor is %s", g.Status)
	}
	return g.Cancellation, nil
}

// checkUnlockWindow requires the next unlock height to fall in
// [height+cooldown, height+cooldown+margin].
func checkUnlockWindow(act core.ActionKind, in *Intent, p game.Params) error {
	lo := in.Height + p.CooldownBlocks
	hi := lo + p.CooldownMargin
	if in.UnlockHeight < lo || in.UnlockHeight > hi {
		return core.Violation(act, core.PredUnlockMonotonic, "unlock %d outside [%d, %d]", in.UnlockHeight, lo, hi)
	}
	return nil
}

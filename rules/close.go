package rules

import (
	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/game"
)

func init() {
	register(core.ActionCloseResolved, &Rule{
		Game:       RoleInput,
		SelfFunded: true,
		prepare:    prepareResolverRecipient,
		check:      checkCloseResolved,
		outcome:    outcomeCloseResolved,
		bind:       bindRecipient,
	})
}

func checkCloseResolved(in *Intent, p game.Params) error {
	const act = core.ActionCloseResolved
	g := in.Game
	if g.Status != game.StatusResolved {
		return core.Violation(act, core.PredSubjectStatus, "game %s is %s", g.NFTID, g.Status)
	}
	res := g.Resolution
	if res.ResolverStake < 0 || uint64(res.ResolverStake) != g.Value {
		return core.Violation(act, core.PredStakeMatchesValue, "R8 stake %d, box value %d", res.ResolverStake, g.Value)
	}
	if end := res.ResolvedHeight + p.AbandonmentWindow; in.Height < end {
		return core.Violation(act, core.PredAbandonmentElapsed, "height %d before %d", in.Height, end)
	}
	return checkRecipient(in, res.ResolverPubKeyOrTree, core.PredPayoutRecipient)
}

// outcomeCloseResolved returns the resolver stake and burns the NFT.
func outcomeCloseResolved(in *Intent, _ game.Params) (*Outcome, error) {
	amount, err := selfFundedPayout(in.Game.Value, in.Fee)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Payouts:            []*box.Box{payout(in.Recipient, amount)},
		RecipientPredicate: core.PredPayoutRecipient,
		AmountPredicate:    core.PredPayoutAmount,
	}, nil
}

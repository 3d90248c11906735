package rules

import (
	"bytes"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/game"
)

func init() {
	register(core.ActionRefund, &Rule{
		Game:           RoleDataInput,
		Participations: 1,
		SelfFunded:     true,
		prepare:        preparePlayerRecipient,
		check:          checkRefund,
		outcome:        outcomeParticipationPayout(core.PredRefundRecipient),
		bind:           bindRecipient,
	})
	register(core.ActionReclaimAfterGrace, &Rule{
		Game:           RoleDataInput,
		Participations: 1,
		SelfFunded:     true,
		prepare:        preparePlayerRecipient,
		check:          checkReclaimAfterGrace,
		outcome:        outcomeParticipationPayout(core.PredPayoutRecipient),
		bind:           bindRecipient,
	})
	register(core.ActionReclaimAbandoned, &Rule{
		Game:           RoleDataInput,
		Participations: 1,
		SelfFunded:     true,
		prepare:        prepareResolverRecipient,
		check:          checkReclaimAbandoned,
		outcome:        outcomeParticipationPayout(core.PredPayoutRecipient),
		bind:           bindRecipient,
	})
	register(core.ActionClaimPrize, &Rule{
		Game:           RoleNone,
		Participations: 1,
		SelfFunded:     true,
		prepare:        preparePlayerRecipient,
		check:          checkClaimPrize,
		outcome:        outcomeParticipationPayout(core.PredPayoutRecipient),
		bind:           bindRecipient,
	})
}

func preparePlayerRecipient(in *Intent, _ game.Params) {
	if in.Recipient == nil && len(in.Participations) == 1 {
		in.Recipient = game.RefundProposition(in.Participations[0])
	}
}

func prepareResolverRecipient(in *Intent, _ game.Params) {
	if in.Recipient == nil && in.Game != nil && in.Game.Status == game.StatusResolved {
		in.Recipient = in.Game.Resolution.ResolverPubKeyOrTree
	}
}

// checkParticipationOf verifies the participation is in one of the allowed
// states and belongs to the game.
func checkParticipationOf(in *Intent, allowed ...game.ParticipationStatus) error {
	part := in.Participations[0]
	ok := false
	for _, s := range allowed {
		ok = ok || part.Status == s
	}
	if !ok {
		return core.Violation(in.Action, core.PredSubjectStatus, "participation %s is %s", part.BoxID, part.Status)
	}
	if in.Game != nil && part.GameNFTID != in.Game.NFTID {
		return core.Violation(in.Action, core.PredGameRef, "participation belongs to %s, game is %s", part.GameNFTID, in.Game.NFTID)
	}
	return nil
}

func checkRecipient(in *Intent, want []byte, pred core.Predicate) error {
	if !bytes.Equal(in.Recipient, want) {
		return core.Violation(in.Action, pred, "recipient %x, want %x", in.Recipient, want)
	}
	return nil
}

func checkRefund(in *Intent, _ game.Params) error {
	if err := checkParticipationOf(in, game.ParticipationSubmitted); err != nil {
		return err
	}
	switch in.Game.Status {
	case game.StatusCancelledDraining, game.StatusCancelledFinalized:
	case game.StatusActive, game.StatusResolved:
		return core.Violation(in.Action, core.PredDataInput, "game %s is %s, not cancelled", in.Game.NFTID, in.Game.Status)
	default:
		return core.Violation(in.Action, core.PredDataInput, "game %s has unknown status", in.Game.NFTID)
	}
	return checkRecipient(in, game.RefundProposition(in.Participations[0]), core.PredRefundRecipient)
}

func checkReclaimAfterGrace(in *Intent, p game.Params) error {
	if err := checkParticipationOf(in, game.ParticipationSubmitted); err != nil {
		return err
	}
	if in.Game.Status != game.StatusActive {
		return core.Violation(in.Action, core.PredDataInput, "game %s is %s, not Active", in.Game.NFTID, in.Game.Status)
	}
	end := in.Game.Active.Terms.Deadline + p.GracePeriod
	if in.Height < end {
		return core.Violation(in.Action, core.PredGraceElapsed, "height %d before grace end %d", in.Height, end)
	}
	return checkRecipient(in, game.RefundProposition(in.Participations[0]), core.PredPayoutRecipient)
}

func checkReclaimAbandoned(in *Intent, p game.Params) error {
	if err := checkParticipationOf(in, game.ParticipationSubmitted, game.ParticipationResolved); err != nil {
		return err
	}
	if in.Game.Status != game.StatusResolved {
		return core.Violation(in.Action, core.PredDataInput, "game %s is %s, not Resolved", in.Game.NFTID, in.Game.Status)
	}
	res := in.Game.Resolution
	if end := res.ResolvedHeight + p.AbandonmentWindow; in.Height < end {
		return core.Violation(in.Action, core.PredAbandonmentElapsed, "height %d before abandonment at %d", in.Height, end)
	}
	return checkRecipient(in, res.ResolverPubKeyOrTree, core.PredPayoutRecipient)
}

func checkClaimPrize(in *Intent, _ game.Params) error {
	if err := checkParticipationOf(in, game.ParticipationResolved); err != nil {
		return err
	}
	part := in.Participations[0]
	if part.Prize < 0 || uint64(part.Prize) != part.Value {
		return core.Violation(in.Action, core.PredPayoutAmount, "prize %d, box value %d", part.Prize, part.Value)
	}
	return checkRecipient(in, game.RefundProposition(part), core.PredPayoutRecipient)
}

// outcomeParticipationPayout pays the consumed participation, less the fee,
// to the checked recipient.
func outcomeParticipationPayout(pred core.Predicate) func(*Intent, game.Params) (*Outcome, error) {
	return func(in *Intent, _ game.Params) (*Outcome, error) {
		amount, err := selfFundedPayout(in.Participations[0].Value, in.Fee)
		if err != nil {
			return nil, err
		}
		return &Outcome{
			Payouts:            []*box.Box{payout(in.Recipient, amount)},
			RecipientPredicate: pred,
			AmountPredicate:    core.PredPayoutAmount,
		}, nil
	}
}

func bindRecipient(tx *core.UnsignedTx, in *Intent) error {
	if len(tx.Outputs) == 0 {
		return core.Violation(tx.Action, core.PredOutputShape, "no payout output")
	}
	in.Recipient = tx.Outputs[0].Proposition
	return nil
}

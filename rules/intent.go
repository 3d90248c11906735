// Package rules decides whether a proposed game transition is legal. The
// same predicates run before assembly, against an Intent, and as the
// guard over a concrete transaction.
package rules

import (
	"bytes"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/game"
)

// Intent is a proposed transition with every box it touches decoded.
type Intent struct {
	Action core.ActionKind
	Height int64
	Fee    uint64

	Game               *game.Game
	GameBox            *box.Box
	Participations     []*game.Participation
	ParticipationBoxes []*box.Box

	// Create: the id of the first consumed input, which names the NFT.
	FirstInputID string
	// Create and submit: the protocol box being opened.
	NewGame          *game.Game
	NewParticipation *game.Participation

	// Resolve and cancel.
	Secret       []byte
	JudgePubKeys [][]byte
	Winner       int32
	// Resolve: height recorded in the resolution layout.
	ResolvedHeight int64

	// Cancel and drain: unlock height of the successor.
	UnlockHeight int64
	// Cancel: payout guard recorded for the drain steps.
	PayoutTo []byte

	// Refund, reclaim, claim and close: requested payout guard.
	Recipient []byte
}

// NewIntent starts an intent for kind at height.
func NewIntent(kind core.ActionKind, height int64) *Intent {
	return &Intent{Action: kind, Height: height, Winner: core.NoWinner}
}

// UseGame decodes b as the game the transition reads or consumes.
func (in *Intent) UseGame(b *box.Box) error {
	g, err := game.DecodeGame(b)
	if err != nil {
		return err
	}
	in.Game, in.GameBox = g, b
	return nil
}

// UseParticipation decodes b and appends it to the consumed participations.
func (in *Intent) UseParticipation(b *box.Box) error {
	p, err := game.DecodeParticipation(b)
	if err != nil {
		return err
	}
	in.Participations = append(in.Participations, p)
	in.ParticipationBoxes = append(in.ParticipationBoxes, b)
	return nil
}

// Outcome is the ordered set of protocol outputs a legal transition must
// create before any change.
type Outcome struct {
	Successor *box.Box
	Payouts   []*box.Box
	// Predicate reported when a payout's guard differs.
	RecipientPredicate core.Predicate
	// Predicate reported when a payout's value differs.
	AmountPredicate core.Predicate
}

// Outputs returns the successor followed by the payouts.
func (o *Outcome) Outputs() []*box.Box {
	var out []*box.Box
	if o.Successor != nil {
		out = append(out, o.Successor)
	}
	return append(out, o.Payouts...)
}

// Prepare fills the height-dependent fields the caller left unset: the fee,
// the recorded resolution and unlock heights, and the default payout guard.
func Prepare(in *Intent, p game.Params) error {
	r, err := Lookup(in.Action)
	if err != nil {
		return err
	}
	if in.Fee == 0 {
		in.Fee = p.MinFee
	}
	if r.prepare != nil {
		r.prepare(in, p)
	}
	return nil
}

// Check validates the intent's predicates. It is pure and reads nothing
// beyond in and p.
func Check(in *Intent, p game.Params) error {
	r, err := Lookup(in.Action)
	if err != nil {
		return err
	}
	if err := checkShape(r, in); err != nil {
		return err
	}
	return r.check(in, p)
}

// Plan returns the protocol outputs for a checked intent.
func Plan(in *Intent, p game.Params) (*Outcome, error) {
	r, err := Lookup(in.Action)
	if err != nil {
		return nil, err
	}
	return r.outcome(in, p)
}

func checkShape(r *Rule, in *Intent) error {
	if r.Game != RoleNone && in.Game == nil {
		return core.Violation(in.Action, core.PredDataInput, "game box required")
	}
	if r.Game == RoleNone && in.Game != nil {
		return core.Violation(in.Action, core.PredDataInput, "unexpected game box")
	}
	n := len(in.Participations)
	if r.Participations != AnyCount && n != r.Participations {
		return core.Violation(in.Action, core.PredSubjectStatus, "want %d participations, got %d", r.Participations, n)
	}
	if len(in.ParticipationBoxes) != n {
		return core.Violation(in.Action, core.PredSubjectStatus, "participation boxes do not match decoded participations")
	}
	return nil
}

// selfFundedPayout returns value minus the fee, failing when nothing would
// be left to pay out.
func selfFundedPayout(value, fee uint64) (uint64, error) {
	if value <= fee {
		return 0, &core.FundsError{Kind: core.ErrInsufficientFunds, Need: fee + 1, Have: value}
	}
	return value - fee, nil
}

func payout(prop []byte, value uint64) *box.Box {
	return &box.Box{Value: value, Proposition: bytes.Clone(prop)}
}

package rules

import (
	"bytes"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/game"
)

// Verify is the guard over a concrete transaction included at height. It
// rebuilds the intent from the inputs, data-inputs and extension, runs
// Check, then requires the outputs to match Plan exactly, followed only by
// change, with value and tokens conserved.
func Verify(tx *core.UnsignedTx, height int64, p game.Params) error {
	r, err := Lookup(tx.Action)
	if err != nil {
		return err
	}
	if tx.Fee < p.MinFee {
		return core.Violation(tx.Action, core.PredFee, "fee %d below minimum %d", tx.Fee, p.MinFee)
	}
	in := NewIntent(tx.Action, height)
	in.Fee = tx.Fee
	if err := bindInputs(r, tx, in); err != nil {
		return err
	}
	if err := r.bind(tx, in); err != nil {
		return err
	}
	if err := Check(in, p); err != nil {
		return err
	}
	out, err := r.outcome(in, p)
	if err != nil {
		return err
	}
	want := out.Outputs()
	if len(tx.Outputs) < len(want) {
		return core.Violation(tx.Action, core.PredOutputShape, "want at least %d outputs, got %d", len(want), len(tx.Outputs))
	}
	for i, w := range want {
		if err := compareOutput(tx.Action, out, w, tx.Outputs[i], i == 0 && out.Successor != nil); err != nil {
			return err
		}
	}
	for i, c := range tx.Outputs[len(want):] {
		if crypto.IsContract(c.Proposition) {
			return core.Violation(tx.Action, core.PredOutputShape, "change output %d is guarded by a contract", len(want)+i)
		}
	}
	return checkConservation(tx)
}

// bindInputs decodes the protocol boxes the rule consumes or reads and
// requires every remaining input to be plain funding.
func bindInputs(r *Rule, tx *core.UnsignedTx, in *Intent) error {
	act := tx.Action
	idx := 0
	if r.Game == RoleInput {
		if len(tx.Inputs) == 0 {
			return core.Violation(act, core.PredSubjectStatus, "no game input")
		}
		if err := in.UseGame(tx.Inputs[0]); err != nil {
			return core.Violation(act, core.PredSubjectStatus, "game input: %v", err)
		}
		idx = 1
	}
	isPart := func(i int) bool {
		return i < len(tx.Inputs) && bytes.Equal(tx.Inputs[i].Proposition, game.ParticipationContract)
	}
	for n := 0; ; n++ {
		if r.Participations == AnyCount && !isPart(idx) || r.Participations != AnyCount && n == r.Participations {
			break
		}
		if idx >= len(tx.Inputs) {
			return core.Violation(act, core.PredSubjectStatus, "missing participation input")
		}
		if err := in.UseParticipation(tx.Inputs[idx]); err != nil {
			return core.Violation(act, core.PredSubjectStatus, "participation input %d: %v", idx, err)
		}
		idx++
	}
	for i := idx; i < len(tx.Inputs); i++ {
		if crypto.IsContract(tx.Inputs[i].Proposition) {
			return core.Violation(act, core.PredInputShape, "input %d is a protocol box this action may not spend", i)
		}
	}

	want := 0
	if r.Game == RoleDataInput {
		want = 1
	}
	if len(tx.DataInputs) != want {
		return core.Violation(act, core.PredDataInput, "want %d data-inputs, got %d", want, len(tx.DataInputs))
	}
	if want == 1 {
		if err := in.UseGame(tx.DataInputs[0]); err != nil {
			return core.Violation(act, core.PredDataInput, "game data-input: %v", err)
		}
	}
	return nil
}

func compareOutput(act core.ActionKind, out *Outcome, want, got *box.Box, successor bool) error {
	recipient, amount, tokens := out.RecipientPredicate, out.AmountPredicate, core.PredTokenConservation
	if recipient == "" {
		recipient = core.PredPayoutRecipient
	}
	if amount == "" {
		amount = core.PredPayoutAmount
	}
	if successor {
		recipient, amount, tokens = core.PredSuccessor, core.PredSuccessor, core.PredNFTPreserved
	}
	if !bytes.Equal(want.Proposition, got.Proposition) {
		return core.Violation(act, recipient, "output guard %x, want %x", got.Proposition, want.Proposition)
	}
	if want.Value != got.Value {
		return core.Violation(act, amount, "output value %d, want %d", got.Value, want.Value)
	}
	if !sameTokens(want.Tokens, got.Tokens) {
		return core.Violation(act, tokens, "output tokens %v, want %v", got.Tokens, want.Tokens)
	}
	for i := range want.Registers {
		w, g := want.Registers[i], got.Registers[i]
		if (w == nil) != (g == nil) || w != nil && !bytes.Equal(box.Serialize(w), box.Serialize(g)) {
			return core.Violation(act, core.PredSuccessor, "register %s differs", box.RegisterID(i))
		}
	}
	return nil
}

func sameTokens(a, b []box.Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func checkConservation(tx *core.UnsignedTx) error {
	act := tx.Action
	in, err := core.SumValues(tx.Inputs)
	if err != nil {
		return core.Violation(act, core.PredValueConservation, "inputs: %v", err)
	}
	out, err := core.SumValues(tx.Outputs)
	if err != nil {
		return core.Violation(act, core.PredValueConservation, "outputs: %v", err)
	}
	spent, err := core.AddValues(out, tx.Fee)
	if err != nil || spent != in {
		return core.Violation(act, core.PredValueConservation, "inputs %d, outputs %d + fee %d", in, out, tx.Fee)
	}

	inTok, err := core.SumTokens(tx.Inputs)
	if err != nil {
		return core.Violation(act, core.PredTokenConservation, "inputs: %v", err)
	}
	outTok, err := core.SumTokens(tx.Outputs)
	if err != nil {
		return core.Violation(act, core.PredTokenConservation, "outputs: %v", err)
	}
	mint := ""
	if act == core.ActionCreateGame && len(tx.Inputs) > 0 {
		mint = tx.Inputs[0].ID
	}
	for id, amt := range outTok {
		allowed := inTok[id]
		if id == mint {
			allowed++
		}
		if amt > allowed {
			return core.Violation(act, core.PredTokenConservation, "token %s: %d out, %d allowed", id, amt, allowed)
		}
	}
	return nil
}

// VerifyTransfer is the guard over a plain transfer: a transaction with no
// action that moves value and tokens between ordinary guards.
func VerifyTransfer(tx *core.UnsignedTx, p game.Params) error {
	act := tx.Action
	if act != "" {
		return core.Violation(act, core.PredUnknownAction, "transfer carries action %q", act)
	}
	if tx.Fee < p.MinFee {
		return core.Violation(act, core.PredFee, "fee %d below minimum %d", tx.Fee, p.MinFee)
	}
	if len(tx.DataInputs) > 0 {
		return core.Violation(act, core.PredInputShape, "transfer reads data-inputs")
	}
	for i, b := range tx.Inputs {
		if crypto.IsContract(b.Proposition) {
			return core.Violation(act, core.PredInputShape, "input %d is a protocol box", i)
		}
	}
	for i, b := range tx.Outputs {
		if crypto.IsContract(b.Proposition) {
			return core.Violation(act, core.PredOutputShape, "output %d is guarded by a contract", i)
		}
	}
	return checkConservation(tx)
}

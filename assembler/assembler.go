// Package assembler turns a checked intent into an unsigned transaction:
// ordered inputs, data-inputs and outputs, funding selection, change and fee.
package assembler

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/rules"
)

// Assembler builds transactions under a fixed set of protocol parameters.
type Assembler struct {
	params game.Params
}

// New returns an Assembler for params.
func New(params game.Params) *Assembler {
	return &Assembler{params: params}
}

// Build assembles the transaction for in. Inputs are the consumed protocol
// boxes, subject first, followed by as many funding boxes as needed, taken
// greedily in the given order. Outputs are the successor, the payouts, and
// a change output to changeTo when anything is left over.
func (a *Assembler) Build(in *rules.Intent, funding []*box.Box, changeTo []byte) (*core.UnsignedTx, error) {
	r, err := rules.Lookup(in.Action)
	if err != nil {
		return nil, err
	}
	if in.Fee == 0 {
		in.Fee = a.params.MinFee
	}
	funding = spendable(funding, in)

	if in.Action == core.ActionCreateGame {
		if len(funding) == 0 {
			return nil, &core.FundsError{Kind: core.ErrNoSpendableInputs}
		}
		if in.FirstInputID == "" {
			in.FirstInputID = funding[0].ID
		}
		if in.FirstInputID != funding[0].ID {
			return nil, fmt.Errorf("game nft %s must be minted from the first funding box %s", in.FirstInputID, funding[0].ID)
		}
	}

	plan, err := rules.Plan(in, a.params)
	if err != nil {
		return nil, err
	}

	tx := &core.UnsignedTx{
		Action: in.Action,
		Extension: core.Extension{
			Secret:       in.Secret,
			JudgePubKeys: in.JudgePubKeys,
			Winner:       in.Winner,
		},
		Fee: in.Fee,
	}
	switch r.Game {
	case rules.RoleInput:
		tx.Inputs = append(tx.Inputs, in.GameBox)
	case rules.RoleDataInput:
		tx.DataInputs = append(tx.DataInputs, in.GameBox)
	case rules.RoleNone:
	}
	tx.Inputs = append(tx.Inputs, in.ParticipationBoxes...)
	tx.Outputs = plan.Outputs()

	have, err := core.SumValues(tx.Inputs)
	if err != nil {
		return nil, err
	}
	out, err := core.SumValues(tx.Outputs)
	if err != nil {
		return nil, err
	}
	need, err := core.AddValues(out, tx.Fee)
	if err != nil {
		return nil, err
	}

	// A create transaction always spends at least its first funding box,
	// since that box names the NFT.
	var selected []*box.Box
	for _, f := range funding {
		if have >= need && (in.Action != core.ActionCreateGame || len(selected) > 0) {
			break
		}
		if have, err = core.AddValues(have, f.Value); err != nil {
			return nil, err
		}
		selected = append(selected, f)
	}
	if have < need {
		if len(funding) == 0 {
			return nil, &core.FundsError{Kind: core.ErrNoSpendableInputs, Need: need, Have: have}
		}
		return nil, &core.FundsError{Kind: core.ErrInsufficientFunds, Need: need, Have: have}
	}
	tx.Inputs = append(tx.Inputs, selected...)

	change := &box.Box{Value: have - need, Proposition: bytes.Clone(changeTo)}
	for _, f := range selected {
		change.Tokens = append(change.Tokens, f.Tokens...)
	}
	if change.Value > 0 || len(change.Tokens) > 0 {
		if len(changeTo) == 0 || crypto.IsContract(changeTo) {
			return nil, errors.New("change needs a plain destination")
		}
		tx.Outputs = append(tx.Outputs, change)
	}
	return tx, nil
}

// spendable drops funding boxes that are protocol boxes or already consumed
// by the intent.
func spendable(funding []*box.Box, in *rules.Intent) []*box.Box {
	used := make(map[string]bool)
	if in.GameBox != nil {
		used[in.GameBox.ID] = true
	}
	for _, b := range in.ParticipationBoxes {
		used[b.ID] = true
	}
	out := make([]*box.Box, 0, len(funding))
	for _, f := range funding {
		if used[f.ID] || crypto.IsContract(f.Proposition) {
			continue
		}
		out = append(out, f)
	}
	return out
}

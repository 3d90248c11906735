package ledger

import (
	"errors"
	"fmt"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/rules"
	"github.com/tolelom/tolgame/storage"
)

// ErrDoubleSpend is returned when an input is spent or claimed by another
// pending transaction.
var ErrDoubleSpend = errors.New("input already spent")

// validate resolves stx against st and checks it for inclusion at height.
// Every failure is permanent: the same transaction can never become valid
// against the same state.
func (l *Ledger) validate(st *storage.StateDB, stx *core.SignedTx, height int64) (*core.UnsignedTx, error) {
	body := &stx.Body
	if len(body.Inputs) == 0 {
		return nil, errors.New("transaction has no inputs")
	}
	seen := make(map[string]bool, len(body.Inputs)+len(body.DataInputs))
	load := func(id string) (*box.Box, error) {
		if seen[id] {
			return nil, fmt.Errorf("box %s referenced twice", id)
		}
		seen[id] = true
		raw, err := st.GetBox(id)
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("box %s: %w", id, ErrDoubleSpend)
		}
		if err != nil {
			return nil, err
		}
		return box.Decode(raw)
	}

	tx := &core.UnsignedTx{Action: body.Action, Extension: body.Extension, Fee: body.Fee}
	for _, id := range body.Inputs {
		b, err := load(id)
		if err != nil {
			return nil, err
		}
		tx.Inputs = append(tx.Inputs, b)
	}
	for _, id := range body.DataInputs {
		b, err := load(id)
		if err != nil {
			return nil, err
		}
		tx.DataInputs = append(tx.DataInputs, b)
	}
	for i := range body.Outputs {
		b, err := box.Decode(&body.Outputs[i])
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		tx.Outputs = append(tx.Outputs, b)
	}

	if err := checkProofs(tx, stx); err != nil {
		return nil, err
	}
	if tx.Action == "" {
		return tx, rules.VerifyTransfer(tx, l.params)
	}
	return tx, rules.Verify(tx, height, l.params)
}

// checkProofs requires a valid signature for every P2PK input and none for
// protocol inputs, whose guard is the game rules.
func checkProofs(tx *core.UnsignedTx, stx *core.SignedTx) error {
	digest, err := stx.Body.Digest()
	if err != nil {
		return err
	}
	proofs := make(map[uint32][]byte, len(stx.Proofs))
	for _, p := range stx.Proofs {
		if int(p.Input) >= len(tx.Inputs) {
			return fmt.Errorf("proof for missing input %d", p.Input)
		}
		if _, dup := proofs[p.Input]; dup {
			return fmt.Errorf("two proofs for input %d", p.Input)
		}
		proofs[p.Input] = p.Signature
	}
	for i, in := range tx.Inputs {
		sig, has := proofs[uint32(i)]
		if crypto.IsContract(in.Proposition) {
			if has {
				return fmt.Errorf("input %d is a protocol box and takes no proof", i)
			}
			continue
		}
		pub, ok := crypto.ParseP2PK(in.Proposition)
		if !ok {
			return fmt.Errorf("input %d has an unsupported guard", i)
		}
		if !has {
			return fmt.Errorf("input %d is not signed", i)
		}
		if err := crypto.Verify(pub, digest, sig); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}
	return nil
}

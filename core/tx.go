package core

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/crypto"
)

// UnsignedTx is an assembled transaction before signing. Inputs and
// data-inputs are held in decoded form so the guard can inspect them.
type UnsignedTx struct {
	Action     ActionKind
	Extension  Extension
	Inputs     []*box.Box
	DataInputs []*box.Box
	Outputs    []*box.Box
	Fee        uint64
}

// TxBody is the wire form covered by the transaction id and signatures.
// Outputs carry no id; ids are derived from the transaction id on
// inclusion.
type TxBody struct {
	Action     ActionKind `json:"action" cramberry:"1"`
	Inputs     []string   `json:"inputs" cramberry:"2"`
	DataInputs []string   `json:"dataInputs" cramberry:"3"`
	Outputs    []box.Raw  `json:"outputs" cramberry:"4"`
	Fee        uint64     `json:"fee" cramberry:"5"`
	Extension  Extension  `json:"extension" cramberry:"6"`
}

// Proof authorizes spending one input.
type Proof struct {
	Input     uint32 `json:"input" cramberry:"1"`
	Signature []byte `json:"signature" cramberry:"2"`
}

// SignedTx is a transaction ready for submission.
type SignedTx struct {
	Body   TxBody  `json:"body" cramberry:"1"`
	Proofs []Proof `json:"proofs" cramberry:"2"`
}

// Body returns the wire body of tx.
func (tx *UnsignedTx) Body() TxBody {
	body := TxBody{
		Action:    tx.Action,
		Fee:       tx.Fee,
		Extension: tx.Extension,
	}
	for _, in := range tx.Inputs {
		body.Inputs = append(body.Inputs, in.ID)
	}
	for _, di := range tx.DataInputs {
		body.DataInputs = append(body.DataInputs, di.ID)
	}
	for _, out := range tx.Outputs {
		raw := box.Encode(out)
		raw.ID, raw.TxID, raw.Index = "", "", 0
		body.Outputs = append(body.Outputs, *raw)
	}
	return body
}

// Digest returns the 32-byte hash of the canonical body encoding.
func (b *TxBody) Digest() ([]byte, error) {
	data, err := cramberry.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal tx body: %w", err)
	}
	return crypto.HashBytes(data), nil
}

// ID returns the hex transaction id.
func (b *TxBody) ID() (string, error) {
	d, err := b.Digest()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(d), nil
}

// ID returns the id the transaction will have once signed.
func (tx *UnsignedTx) ID() (string, error) {
	body := tx.Body()
	return body.ID()
}

// ID returns the transaction id.
func (tx *SignedTx) ID() (string, error) {
	return tx.Body.ID()
}

// Materialize returns the outputs with their final ids, transaction id,
// index and creation height filled in.
func (b *TxBody) Materialize(txID string, height int64) []*box.Raw {
	out := make([]*box.Raw, len(b.Outputs))
	for i := range b.Outputs {
		raw := b.Outputs[i]
		raw.TxID = txID
		raw.Index = uint32(i)
		raw.ID = box.ComputeID(txID, uint32(i))
		raw.CreationHeight = height
		out[i] = &raw
	}
	return out
}

// ErrOverflow is returned when a value sum exceeds the uint64 range.
var ErrOverflow = errors.New("value overflow")

// SumValues adds the values of boxes, failing on overflow.
func SumValues(boxes []*box.Box) (uint64, error) {
	var total uint64
	for _, b := range boxes {
		var carry uint64
		total, carry = bits.Add64(total, b.Value, 0)
		if carry != 0 {
			return 0, ErrOverflow
		}
	}
	return total, nil
}

// AddValues adds a and b, failing on overflow.
func AddValues(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// SumTokens totals token amounts by id, failing on overflow.
func SumTokens(boxes []*box.Box) (map[string]uint64, error) {
	out := make(map[string]uint64)
	for _, b := range boxes {
		for _, t := range b.Tokens {
			sum, err := AddValues(out[t.ID], t.Amount)
			if err != nil {
				return nil, fmt.Errorf("token %s: %w", t.ID, err)
			}
			out[t.ID] = sum
		}
	}
	return out, nil
}

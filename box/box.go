// Package box models unspent ledger outputs: value, tokens, creation height
// and the six typed registers R4..R9 that carry protocol state.
package box

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/tolelom/tolgame/crypto"
)

// NumRegisters is the number of non-mandatory registers (R4..R9).
const NumRegisters = 6

// RegisterID indexes a non-mandatory register; R4 is 0.
type RegisterID int

const (
	R4 RegisterID = iota
	R5
	R6
	R7
	R8
	R9
)

func (r RegisterID) String() string {
	return fmt.Sprintf("R%d", int(r)+4)
}

// Token is an asset quantity carried by a box.
type Token struct {
	ID     string `json:"tokenId" cramberry:"1"`
	Amount uint64 `json:"amount" cramberry:"2"`
}

// Registers holds the typed values of R4..R9. A nil entry is absent.
type Registers [NumRegisters]Value

// Box is the typed form of an unspent output.
type Box struct {
	ID             string
	TxID           string
	Index          uint32
	Value          uint64
	Proposition    []byte
	Tokens         []Token
	CreationHeight int64
	Registers      Registers
}

// RawRegister is one serialized register on the wire.
type RawRegister struct {
	Slot uint32 `json:"slot" cramberry:"1"` // 4..9
	Data []byte `json:"data" cramberry:"2"`
}

// Raw is the wire and storage form of a box.
type Raw struct {
	ID             string        `json:"boxId" cramberry:"1"`
	TxID           string        `json:"transactionId" cramberry:"2"`
	Index          uint32        `json:"index" cramberry:"3"`
	Value          uint64        `json:"value" cramberry:"4"`
	Proposition    []byte        `json:"proposition" cramberry:"5"`
	Tokens         []Token       `json:"assets" cramberry:"6"`
	CreationHeight int64         `json:"creationHeight" cramberry:"7"`
	Registers      []RawRegister `json:"additionalRegisters" cramberry:"8"`
}

// Address returns the address of the box's guard.
func (b *Box) Address() crypto.Address {
	return crypto.AddressOf(b.Proposition)
}

// Register returns the value in reg, or a DecodeError if it is absent.
func (b *Box) Register(reg RegisterID) (Value, error) {
	v := b.Registers[reg]
	if v == nil {
		return nil, NewDecodeError(CodeMissingRegister, reg.String(), "register is absent")
	}
	return v, nil
}

// TokenAmount returns the total amount of token id held by the box.
func (b *Box) TokenAmount(id string) uint64 {
	var n uint64
	for _, t := range b.Tokens {
		if t.ID == id {
			n += t.Amount
		}
	}
	return n
}

// Decode converts a raw box into its typed form. Registers must be
// contiguous from R4: a gap is reported as a missing register.
func Decode(raw *Raw) (*Box, error) {
	if raw == nil {
		return nil, NewDecodeError(CodeInvalidField, "", "nil box")
	}
	b := &Box{
		ID:             raw.ID,
		TxID:           raw.TxID,
		Index:          raw.Index,
		Value:          raw.Value,
		Proposition:    bytes.Clone(raw.Proposition),
		CreationHeight: raw.CreationHeight,
	}
	if len(raw.Tokens) > 0 {
		b.Tokens = append([]Token(nil), raw.Tokens...)
	}
	for _, rr := range raw.Registers {
		if rr.Slot < 4 || rr.Slot > 9 {
			return nil, NewDecodeError(CodeInvalidField, "", "register slot R%d out of range", rr.Slot)
		}
		id := RegisterID(rr.Slot - 4)
		if b.Registers[id] != nil {
			return nil, NewDecodeError(CodeInvalidField, id.String(), "register defined twice")
		}
		v, err := Parse(id.String(), rr.Data)
		if err != nil {
			return nil, err
		}
		b.Registers[id] = v
	}
	gap := -1
	for i, v := range b.Registers {
		if v == nil {
			if gap < 0 {
				gap = i
			}
			continue
		}
		if gap >= 0 {
			return nil, NewDecodeError(CodeMissingRegister, RegisterID(gap).String(), "gap before %s", RegisterID(i))
		}
	}
	return b, nil
}

// Encode converts a typed box into its raw form, registers in slot order.
func Encode(b *Box) *Raw {
	raw := &Raw{
		ID:             b.ID,
		TxID:           b.TxID,
		Index:          b.Index,
		Value:          b.Value,
		Proposition:    bytes.Clone(b.Proposition),
		CreationHeight: b.CreationHeight,
	}
	if len(b.Tokens) > 0 {
		raw.Tokens = append([]Token(nil), b.Tokens...)
	}
	for i, v := range b.Registers {
		if v == nil {
			continue
		}
		raw.Registers = append(raw.Registers, RawRegister{Slot: uint32(i + 4), Data: Serialize(v)})
	}
	return raw
}

// ComputeID derives the id of the output at index in transaction txID.
func ComputeID(txID string, index uint32) string {
	buf := make([]byte, 0, len(txID)+4)
	buf = append(buf, txID...)
	buf = binary.BigEndian.AppendUint32(buf, index)
	return crypto.Hash(buf)
}

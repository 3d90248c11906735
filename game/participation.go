package game

import (
	"bytes"
	"encoding/hex"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/crypto"
)

// Participation is a decoded participation box.
type Participation struct {
	BoxID          string
	Value          uint64
	CreationHeight int64
	Status         ParticipationStatus
	PlayerPubKey   []byte
	GameNFTID      string
	Commitment     []byte

	// Submitted layout.
	SubmissionHeight int64
	ParticipationFee int64

	// Resolved layout.
	ResolvedHeight int64
	Prize          int64
}

// RefundProposition is the only guard a participation may be refunded to:
// the player's own key.
func RefundProposition(p *Participation) []byte {
	return crypto.P2PK(p.PlayerPubKey)
}

// RefundAddress is the address a refund of p must pay.
func RefundAddress(p *Participation) crypto.Address {
	return crypto.AddressOf(RefundProposition(p))
}

// EncodeParticipation builds the box carrying p under the participation
// contract.
func EncodeParticipation(p *Participation) (*box.Box, error) {
	nft, err := NFTBytes(p.GameNFTID)
	if err != nil {
		return nil, err
	}
	b := &box.Box{
		ID:             p.BoxID,
		Value:          p.Value,
		Proposition:    bytes.Clone(ParticipationContract),
		CreationHeight: p.CreationHeight,
	}
	r := &b.Registers
	r[box.R4] = header(int32(p.Status))
	r[box.R5] = box.Bytes(p.PlayerPubKey)
	r[box.R6] = box.Bytes(nft)
	r[box.R7] = box.Bytes(p.Commitment)
	switch p.Status {
	case ParticipationSubmitted:
		r[box.R8] = box.Long(p.SubmissionHeight)
		r[box.R9] = box.Long(p.ParticipationFee)
	case ParticipationResolved:
		r[box.R8] = box.Long(p.ResolvedHeight)
		r[box.R9] = box.Long(p.Prize)
	default:
		return nil, box.NewDecodeError(box.CodeUnknownStatus, box.R4.String(), "participation status %s", p.Status)
	}
	return b, nil
}

// DecodeParticipationRaw decodes a raw box as a participation.
func DecodeParticipationRaw(raw *box.Raw) (*Participation, error) {
	b, err := box.Decode(raw)
	if err != nil {
		return nil, err
	}
	return DecodeParticipation(b)
}

// DecodeParticipation decodes a typed box as a participation.
func DecodeParticipation(b *box.Box) (*Participation, error) {
	if !bytes.Equal(b.Proposition, ParticipationContract) {
		return nil, box.NewDecodeError(box.CodeInvalidField, "", "box %s is not guarded by the participation contract", b.ID)
	}
	if len(b.Tokens) != 0 {
		return nil, box.NewDecodeError(box.CodeInvalidField, "", "participation box %s carries tokens", b.ID)
	}
	tag, err := readHeader(b)
	if err != nil {
		return nil, err
	}
	status, err := parseParticipationStatus(tag)
	if err != nil {
		return nil, err
	}
	p := &Participation{
		BoxID:          b.ID,
		Value:          b.Value,
		CreationHeight: b.CreationHeight,
		Status:         status,
	}
	if p.PlayerPubKey, err = b.Bytes(box.R5); err != nil {
		return nil, err
	}
	nft, err := b.Bytes(box.R6)
	if err != nil {
		return nil, err
	}
	if len(nft) != crypto.DigestSize {
		return nil, box.NewDecodeError(box.CodeInvalidField, box.R6.String(), "game nft id is %d bytes", len(nft))
	}
	p.GameNFTID = hex.EncodeToString(nft)
	if p.Commitment, err = b.Bytes(box.R7); err != nil {
		return nil, err
	}
	h, err := b.Long(box.R8)
	if err != nil {
		return nil, err
	}
	amount, err := b.Long(box.R9)
	if err != nil {
		return nil, err
	}
	switch status {
	case ParticipationSubmitted:
		p.SubmissionHeight, p.ParticipationFee = h, amount
	case ParticipationResolved:
		p.ResolvedHeight, p.Prize = h, amount
	}
	return p, nil
}

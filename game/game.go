// Package game maps protocol boxes to and from their register layouts.
// Every protocol box starts with R4 = (schemaVersion, statusTag).
package game

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/crypto"
)

// Guard propositions of the protocol contracts.
var (
	GameContract          = crypto.Contract("tolgame/game/v1")
	ParticipationContract = crypto.Contract("tolgame/participation/v1")
)

// Terms are the game parameters fixed at creation.
type Terms struct {
	Deadline         int64
	ParticipationFee int64
	PerJudgeBps      int64
	CreatorBps       int64
}

// ActiveState is the layout of an open game.
type ActiveState struct {
	CreatorPubKey []byte
	SecretHash    []byte
	InvitedJudges [][]byte // hashes of judge public keys; empty means open
	Terms         Terms
	CreatorStake  int64
}

// ResolutionState is the layout of a resolved game.
type ResolutionState struct {
	RevealedSecret       []byte
	WinnerPubKey         []byte // empty when there was no winner
	InvitedJudges        [][]byte
	ResolvedHeight       int64
	Terms                Terms
	ResolverStake        int64
	ResolverPubKeyOrTree []byte
}

// CancellationState is the layout shared by both cancellation states.
type CancellationState struct {
	CreatorPubKey        []byte
	RevealedSecret       []byte
	UnlockHeight         int64
	ResolverStakeAmount  int64
	ResolverPubKeyOrTree []byte
}

// Game is a decoded game box. Exactly one of Active, Resolution and
// Cancellation is set, selected by Status.
type Game struct {
	BoxID          string
	Value          uint64
	CreationHeight int64
	NFTID          string
	Status         Status
	Details        []byte

	Active       *ActiveState
	Resolution   *ResolutionState
	Cancellation *CancellationState
}

// JudgeKeyHash returns the invite-list entry for a judge public key.
func JudgeKeyHash(pub []byte) []byte {
	return crypto.HashBytes(pub)
}

// IsInvited reports whether pub may act as a judge. An empty list admits
// anyone.
func IsInvited(invited [][]byte, pub []byte) bool {
	if len(invited) == 0 {
		return true
	}
	h := JudgeKeyHash(pub)
	for _, j := range invited {
		if bytes.Equal(j, h) {
			return true
		}
	}
	return false
}

// Stake returns the staked amount recorded in the game's current layout.
func (g *Game) Stake() (int64, error) {
	switch g.Status {
	case StatusActive:
		return g.Active.CreatorStake, nil
	case StatusResolved:
		return g.Resolution.ResolverStake, nil
	case StatusCancelledDraining, StatusCancelledFinalized:
		return g.Cancellation.ResolverStakeAmount, nil
	default:
		return 0, fmt.Errorf("unknown game status %s", g.Status)
	}
}

// Terms returns the creation terms, which cancellation layouts do not carry.
func (g *Game) Terms() (Terms, bool) {
	switch g.Status {
	case StatusActive:
		return g.Active.Terms, true
	case StatusResolved:
		return g.Resolution.Terms, true
	case StatusCancelledDraining, StatusCancelledFinalized:
		return Terms{}, false
	default:
		return Terms{}, false
	}
}

func (g *Game) checkVariant() error {
	var ok bool
	switch g.Status {
	case StatusActive:
		ok = g.Active != nil && g.Resolution == nil && g.Cancellation == nil
	case StatusResolved:
		ok = g.Resolution != nil && g.Active == nil && g.Cancellation == nil
	case StatusCancelledDraining, StatusCancelledFinalized:
		ok = g.Cancellation != nil && g.Active == nil && g.Resolution == nil
	default:
		return fmt.Errorf("unknown game status %s", g.Status)
	}
	if !ok {
		return fmt.Errorf("game state does not match status %s", g.Status)
	}
	return nil
}

func termsColl(t Terms, resolvedHeight int64, resolved bool) box.LongColl {
	if resolved {
		return box.LongColl{resolvedHeight, t.Deadline, t.ParticipationFee, t.PerJudgeBps, t.CreatorBps}
	}
	return box.LongColl{t.Deadline, t.ParticipationFee, t.PerJudgeBps, t.CreatorBps}
}

// EncodeGame builds the box carrying g under the game contract.
func EncodeGame(g *Game) (*box.Box, error) {
	if err := g.checkVariant(); err != nil {
		return nil, err
	}
	b := &box.Box{
		ID:             g.BoxID,
		Value:          g.Value,
		Proposition:    bytes.Clone(GameContract),
		Tokens:         []box.Token{{ID: g.NFTID, Amount: 1}},
		CreationHeight: g.CreationHeight,
	}
	r := &b.Registers
	r[box.R4] = header(int32(g.Status))
	r[box.R9] = box.Bytes(g.Details)
	switch g.Status {
	case StatusActive:
		a := g.Active
		r[box.R5] = box.Pair{L: box.Bytes(a.CreatorPubKey), R: box.Bytes(a.SecretHash)}
		r[box.R6] = box.BytesColl(a.InvitedJudges)
		r[box.R7] = termsColl(a.Terms, 0, false)
		r[box.R8] = box.Long(a.CreatorStake)
	case StatusResolved:
		res := g.Resolution
		r[box.R5] = box.Pair{L: box.Bytes(res.RevealedSecret), R: box.Bytes(res.WinnerPubKey)}
		r[box.R6] = box.BytesColl(res.InvitedJudges)
		r[box.R7] = termsColl(res.Terms, res.ResolvedHeight, true)
		r[box.R8] = box.Pair{L: box.Long(res.ResolverStake), R: box.Bytes(res.ResolverPubKeyOrTree)}
	case StatusCancelledDraining, StatusCancelledFinalized:
		c := g.Cancellation
		r[box.R5] = box.Pair{L: box.Bytes(c.CreatorPubKey), R: box.Bytes(c.RevealedSecret)}
		r[box.R6] = box.Long(c.UnlockHeight)
		r[box.R7] = box.Long(c.ResolverStakeAmount)
		r[box.R8] = box.Bytes(c.ResolverPubKeyOrTree)
	}
	return b, nil
}

// DecodeGameRaw decodes a raw box as a game.
func DecodeGameRaw(raw *box.Raw) (*Game, error) {
	b, err := box.Decode(raw)
	if err != nil {
		return nil, err
	}
	return DecodeGame(b)
}

// DecodeGame decodes a typed box as a game. The box must be guarded by the
// game contract and carry exactly one unit of one token, the game NFT.
func DecodeGame(b *box.Box) (*Game, error) {
	if !bytes.Equal(b.Proposition, GameContract) {
		return nil, box.NewDecodeError(box.CodeInvalidField, "", "box %s is not guarded by the game contract", b.ID)
	}
	if len(b.Tokens) != 1 || b.Tokens[0].Amount != 1 {
		return nil, box.NewDecodeError(box.CodeInvalidField, "", "game box %s must hold exactly its NFT", b.ID)
	}
	tag, err := readHeader(b)
	if err != nil {
		return nil, err
	}
	status, err := parseStatus(tag)
	if err != nil {
		return nil, err
	}
	g := &Game{
		BoxID:          b.ID,
		Value:          b.Value,
		CreationHeight: b.CreationHeight,
		NFTID:          b.Tokens[0].ID,
		Status:         status,
	}
	if g.Details, err = b.Bytes(box.R9); err != nil {
		return nil, err
	}
	switch status {
	case StatusActive:
		g.Active, err = decodeActive(b)
	case StatusResolved:
		g.Resolution, err = decodeResolution(b)
	case StatusCancelledDraining, StatusCancelledFinalized:
		g.Cancellation, err = decodeCancellation(b)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func bytesPair(b *box.Box, reg box.RegisterID) ([]byte, []byte, error) {
	v, err := b.Register(reg)
	if err != nil {
		return nil, nil, err
	}
	p, err := box.AsPair(reg, v)
	if err != nil {
		return nil, nil, err
	}
	l, err := box.AsBytes(reg, p.L)
	if err != nil {
		return nil, nil, err
	}
	r, err := box.AsBytes(reg, p.R)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func judges(b *box.Box) ([][]byte, error) {
	v, err := b.Register(box.R6)
	if err != nil {
		return nil, err
	}
	js, err := box.AsBytesColl(box.R6, v)
	if err != nil {
		return nil, err
	}
	for i, j := range js {
		if len(j) != crypto.DigestSize {
			return nil, box.NewDecodeError(box.CodeInvalidField, box.R6.String(), "judge %d: hash is %d bytes", i, len(j))
		}
	}
	return js, nil
}

func longs(b *box.Box, reg box.RegisterID, n int) ([]int64, error) {
	v, err := b.Register(reg)
	if err != nil {
		return nil, err
	}
	return box.AsLongColl(reg, v, n)
}

func decodeActive(b *box.Box) (*ActiveState, error) {
	a := &ActiveState{}
	var err error
	if a.CreatorPubKey, a.SecretHash, err = bytesPair(b, box.R5); err != nil {
		return nil, err
	}
	if len(a.SecretHash) != crypto.DigestSize {
		return nil, box.NewDecodeError(box.CodeInvalidField, box.R5.String(), "secret hash is %d bytes", len(a.SecretHash))
	}
	if a.InvitedJudges, err = judges(b); err != nil {
		return nil, err
	}
	t, err := longs(b, box.R7, 4)
	if err != nil {
		return nil, err
	}
	a.Terms = Terms{Deadline: t[0], ParticipationFee: t[1], PerJudgeBps: t[2], CreatorBps: t[3]}
	if a.CreatorStake, err = b.Long(box.R8); err != nil {
		return nil, err
	}
	return a, nil
}

func decodeResolution(b *box.Box) (*ResolutionState, error) {
	r := &ResolutionState{}
	var err error
	if r.RevealedSecret, r.WinnerPubKey, err = bytesPair(b, box.R5); err != nil {
		return nil, err
	}
	if r.InvitedJudges, err = judges(b); err != nil {
		return nil, err
	}
	t, err := longs(b, box.R7, 5)
	if err != nil {
		return nil, err
	}
	r.ResolvedHeight = t[0]
	r.Terms = Terms{Deadline: t[1], ParticipationFee: t[2], PerJudgeBps: t[3], CreatorBps: t[4]}
	v, err := b.Register(box.R8)
	if err != nil {
		return nil, err
	}
	p, err := box.AsPair(box.R8, v)
	if err != nil {
		return nil, err
	}
	if r.ResolverStake, err = box.AsLong(box.R8, p.L); err != nil {
		return nil, err
	}
	if r.ResolverPubKeyOrTree, err = box.AsBytes(box.R8, p.R); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeCancellation(b *box.Box) (*CancellationState, error) {
	c := &CancellationState{}
	var err error
	if c.CreatorPubKey, c.RevealedSecret, err = bytesPair(b, box.R5); err != nil {
		return nil, err
	}
	if c.UnlockHeight, err = b.Long(box.R6); err != nil {
		return nil, err
	}
	if c.ResolverStakeAmount, err = b.Long(box.R7); err != nil {
		return nil, err
	}
	if c.ResolverPubKeyOrTree, err = b.Bytes(box.R8); err != nil {
		return nil, err
	}
	return c, nil
}

// NFTBytes decodes a hex NFT id into its register form.
func NFTBytes(nftID string) ([]byte, error) {
	b, err := hex.DecodeString(nftID)
	if err != nil || len(b) != crypto.DigestSize {
		return nil, fmt.Errorf("invalid game nft id %q", nftID)
	}
	return b, nil
}

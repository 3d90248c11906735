package game

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/crypto"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	_, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return pub
}

func activeGame(t *testing.T) *Game {
	return &Game{
		BoxID:          box.ComputeID("create", 0),
		Value:          2_000_000_000,
		CreationHeight: 100,
		NFTID:          box.ComputeID("funding", 0),
		Status:         StatusActive,
		Details:        []byte(`{"title":"guess"}`),
		Active: &ActiveState{
			CreatorPubKey: testKey(t),
			SecretHash:    crypto.HashBytes([]byte("secret")),
			InvitedJudges: [][]byte{JudgeKeyHash(testKey(t))},
			Terms:         Terms{Deadline: 1000, ParticipationFee: 1_000_000, PerJudgeBps: 500, CreatorBps: 1000},
			CreatorStake:  2_000_000_000,
		},
	}
}

func TestGameRoundTrip(t *testing.T) {
	creator := testKey(t)
	games := map[string]*Game{
		"active": activeGame(t),
		"resolved": {
			NFTID: box.ComputeID("funding", 0), Value: 5, Status: StatusResolved, Details: []byte("d"),
			Resolution: &ResolutionState{
				RevealedSecret:       []byte("secret"),
				WinnerPubKey:         testKey(t),
				ResolvedHeight:       1001,
				Terms:                Terms{Deadline: 1000, ParticipationFee: 1, PerJudgeBps: 2, CreatorBps: 3},
				ResolverStake:        5,
				ResolverPubKeyOrTree: crypto.P2PK(creator),
			},
		},
		"draining": {
			NFTID: box.ComputeID("funding", 1), Value: 8, Status: StatusCancelledDraining,
			Cancellation: &CancellationState{
				CreatorPubKey:        creator,
				RevealedSecret:       []byte("leaked"),
				UnlockHeight:         140,
				ResolverStakeAmount:  8,
				ResolverPubKeyOrTree: crypto.P2PK(testKey(t)),
			},
		},
		"finalized": {
			NFTID: box.ComputeID("funding", 2), Status: StatusCancelledFinalized,
			Cancellation: &CancellationState{
				CreatorPubKey: creator, RevealedSecret: []byte("s"), UnlockHeight: 9,
				ResolverPubKeyOrTree: crypto.P2PK(creator),
			},
		},
	}
	for name, g := range games {
		t.Run(name, func(t *testing.T) {
			b, err := EncodeGame(g)
			require.NoError(t, err)
			got, err := DecodeGameRaw(box.Encode(b))
			require.NoError(t, err)
			require.Equal(t, g, got)
		})
	}
}

func TestEncodeGameDeterministic(t *testing.T) {
	g := activeGame(t)
	a, err := EncodeGame(g)
	require.NoError(t, err)
	b, err := EncodeGame(g)
	require.NoError(t, err)
	for i := range a.Registers {
		require.True(t, bytes.Equal(box.Serialize(a.Registers[i]), box.Serialize(b.Registers[i])))
	}
}

func TestEncodeGameRejectsMismatchedVariant(t *testing.T) {
	g := activeGame(t)
	g.Status = StatusResolved
	_, err := EncodeGame(g)
	require.Error(t, err)
}

func decodeCode(t *testing.T, err error) box.DecodeCode {
	t.Helper()
	de, ok := box.IsDecodeError(err)
	require.True(t, ok, "expected decode error, got %v", err)
	return de.Code
}

func TestDecodeGameErrors(t *testing.T) {
	encode := func(t *testing.T) *box.Box {
		b, err := EncodeGame(activeGame(t))
		require.NoError(t, err)
		return b
	}

	t.Run("schema version", func(t *testing.T) {
		b := encode(t)
		b.Registers[box.R4] = box.Pair{L: box.Int(2), R: box.Int(0)}
		_, err := DecodeGame(b)
		require.Equal(t, box.CodeUnsupportedSchemaVersion, decodeCode(t, err))
	})
	t.Run("unknown status", func(t *testing.T) {
		b := encode(t)
		b.Registers[box.R4] = box.Pair{L: box.Int(1), R: box.Int(9)}
		_, err := DecodeGame(b)
		require.Equal(t, box.CodeUnknownStatus, decodeCode(t, err))
	})
	t.Run("type mismatch", func(t *testing.T) {
		b := encode(t)
		b.Registers[box.R8] = box.Int(1)
		_, err := DecodeGame(b)
		require.Equal(t, box.CodeRegisterTypeMismatch, decodeCode(t, err))
	})
	t.Run("terms length", func(t *testing.T) {
		b := encode(t)
		b.Registers[box.R7] = box.LongColl{1, 2, 3}
		_, err := DecodeGame(b)
		require.Equal(t, box.CodeMalformedCollectionLength, decodeCode(t, err))
	})
	t.Run("missing register", func(t *testing.T) {
		b := encode(t)
		b.Registers[box.R9] = nil
		_, err := DecodeGame(b)
		require.Equal(t, box.CodeMissingRegister, decodeCode(t, err))
	})
	t.Run("wrong guard", func(t *testing.T) {
		b := encode(t)
		b.Proposition = ParticipationContract
		_, err := DecodeGame(b)
		require.Equal(t, box.CodeInvalidField, decodeCode(t, err))
	})
	t.Run("nft amount", func(t *testing.T) {
		b := encode(t)
		b.Tokens[0].Amount = 2
		_, err := DecodeGame(b)
		require.Equal(t, box.CodeInvalidField, decodeCode(t, err))
	})
	t.Run("short secret hash", func(t *testing.T) {
		b := encode(t)
		b.Registers[box.R5] = box.Pair{L: box.Bytes{2}, R: box.Bytes{1, 2}}
		_, err := DecodeGame(b)
		require.Equal(t, box.CodeInvalidField, decodeCode(t, err))
	})
}

func TestParticipationRoundTrip(t *testing.T) {
	for _, p := range []*Participation{
		{
			BoxID: "p0", Value: 1_000_000, Status: ParticipationSubmitted,
			PlayerPubKey: testKey(t), GameNFTID: box.ComputeID("funding", 0), Commitment: []byte("c"),
			SubmissionHeight: 500, ParticipationFee: 1_000_000,
		},
		{
			BoxID: "p1", Value: 900, Status: ParticipationResolved,
			PlayerPubKey: testKey(t), GameNFTID: box.ComputeID("funding", 0),
			ResolvedHeight: 1001, Prize: 900,
		},
	} {
		b, err := EncodeParticipation(p)
		require.NoError(t, err)
		got, err := DecodeParticipationRaw(box.Encode(b))
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
}

func TestDecodeParticipationErrors(t *testing.T) {
	p := &Participation{
		Status: ParticipationSubmitted, PlayerPubKey: testKey(t), GameNFTID: box.ComputeID("f", 0),
	}
	b, err := EncodeParticipation(p)
	require.NoError(t, err)

	b.Registers[box.R6] = box.Bytes{1, 2, 3}
	_, err = DecodeParticipation(b)
	require.Equal(t, box.CodeInvalidField, decodeCode(t, err))

	b.Registers[box.R6] = box.LongColl{1}
	_, err = DecodeParticipation(b)
	require.Equal(t, box.CodeRegisterTypeMismatch, decodeCode(t, err))

	_, err = EncodeParticipation(&Participation{GameNFTID: "xyz"})
	require.Error(t, err)
}

func TestRefundProposition(t *testing.T) {
	pub := testKey(t)
	p := &Participation{PlayerPubKey: pub}
	require.Equal(t, crypto.P2PK(pub), RefundProposition(p))
	require.Equal(t, crypto.PublicKey(pub).Address(), RefundAddress(p))
}

func TestIsInvited(t *testing.T) {
	judge := testKey(t)
	require.True(t, IsInvited(nil, judge))
	require.True(t, IsInvited([][]byte{JudgeKeyHash(judge)}, judge))
	require.False(t, IsInvited([][]byte{JudgeKeyHash(testKey(t))}, judge))
}

func TestDrainClaimConverges(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	require.EqualValues(t, 2_000_000_000, p.DrainClaim(10_000_000_000))

	stake := uint64(10_000_000_000)
	steps := 0
	for stake > 0 {
		claim := p.DrainClaim(stake)
		require.Positive(t, claim)
		require.LessOrEqual(t, claim, stake)
		stake -= claim
		steps++
		require.Less(t, steps, 200)
	}
}

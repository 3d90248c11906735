package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/game"
)

// Secret is the preimage committed to by fixture games.
var Secret = []byte("forty-two")

var boxSeq atomic.Uint64

// NextID returns a fresh box id.
func NextID() string {
	return box.ComputeID(fmt.Sprintf("fixture-%d", boxSeq.Add(1)), 0)
}

// Key is a generated key pair.
type Key struct {
	Priv crypto.PrivateKey
	Pub  crypto.PublicKey
}

// NewKey generates a key pair or fails the test.
func NewKey(t testing.TB) Key {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return Key{Priv: priv, Pub: pub}
}

// P2PK returns the key's pay-to-public-key proposition.
func (k Key) P2PK() []byte { return crypto.P2PK(k.Pub) }

// Wallet returns a funding box owned by k.
func (k Key) Wallet(value uint64, tokens ...box.Token) *box.Box {
	return &box.Box{ID: NextID(), Value: value, Proposition: k.P2PK(), Tokens: tokens}
}

// DefaultTerms are the terms of fixture games: deadline 1000, fee 10_000_000,
// 500 bps per judge and 1000 bps to the creator.
var DefaultTerms = game.Terms{Deadline: 1000, ParticipationFee: 10_000_000, PerJudgeBps: 500, CreatorBps: 1000}

// NewActive returns an Active game staking stake, committed to Secret and
// inviting judges.
func NewActive(creator Key, stake uint64, terms game.Terms, judges ...Key) *game.Game {
	var invited [][]byte
	for _, j := range judges {
		invited = append(invited, game.JudgeKeyHash(j.Pub))
	}
	return &game.Game{
		Value:   stake,
		NFTID:   NextID(),
		Status:  game.StatusActive,
		Details: []byte(`{"title":"fixture"}`),
		Active: &game.ActiveState{
			CreatorPubKey: creator.Pub,
			SecretHash:    crypto.HashBytes(Secret),
			InvitedJudges: invited,
			Terms:         terms,
			CreatorStake:  int64(stake),
		},
	}
}

// GameBox encodes g as an unspent box with a fresh id.
func GameBox(t testing.TB, g *game.Game) *box.Box {
	t.Helper()
	if g.BoxID == "" {
		g.BoxID = NextID()
	}
	b, err := game.EncodeGame(g)
	require.NoError(t, err)
	return b
}

// ParticipationBox returns a Submitted participation by player in g.
func ParticipationBox(t testing.TB, g *game.Game, player Key, height int64) *box.Box {
	t.Helper()
	terms, ok := g.Terms()
	require.True(t, ok)
	b, err := game.EncodeParticipation(&game.Participation{
		BoxID:            NextID(),
		Value:            uint64(terms.ParticipationFee),
		Status:           game.ParticipationSubmitted,
		PlayerPubKey:     player.Pub,
		GameNFTID:        g.NFTID,
		Commitment:       []byte("commitment:" + player.Pub.Hex()),
		SubmissionHeight: height,
		ParticipationFee: terms.ParticipationFee,
	})
	require.NoError(t, err)
	return b
}

// Draining returns a Cancelled_Draining game holding stake.
func Draining(creator Key, payout []byte, stake uint64, unlock int64) *game.Game {
	return &game.Game{
		BoxID:  NextID(),
		Value:  stake,
		NFTID:  NextID(),
		Status: game.StatusCancelledDraining,
		Cancellation: &game.CancellationState{
			CreatorPubKey:        creator.Pub,
			RevealedSecret:       Secret,
			UnlockHeight:         unlock,
			ResolverStakeAmount:  int64(stake),
			ResolverPubKeyOrTree: payout,
		},
	}
}

// Resolved returns a Resolved game resolved at height.
func Resolved(creator Key, stake uint64, height int64) *game.Game {
	return &game.Game{
		BoxID:  NextID(),
		Value:  stake,
		NFTID:  NextID(),
		Status: game.StatusResolved,
		Resolution: &game.ResolutionState{
			RevealedSecret:       Secret,
			ResolvedHeight:       height,
			Terms:                DefaultTerms,
			ResolverStake:        int64(stake),
			ResolverPubKeyOrTree: creator.P2PK(),
		},
	}
}

package indexer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/events"
	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/indexer"
	"github.com/tolelom/tolgame/internal/testutil"
	"github.com/tolelom/tolgame/ledger"
	"github.com/tolelom/tolgame/orchestrator"
	"github.com/tolelom/tolgame/storage"
	"github.com/tolelom/tolgame/wallet"
)

var params = game.Params{
	GracePeriod:       10,
	CooldownBlocks:    2,
	CooldownMargin:    1,
	DrainDivisor:      5,
	AbandonmentWindow: 20,
	MinFee:            1_000,
}

// node is a ledger with the index attached, as the node serves it.
type node struct {
	*ledger.Ledger
	*indexer.Indexer
}

func setup(t *testing.T, keys ...testutil.Key) (*ledger.Ledger, *indexer.Indexer, storage.DB) {
	t.Helper()
	alloc := make(map[string]uint64)
	for _, k := range keys {
		alloc[k.Pub.Hex()] = 100_000_000
	}
	db := storage.NewMemDB()
	em := events.NewEmitter(nil)
	l, err := ledger.New(ledger.Options{DB: db, Params: params, Proposer: testutil.NewKey(t).Priv, Alloc: alloc, Emitter: em})
	require.NoError(t, err)
	return l, indexer.New(db, l, em, nil), db
}

func TestIndexFollowsGame(t *testing.T) {
	creator, alice := testutil.NewKey(t), testutil.NewKey(t)
	l, idx, db := setup(t, creator, alice)
	n := node{l, idx}
	var _ core.GameLocator = n
	ctx := context.Background()
	orch := func(k testutil.Key) *orchestrator.Orchestrator {
		return orchestrator.New(n, wallet.New(k.Priv, nil), orchestrator.Options{Identity: k.Pub, Params: params})
	}

	_, err := orch(creator).CreateGame(ctx, orchestrator.ActionParams{
		Secret:           testutil.Secret,
		Deadline:         50,
		CreatorStake:     5_000_000,
		ParticipationFee: 2_000_000,
	})
	require.NoError(t, err)
	_, err = l.ProduceBlock()
	require.NoError(t, err)

	gb, err := idx.GameBoxByNFT(ctx, gameNFT(t, l))
	require.NoError(t, err)
	g, err := game.DecodeGameRaw(gb)
	require.NoError(t, err)
	require.Equal(t, game.StatusActive, g.Status)

	_, err = orch(alice).SubmitParticipation(ctx, g.NFTID, []byte("guess"))
	require.NoError(t, err)
	_, err = l.ProduceBlock()
	require.NoError(t, err)
	parts, err := idx.ParticipationsByNFT(ctx, g.NFTID)
	require.NoError(t, err)
	require.Len(t, parts, 1)

	_, err = orch(creator).Cancel(ctx, g.NFTID, testutil.Secret, "")
	require.NoError(t, err)
	_, err = l.ProduceBlock()
	require.NoError(t, err)
	moved, err := idx.GameBoxByNFT(ctx, g.NFTID)
	require.NoError(t, err)
	require.NotEqual(t, gb.ID, moved.ID)

	_, err = orch(alice).Refund(ctx, g.NFTID, parts[0].ID)
	require.NoError(t, err)
	_, err = l.ProduceBlock()
	require.NoError(t, err)
	parts, err = idx.ParticipationsByNFT(ctx, g.NFTID)
	require.NoError(t, err)
	require.Empty(t, parts)

	fresh := indexer.New(db, l, nil, nil)
	require.NoError(t, fresh.Rebuild(ctx))
	again, err := fresh.GameBoxByNFT(ctx, g.NFTID)
	require.NoError(t, err)
	require.Equal(t, moved.ID, again.ID)
}

func TestUnknownGame(t *testing.T) {
	_, idx, _ := setup(t)
	_, err := idx.GameBoxByNFT(context.Background(), "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
	parts, err := idx.ParticipationsByNFT(context.Background(), "missing")
	require.NoError(t, err)
	require.Empty(t, parts)
}

func gameNFT(t *testing.T, l *ledger.Ledger) string {
	t.Helper()
	raws, err := l.UnspentOutputsFor(context.Background(), crypto.AddressOf(game.GameContract))
	require.NoError(t, err)
	require.Len(t, raws, 1)
	return raws[0].Tokens[0].ID
}

package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolgame/assembler"
	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/events"
	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/internal/testutil"
	"github.com/tolelom/tolgame/ledger"
	"github.com/tolelom/tolgame/orchestrator"
	"github.com/tolelom/tolgame/rules"
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

const fee = 1_000

type env struct {
	t         *testing.T
	l         *ledger.Ledger
	collector testutil.Key
	emitter   *events.Emitter
}

func newEnv(t *testing.T, funded ...testutil.Key) *env {
	t.Helper()
	alloc := make(map[string]uint64)
	for _, k := range funded {
		alloc[k.Pub.Hex()] = 100_000_000
	}
	proposer := testutil.NewKey(t)
	collector := testutil.NewKey(t)
	em := events.NewEmitter(nil)
	l, err := ledger.New(ledger.Options{
		DB:           storage.NewMemDB(),
		Params:       params,
		Proposer:     proposer.Priv,
		FeeCollector: collector.Pub,
		ChainID:      "tolgame-test",
		Alloc:        alloc,
		Emitter:      em,
	})
	require.NoError(t, err)
	return &env{t: t, l: l, collector: collector, emitter: em}
}

func (e *env) produce(n int) {
	e.t.Helper()
	for i := 0; i < n; i++ {
		_, err := e.l.ProduceBlock()
		require.NoError(e.t, err)
	}
}

func (e *env) height() int64 {
	h, err := e.l.CurrentHeight(context.Background())
	require.NoError(e.t, err)
	return h
}

func (e *env) funds(k testutil.Key) []*box.Box {
	e.t.Helper()
	raws, err := e.l.UnspentOutputsFor(context.Background(), k.Pub.Address())
	require.NoError(e.t, err)
	out := make([]*box.Box, 0, len(raws))
	for _, r := range raws {
		b, err := box.Decode(r)
		require.NoError(e.t, err)
		out = append(out, b)
	}
	return out
}

func (e *env) balance(k testutil.Key) uint64 {
	var total uint64
	for _, b := range e.funds(k) {
		total += b.Value
	}
	return total
}

func (e *env) orchestrator(k testutil.Key) *orchestrator.Orchestrator {
	return orchestrator.New(e.l, wallet.New(k.Priv, nil), orchestrator.Options{Identity: k.Pub, Params: params})
}

func transfer(t *testing.T, from testutil.Key, in *box.Box, to testutil.Key, amount uint64) *core.UnsignedTx {
	t.Helper()
	return &core.UnsignedTx{
		Inputs: []*box.Box{in},
		Outputs: []*box.Box{
			{Value: amount, Proposition: to.P2PK()},
			{Value: in.Value - amount - fee, Proposition: from.P2PK()},
		},
		Fee: fee,
	}
}

func sign(t *testing.T, k testutil.Key, tx *core.UnsignedTx) *core.SignedTx {
	t.Helper()
	stx, err := wallet.New(k.Priv, nil).Sign(context.Background(), tx)
	require.NoError(t, err)
	return stx
}

func TestGenesisAllocation(t *testing.T) {
	alice := testutil.NewKey(t)
	e := newEnv(t, alice)
	require.Zero(t, e.height())
	require.Equal(t, uint64(100_000_000), e.balance(alice))
	b, err := e.l.BlockByHeight(0)
	require.NoError(t, err)
	require.NoError(t, b.Verify())
}

func TestTransferAndFees(t *testing.T) {
	alice, bob := testutil.NewKey(t), testutil.NewKey(t)
	e := newEnv(t, alice)
	stx := sign(t, alice, transfer(t, alice, e.funds(alice)[0], bob, 40_000_000))

	var created int
	e.emitter.Subscribe(events.EventBoxCreated, func(events.Event) { created++ })
	id, err := e.l.Submit(context.Background(), stx)
	require.NoError(t, err)
	require.Equal(t, 1, e.l.MempoolSize())

	block, err := e.l.ProduceBlock()
	require.NoError(t, err)
	require.Equal(t, int64(1), block.Header.Height)
	require.Len(t, block.Transactions, 1)
	require.NoError(t, block.Verify())
	require.Zero(t, e.l.MempoolSize())

	require.Equal(t, uint64(40_000_000), e.balance(bob))
	require.Equal(t, uint64(100_000_000-40_000_000-fee), e.balance(alice))
	require.Equal(t, uint64(fee), e.balance(e.collector))
	require.Equal(t, 3, created)

	out, err := e.l.BoxByID(context.Background(), box.ComputeID(id, 0))
	require.NoError(t, err)
	require.Equal(t, int64(1), out.CreationHeight)
}

func TestSubmitIsIdempotentWhilePending(t *testing.T) {
	alice, bob := testutil.NewKey(t), testutil.NewKey(t)
	e := newEnv(t, alice)
	stx := sign(t, alice, transfer(t, alice, e.funds(alice)[0], bob, 1_000_000))
	first, err := e.l.Submit(context.Background(), stx)
	require.NoError(t, err)
	again, err := e.l.Submit(context.Background(), stx)
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.Equal(t, 1, e.l.MempoolSize())
}

func TestRejectsForeignProof(t *testing.T) {
	alice, mallory := testutil.NewKey(t), testutil.NewKey(t)
	e := newEnv(t, alice)
	tx := transfer(t, alice, e.funds(alice)[0], mallory, 50_000_000)
	body := tx.Body()
	digest, err := body.Digest()
	require.NoError(t, err)
	sig, err := crypto.Sign(mallory.Priv, digest)
	require.NoError(t, err)

	_, err = e.l.Submit(context.Background(), &core.SignedTx{Body: body, Proofs: []core.Proof{{Input: 0, Signature: sig}}})
	require.Error(t, err)
	require.False(t, core.IsTransient(err))

	_, err = e.l.Submit(context.Background(), &core.SignedTx{Body: body})
	require.Error(t, err)
	require.Zero(t, e.l.MempoolSize())
}

func TestRejectsBrokenConservation(t *testing.T) {
	alice, bob := testutil.NewKey(t), testutil.NewKey(t)
	e := newEnv(t, alice)
	tx := transfer(t, alice, e.funds(alice)[0], bob, 1_000_000)
	tx.Outputs[1].Value++
	_, err := e.l.Submit(context.Background(), sign(t, alice, tx))
	v, ok := core.IsRuleViolation(err)
	require.True(t, ok)
	require.Equal(t, core.PredValueConservation, v.Predicate)
}

func TestTransferCannotForgeGameBox(t *testing.T) {
	alice := testutil.NewKey(t)
	e := newEnv(t, alice)
	in := e.funds(alice)[0]
	tx := &core.UnsignedTx{
		Inputs:  []*box.Box{in},
		Outputs: []*box.Box{{Value: in.Value - fee, Proposition: game.GameContract}},
		Fee:     fee,
	}
	_, err := e.l.Submit(context.Background(), sign(t, alice, tx))
	v, ok := core.IsRuleViolation(err)
	require.True(t, ok)
	require.Equal(t, core.PredOutputShape, v.Predicate)
}

func TestDoubleSpend(t *testing.T) {
	alice, bob, carol := testutil.NewKey(t), testutil.NewKey(t), testutil.NewKey(t)
	e := newEnv(t, alice)
	in := e.funds(alice)[0]
	toBob := sign(t, alice, transfer(t, alice, in, bob, 1_000_000))
	toCarol := sign(t, alice, transfer(t, alice, in, carol, 2_000_000))

	_, err := e.l.Submit(context.Background(), toBob)
	require.NoError(t, err)
	_, err = e.l.Submit(context.Background(), toCarol)
	require.ErrorIs(t, err, ledger.ErrDoubleSpend)
	require.False(t, core.IsTransient(err))

	e.produce(1)
	_, err = e.l.Submit(context.Background(), toCarol)
	require.ErrorIs(t, err, ledger.ErrDoubleSpend)
	require.Zero(t, e.balance(carol))
}

func TestGameLifecycle(t *testing.T) {
	creator, alice, bob := testutil.NewKey(t), testutil.NewKey(t), testutil.NewKey(t)
	e := newEnv(t, creator, alice, bob)
	ctx := context.Background()

	_, err := e.orchestrator(creator).CreateGame(ctx, orchestrator.ActionParams{
		Secret:           testutil.Secret,
		Deadline:         5,
		CreatorStake:     20_000_000,
		ParticipationFee: 10_000_000,
		CreatorBps:       1000,
	})
	require.NoError(t, err)
	e.produce(1)

	games, err := e.l.UnspentOutputsFor(ctx, crypto.AddressOf(game.GameContract))
	require.NoError(t, err)
	require.Len(t, games, 1)
	g, err := game.DecodeGameRaw(games[0])
	require.NoError(t, err)
	require.Equal(t, game.StatusActive, g.Status)

	_, err = e.orchestrator(alice).SubmitParticipation(ctx, g.NFTID, []byte("alice guess"))
	require.NoError(t, err)
	_, err = e.orchestrator(bob).SubmitParticipation(ctx, g.NFTID, []byte("bob guess"))
	require.NoError(t, err)
	e.produce(1)

	parts, err := e.l.UnspentOutputsFor(ctx, crypto.AddressOf(game.ParticipationContract))
	require.NoError(t, err)
	require.Len(t, parts, 2)
	var bobPart string
	for _, raw := range parts {
		p, err := game.DecodeParticipationRaw(raw)
		require.NoError(t, err)
		if string(p.PlayerPubKey) == string(bob.Pub) {
			bobPart = raw.ID
		}
	}

	e.produce(int(5 - e.height()))
	_, err = e.orchestrator(creator).Resolve(ctx, g.NFTID, testutil.Secret, bobPart, nil)
	require.NoError(t, err)
	e.produce(1)

	games, err = e.l.UnspentOutputsFor(ctx, crypto.AddressOf(game.GameContract))
	require.NoError(t, err)
	require.Len(t, games, 1)
	resolved, err := game.DecodeGameRaw(games[0])
	require.NoError(t, err)
	require.Equal(t, game.StatusResolved, resolved.Status)
	require.Equal(t, []byte(bob.Pub), resolved.Resolution.WinnerPubKey)

	parts, err = e.l.UnspentOutputsFor(ctx, crypto.AddressOf(game.ParticipationContract))
	require.NoError(t, err)
	require.Len(t, parts, 1)
	prize, err := game.DecodeParticipationRaw(parts[0])
	require.NoError(t, err)
	require.Equal(t, game.ParticipationResolved, prize.Status)
	require.Equal(t, uint64(18_000_000), prize.Value)

	before := e.balance(bob)
	_, err = e.orchestrator(bob).ClaimPrize(ctx, parts[0].ID)
	require.NoError(t, err)
	e.produce(1)
	require.Equal(t, before+18_000_000-fee, e.balance(bob))
}

func TestRacingDrainsFirstConfirmedWins(t *testing.T) {
	creator, alice, bob := testutil.NewKey(t), testutil.NewKey(t), testutil.NewKey(t)
	e := newEnv(t, creator, alice, bob)
	ctx := context.Background()

	_, err := e.orchestrator(creator).CreateGame(ctx, orchestrator.ActionParams{
		Secret:           testutil.Secret,
		Deadline:         50,
		CreatorStake:     10_000_000,
		ParticipationFee: 1_000_000,
	})
	require.NoError(t, err)
	e.produce(1)
	games, err := e.l.UnspentOutputsFor(ctx, crypto.AddressOf(game.GameContract))
	require.NoError(t, err)
	nft := games[0].Tokens[0].ID

	_, err = e.orchestrator(creator).Cancel(ctx, nft, testutil.Secret, "")
	require.NoError(t, err)
	e.produce(1 + int(params.CooldownBlocks+params.CooldownMargin))

	drain := func(k testutil.Key) *core.SignedTx {
		h := e.height()
		raws, err := e.l.UnspentOutputsFor(ctx, crypto.AddressOf(game.GameContract))
		require.NoError(t, err)
		gb, err := box.Decode(raws[0])
		require.NoError(t, err)
		in := rules.NewIntent(core.ActionDrainStake, h)
		require.NoError(t, in.UseGame(gb))
		require.NoError(t, rules.Prepare(in, params))
		require.NoError(t, rules.Check(in, params))
		tx, err := assembler.New(params).Build(in, e.funds(k), k.P2PK())
		require.NoError(t, err)
		return sign(t, k, tx)
	}
	first, second := drain(alice), drain(bob)

	_, err = e.l.Submit(ctx, first)
	require.NoError(t, err)
	_, err = e.l.Submit(ctx, second)
	require.True(t, errors.Is(err, ledger.ErrDoubleSpend))
	e.produce(1)
	_, err = e.l.Submit(ctx, second)
	require.ErrorIs(t, err, ledger.ErrDoubleSpend)

	raws, err := e.l.UnspentOutputsFor(ctx, crypto.AddressOf(game.GameContract))
	require.NoError(t, err)
	g, err := game.DecodeGameRaw(raws[0])
	require.NoError(t, err)
	require.Equal(t, game.StatusCancelledDraining, g.Status)
	require.Equal(t, uint64(8_000_000), g.Value)
}

func TestReopenKeepsState(t *testing.T) {
	alice, bob := testutil.NewKey(t), testutil.NewKey(t)
	db := storage.NewMemDB()
	proposer := testutil.NewKey(t)
	opts := ledger.Options{DB: db, Params: params, Proposer: proposer.Priv, Alloc: map[string]uint64{alice.Pub.Hex(): 5_000_000}}
	l, err := ledger.New(opts)
	require.NoError(t, err)
	raws, err := l.UnspentOutputsFor(context.Background(), alice.Pub.Address())
	require.NoError(t, err)
	in, err := box.Decode(raws[0])
	require.NoError(t, err)
	_, err = l.Submit(context.Background(), sign(t, alice, transfer(t, alice, in, bob, 1_000_000)))
	require.NoError(t, err)
	_, err = l.ProduceBlock()
	require.NoError(t, err)

	reopened, err := ledger.New(opts)
	require.NoError(t, err)
	h, err := reopened.CurrentHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), h)
	got, err := reopened.UnspentOutputsFor(context.Background(), bob.Pub.Address())
	require.NoError(t, err)
	require.Len(t, got, 1)
}

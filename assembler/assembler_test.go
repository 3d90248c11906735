package assembler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/internal/testutil"
	"github.com/tolelom/tolgame/rules"
)

var params = game.DefaultParams()

func drainIntent(t *testing.T, stake uint64) *rules.Intent {
	t.Helper()
	creator := testutil.NewKey(t)
	g := testutil.Draining(creator, creator.P2PK(), stake, 100)
	in := rules.NewIntent(core.ActionDrainStake, 100)
	require.NoError(t, in.UseGame(testutil.GameBox(t, g)))
	require.NoError(t, rules.Prepare(in, params))
	require.NoError(t, rules.Check(in, params))
	return in
}

func TestBuildOrdersInputsAndOutputs(t *testing.T) {
	payer := testutil.NewKey(t)
	in := drainIntent(t, 1_000_000_000)
	f1, f2, f3 := payer.Wallet(600_000), payer.Wallet(600_000), payer.Wallet(600_000)

	tx, err := New(params).Build(in, []*box.Box{f1, f2, f3}, payer.P2PK())
	require.NoError(t, err)

	require.Equal(t, []*box.Box{in.GameBox, f1, f2}, tx.Inputs, "subject first, then just enough funding")
	require.Len(t, tx.Outputs, 3)
	require.Equal(t, payer.P2PK(), tx.Outputs[2].Proposition)
	require.EqualValues(t, 100_000, tx.Outputs[2].Value)
	require.Equal(t, params.MinFee, tx.Fee)

	in0, err := core.SumValues(tx.Inputs)
	require.NoError(t, err)
	out, err := core.SumValues(tx.Outputs)
	require.NoError(t, err)
	require.Equal(t, in0, out+tx.Fee)
}

func TestBuildExactFundingOmitsChange(t *testing.T) {
	payer := testutil.NewKey(t)
	in := drainIntent(t, 1_000_000_000)
	tx, err := New(params).Build(in, []*box.Box{payer.Wallet(params.MinFee)}, payer.P2PK())
	require.NoError(t, err)
	require.Len(t, tx.Outputs, 2)
}

func TestBuildCarriesFundingTokensToChange(t *testing.T) {
	payer := testutil.NewKey(t)
	in := drainIntent(t, 1_000_000_000)
	tok := box.Token{ID: testutil.NextID(), Amount: 7}
	tx, err := New(params).Build(in, []*box.Box{payer.Wallet(params.MinFee, tok)}, payer.P2PK())
	require.NoError(t, err)
	require.Len(t, tx.Outputs, 3)
	require.Zero(t, tx.Outputs[2].Value)
	require.Equal(t, []box.Token{tok}, tx.Outputs[2].Tokens)
}

func TestBuildFundsErrors(t *testing.T) {
	payer := testutil.NewKey(t)

	_, err := New(params).Build(drainIntent(t, 1_000), nil, payer.P2PK())
	require.ErrorIs(t, err, core.ErrNoSpendableInputs)
	var fe *core.FundsError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, params.MinFee, fe.Need-fe.Have)

	_, err = New(params).Build(drainIntent(t, 1_000), []*box.Box{payer.Wallet(10)}, payer.P2PK())
	require.ErrorIs(t, err, core.ErrInsufficientFunds)
}

func TestBuildSkipsProtocolFunding(t *testing.T) {
	payer := testutil.NewKey(t)
	in := drainIntent(t, 1_000)
	other := testutil.GameBox(t, testutil.NewActive(payer, 50_000_000, testutil.DefaultTerms))
	_, err := New(params).Build(in, []*box.Box{other, in.GameBox}, payer.P2PK())
	require.ErrorIs(t, err, core.ErrNoSpendableInputs)
}

func TestBuildCreateMintsFromFirstFunding(t *testing.T) {
	creator := testutil.NewKey(t)
	small, big := creator.Wallet(1), creator.Wallet(10_000_000_000)
	g := testutil.NewActive(creator, 1_000_000_000, testutil.DefaultTerms)
	g.NFTID = small.ID
	in := rules.NewIntent(core.ActionCreateGame, 10)
	in.NewGame = g
	require.NoError(t, rules.Prepare(in, params))

	tx, err := New(params).Build(in, []*box.Box{small, big}, creator.P2PK())
	require.NoError(t, err)
	require.Equal(t, small.ID, tx.Inputs[0].ID)
	require.Equal(t, []box.Token{{ID: small.ID, Amount: 1}}, tx.Outputs[0].Tokens)
	require.NoError(t, rules.Verify(tx, 10, params))

	_, err = New(params).Build(rules.NewIntent(core.ActionCreateGame, 10), nil, creator.P2PK())
	require.ErrorIs(t, err, core.ErrNoSpendableInputs)
}

func TestBuildRejectsContractChange(t *testing.T) {
	payer := testutil.NewKey(t)
	in := drainIntent(t, 1_000)
	_, err := New(params).Build(in, []*box.Box{payer.Wallet(5_000_000)}, game.GameContract)
	require.Error(t, err)
}

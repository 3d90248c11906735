package rules_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolgame/assembler"
	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/internal/testutil"
	"github.com/tolelom/tolgame/rules"
)

var params = game.DefaultParams()

func requireViolation(t *testing.T, err error, pred core.Predicate) {
	t.Helper()
	v, ok := core.IsRuleViolation(err)
	require.True(t, ok, "expected rule violation %s, got %v", pred, err)
	require.Equal(t, pred, v.Predicate, v.Error())
}

// intent builds a prepared intent for kind over the given game and
// participation boxes.
func intent(t *testing.T, kind core.ActionKind, height int64, gameBox *box.Box, parts ...*box.Box) *rules.Intent {
	t.Helper()
	in := rules.NewIntent(kind, height)
	if gameBox != nil {
		require.NoError(t, in.UseGame(gameBox))
	}
	for _, p := range parts {
		require.NoError(t, in.UseParticipation(p))
	}
	return in
}

func prepareAndCheck(in *rules.Intent) error {
	if err := rules.Prepare(in, params); err != nil {
		return err
	}
	return rules.Check(in, params)
}

// buildAndVerify checks, assembles and verifies in, returning the
// transaction.
func buildAndVerify(t *testing.T, in *rules.Intent, payer testutil.Key, funding ...*box.Box) *core.UnsignedTx {
	t.Helper()
	require.NoError(t, prepareAndCheck(in))
	tx, err := assembler.New(params).Build(in, funding, payer.P2PK())
	require.NoError(t, err)
	require.NoError(t, rules.Verify(tx, in.Height, params))

	in0, err := core.SumValues(tx.Inputs)
	require.NoError(t, err)
	out, err := core.SumValues(tx.Outputs)
	require.NoError(t, err)
	require.Equal(t, in0, out+tx.Fee, "value must be conserved")
	return tx
}

func TestCreateGame(t *testing.T) {
	creator := testutil.NewKey(t)
	funding := creator.Wallet(5_000_000_000)

	newGame := func() *rules.Intent {
		g := testutil.NewActive(creator, 2_000_000_000, testutil.DefaultTerms)
		g.NFTID = funding.ID
		in := rules.NewIntent(core.ActionCreateGame, 100)
		in.NewGame = g
		in.FirstInputID = funding.ID
		return in
	}

	tx := buildAndVerify(t, newGame(), creator, funding)
	require.Equal(t, funding.ID, tx.Inputs[0].ID)
	require.Equal(t, uint64(1), tx.Outputs[0].TokenAmount(funding.ID))

	in := newGame()
	in.Height = 1000
	requireViolation(t, prepareAndCheck(in), core.PredDeadlineFuture)

	in = newGame()
	in.NewGame.Active.CreatorStake++
	requireViolation(t, prepareAndCheck(in), core.PredStakeMatchesValue)

	in = newGame()
	in.NewGame.NFTID = testutil.NextID()
	requireViolation(t, prepareAndCheck(in), core.PredNFTMint)

	in = newGame()
	in.NewGame.Active.Terms.CreatorBps = 9_800
	in.NewGame.Active.InvitedJudges = [][]byte{game.JudgeKeyHash(testutil.NewKey(t).Pub)}
	requireViolation(t, prepareAndCheck(in), core.PredCommissionBounds)

	// Four judges at 2^62 bps each wrap the int64 total to zero.
	in = newGame()
	in.NewGame.Active.Terms.PerJudgeBps = 1 << 62
	for i := 0; i < 4; i++ {
		in.NewGame.Active.InvitedJudges = append(in.NewGame.Active.InvitedJudges, game.JudgeKeyHash(testutil.NewKey(t).Pub))
	}
	requireViolation(t, prepareAndCheck(in), core.PredCommissionBounds)
}

func TestCreateGameMintsOnlyFromFirstInput(t *testing.T) {
	creator := testutil.NewKey(t)
	funding := creator.Wallet(5_000_000_000)
	g := testutil.NewActive(creator, 1_000, testutil.DefaultTerms)
	g.NFTID = funding.ID
	in := rules.NewIntent(core.ActionCreateGame, 100)
	in.NewGame = g
	tx := buildAndVerify(t, in, creator, funding)

	tx.Outputs[1].Tokens = []box.Token{{ID: funding.ID, Amount: 1}}
	requireViolation(t, rules.Verify(tx, 100, params), core.PredTokenConservation)
}

func TestSubmitParticipation(t *testing.T) {
	creator, player := testutil.NewKey(t), testutil.NewKey(t)
	g := testutil.NewActive(creator, 1_000_000_000, testutil.DefaultTerms)
	gb := testutil.GameBox(t, g)

	submit := func(height int64) *rules.Intent {
		in := intent(t, core.ActionSubmitParticipation, height, gb)
		in.NewParticipation = &game.Participation{
			Value:            uint64(g.Active.Terms.ParticipationFee),
			Status:           game.ParticipationSubmitted,
			PlayerPubKey:     player.Pub,
			GameNFTID:        g.NFTID,
			Commitment:       []byte("answer"),
			ParticipationFee: g.Active.Terms.ParticipationFee,
		}
		return in
	}

	tx := buildAndVerify(t, submit(500), player, player.Wallet(50_000_000))
	require.Equal(t, []*box.Box{gb}, tx.DataInputs)
	require.Equal(t, uint64(10_000_000), tx.Outputs[0].Value)

	requireViolation(t, prepareAndCheck(submit(1000)), core.PredBeforeDeadline)

	in := submit(500)
	in.NewParticipation.Value++
	requireViolation(t, prepareAndCheck(in), core.PredParticipationValue)

	in = submit(500)
	in.NewParticipation.GameNFTID = testutil.NextID()
	requireViolation(t, prepareAndCheck(in), core.PredGameRef)

	in = submit(500)
	in.NewParticipation.PlayerPubKey = []byte{1, 2, 3}
	requireViolation(t, prepareAndCheck(in), core.PredPlayerKey)

	in = submit(500)
	in.NewParticipation.SubmissionHeight = 600
	requireViolation(t, prepareAndCheck(in), core.PredSubmissionHeight)

	cancelled := testutil.Draining(creator, creator.P2PK(), 10, 0)
	in = intent(t, core.ActionSubmitParticipation, 500, testutil.GameBox(t, cancelled))
	in.NewParticipation = submit(500).NewParticipation
	requireViolation(t, prepareAndCheck(in), core.PredDataInput)
}

func TestSplitPool(t *testing.T) {
	terms := game.Terms{PerJudgeBps: 500, CreatorBps: 1000}

	s, err := rules.SplitPool(1_000_000_000, terms, 1, false)
	require.NoError(t, err)
	require.Equal(t, rules.Split{Judge: 50_000_000, Creator: 950_000_000}, s)

	s, err = rules.SplitPool(1_000_000_000, terms, 1, true)
	require.NoError(t, err)
	require.Equal(t, rules.Split{Judge: 50_000_000, Winner: 850_000_000, Creator: 100_000_000}, s)

	// Truncation leftovers go to the creator.
	s, err = rules.SplitPool(999, game.Terms{PerJudgeBps: 3333}, 3, true)
	require.NoError(t, err)
	require.EqualValues(t, 332, s.Judge)
	require.EqualValues(t, 0, s.Winner)
	require.EqualValues(t, 3, s.Creator)
	require.Equal(t, uint64(999), 3*s.Judge+s.Winner+s.Creator)

	_, err = rules.SplitPool(1, game.Terms{PerJudgeBps: 5000, CreatorBps: 1}, 2, false)
	require.Error(t, err)

	_, err = rules.SplitPool(1_000, game.Terms{PerJudgeBps: 1 << 62}, 4, true)
	require.Error(t, err)
	_, err = rules.SplitPool(1_000, game.Terms{CreatorBps: game.BpsDenominator + 1}, 0, false)
	require.Error(t, err)
}

func resolveFixture(t *testing.T, fee int64, players int, judges ...testutil.Key) (testutil.Key, *game.Game, *box.Box, []*box.Box) {
	creator := testutil.NewKey(t)
	terms := testutil.DefaultTerms
	terms.ParticipationFee = fee
	g := testutil.NewActive(creator, 2_000_000_000, terms, judges...)
	gb := testutil.GameBox(t, g)
	var parts []*box.Box
	for i := 0; i < players; i++ {
		parts = append(parts, testutil.ParticipationBox(t, g, testutil.NewKey(t), 10))
	}
	return creator, g, gb, parts
}

func TestResolveCommissionSplit(t *testing.T) {
	judge := testutil.NewKey(t)
	creator, g, gb, parts := resolveFixture(t, 1_000_000_000, 1, judge)

	in := intent(t, core.ActionResolveGame, 1000, gb, parts...)
	in.Secret = testutil.Secret
	in.JudgePubKeys = [][]byte{judge.Pub}
	tx := buildAndVerify(t, in, creator, creator.Wallet(10_000_000))

	require.Equal(t, gb.ID, tx.Inputs[0].ID)
	require.Equal(t, parts[0].ID, tx.Inputs[1].ID)

	succ, err := game.DecodeGame(tx.Outputs[0])
	require.NoError(t, err)
	require.Equal(t, game.StatusResolved, succ.Status)
	require.Equal(t, g.NFTID, succ.NFTID)
	require.Equal(t, g.Value, succ.Value)
	require.Equal(t, testutil.Secret, succ.Resolution.RevealedSecret)

	require.Equal(t, judge.P2PK(), tx.Outputs[1].Proposition)
	require.EqualValues(t, 50_000_000, tx.Outputs[1].Value)
	require.Equal(t, creator.P2PK(), tx.Outputs[2].Proposition)
	require.EqualValues(t, 950_000_000, tx.Outputs[2].Value)
}

func TestResolveWithWinner(t *testing.T) {
	creator, g, gb, parts := resolveFixture(t, 1_000_000, 3)
	in := intent(t, core.ActionResolveGame, 1200, gb, parts...)
	in.Secret = testutil.Secret
	in.Winner = 1
	tx := buildAndVerify(t, in, creator, creator.Wallet(10_000_000))

	prize, err := game.DecodeParticipation(tx.Outputs[1])
	require.NoError(t, err)
	require.Equal(t, game.ParticipationResolved, prize.Status)
	require.Equal(t, in.Participations[1].PlayerPubKey, prize.PlayerPubKey)
	require.EqualValues(t, 2_700_000, prize.Value)
	require.Equal(t, g.NFTID, prize.GameNFTID)
	require.EqualValues(t, 300_000, tx.Outputs[2].Value)

	// Redirecting the creator's cut to the winner breaks the split.
	tx.Outputs[1].Value += 300_000
	tx.Outputs = append(tx.Outputs[:2], tx.Outputs[3:]...)
	err = rules.Verify(tx, 1200, params)
	require.Error(t, err)
}

func TestResolvePredicates(t *testing.T) {
	judge, stranger := testutil.NewKey(t), testutil.NewKey(t)
	_, _, gb, parts := resolveFixture(t, 1_000_000, 2, judge)

	resolve := func(height int64) *rules.Intent {
		in := intent(t, core.ActionResolveGame, height, gb, parts...)
		in.Secret = testutil.Secret
		return in
	}

	in := resolve(1000)
	in.Secret = []byte("wrong")
	requireViolation(t, prepareAndCheck(in), core.PredSecretPreimage)

	requireViolation(t, prepareAndCheck(resolve(999)), core.PredAfterDeadline)
	require.NoError(t, prepareAndCheck(resolve(1720)))
	requireViolation(t, prepareAndCheck(resolve(1721)), core.PredWithinGrace)

	in = resolve(1000)
	in.JudgePubKeys = [][]byte{stranger.Pub}
	requireViolation(t, prepareAndCheck(in), core.PredJudgeInvited)

	in = resolve(1000)
	in.JudgePubKeys = [][]byte{judge.Pub, judge.Pub}
	requireViolation(t, prepareAndCheck(in), core.PredJudgeInvited)

	in = resolve(1000)
	in.Winner = 2
	requireViolation(t, prepareAndCheck(in), core.PredWinner)

	other := testutil.NewActive(testutil.NewKey(t), 10, testutil.DefaultTerms)
	in = resolve(1000)
	require.NoError(t, in.UseParticipation(testutil.ParticipationBox(t, other, stranger, 1)))
	requireViolation(t, prepareAndCheck(in), core.PredGameRef)
}

func TestCancelGame(t *testing.T) {
	creator, leaker := testutil.NewKey(t), testutil.NewKey(t)
	g := testutil.NewActive(creator, 10_000_000_000, testutil.DefaultTerms)
	gb := testutil.GameBox(t, g)

	in := intent(t, core.ActionCancelGame, 500, gb)
	in.Secret = testutil.Secret
	in.PayoutTo = leaker.P2PK()
	tx := buildAndVerify(t, in, leaker, leaker.Wallet(5_000_000))

	succ, err := game.DecodeGame(tx.Outputs[0])
	require.NoError(t, err)
	require.Equal(t, game.StatusCancelledDraining, succ.Status)
	require.Equal(t, g.Value, succ.Value)
	require.Equal(t, int64(540), succ.Cancellation.UnlockHeight)
	require.Equal(t, leaker.P2PK(), succ.Cancellation.ResolverPubKeyOrTree)
	require.Equal(t, uint64(1), tx.Outputs[0].TokenAmount(g.NFTID))

	in = intent(t, core.ActionCancelGame, 500, gb)
	in.PayoutTo = leaker.P2PK()
	requireViolation(t, prepareAndCheck(in), core.PredCancelCondition)

	in = intent(t, core.ActionCancelGame, 1000, gb)
	in.Secret = testutil.Secret
	in.PayoutTo = leaker.P2PK()
	requireViolation(t, prepareAndCheck(in), core.PredCancelCondition)

	in = intent(t, core.ActionCancelGame, 1720, gb)
	in.PayoutTo = leaker.P2PK()
	require.NoError(t, prepareAndCheck(in))

	in = intent(t, core.ActionCancelGame, 500, gb)
	in.Secret = testutil.Secret
	in.PayoutTo = leaker.P2PK()
	in.UnlockHeight = 510
	requireViolation(t, prepareAndCheck(in), core.PredUnlockMonotonic)
}

func TestDrainArithmetic(t *testing.T) {
	creator, drainer := testutil.NewKey(t), testutil.NewKey(t)
	target := testutil.NewKey(t).P2PK()
	g := testutil.Draining(creator, target, 10_000_000_000, 100)

	in := intent(t, core.ActionDrainStake, 100, testutil.GameBox(t, g))
	tx := buildAndVerify(t, in, drainer, drainer.Wallet(5_000_000))

	succ, err := game.DecodeGame(tx.Outputs[0])
	require.NoError(t, err)
	require.EqualValues(t, 8_000_000_000, succ.Value)
	require.EqualValues(t, 8_000_000_000, succ.Cancellation.ResolverStakeAmount)
	require.Equal(t, int64(140), succ.Cancellation.UnlockHeight)
	require.Equal(t, target, tx.Outputs[1].Proposition)
	require.EqualValues(t, 2_000_000_000, tx.Outputs[1].Value)
}

func TestDrainConvergesMonotonically(t *testing.T) {
	creator, drainer := testutil.NewKey(t), testutil.NewKey(t)
	target := testutil.NewKey(t).P2PK()
	current := testutil.GameBox(t, testutil.Draining(creator, target, 10_000_000_000, 100))

	height := int64(100)
	for steps := 0; ; steps++ {
		require.Less(t, steps, 200, "draining must terminate")
		prev, err := game.DecodeGame(current)
		require.NoError(t, err)
		if prev.Status == game.StatusCancelledFinalized {
			require.Zero(t, prev.Value)
			break
		}
		height = prev.Cancellation.UnlockHeight
		in := intent(t, core.ActionDrainStake, height, current)
		tx := buildAndVerify(t, in, drainer, drainer.Wallet(5_000_000))

		next := tx.Outputs[0]
		next.ID = testutil.NextID()
		succ, err := game.DecodeGame(next)
		require.NoError(t, err)
		require.Greater(t, succ.Cancellation.UnlockHeight, prev.Cancellation.UnlockHeight)
		require.Less(t, succ.Value, prev.Value)
		current = next
	}
}

func TestDrainPredicates(t *testing.T) {
	creator := testutil.NewKey(t)
	g := testutil.Draining(creator, creator.P2PK(), 1_000, 100)
	gb := testutil.GameBox(t, g)

	requireViolation(t, prepareAndCheck(intent(t, core.ActionDrainStake, 99, gb)), core.PredUnlockReached)

	in := intent(t, core.ActionDrainStake, 100, gb)
	in.UnlockHeight = 100
	requireViolation(t, prepareAndCheck(in), core.PredUnlockMonotonic)

	in = intent(t, core.ActionDrainStake, 200, gb)
	in.UnlockHeight = 220
	requireViolation(t, prepareAndCheck(in), core.PredUnlockMonotonic)

	active := testutil.GameBox(t, testutil.NewActive(creator, 10, testutil.DefaultTerms))
	requireViolation(t, prepareAndCheck(intent(t, core.ActionDrainStake, 100, active)), core.PredSubjectStatus)
}

func TestDrainRejectsRedirectedPayout(t *testing.T) {
	creator, thief := testutil.NewKey(t), testutil.NewKey(t)
	g := testutil.Draining(creator, creator.P2PK(), 1_000_000_000, 100)
	in := intent(t, core.ActionDrainStake, 100, testutil.GameBox(t, g))
	tx := buildAndVerify(t, in, thief, thief.Wallet(5_000_000))

	tx.Outputs[1].Proposition = thief.P2PK()
	requireViolation(t, rules.Verify(tx, 100, params), core.PredPayoutRecipient)
}

// setSuccessorUnlock rewrites the unlock height carried by the successor
// game box of tx.
func setSuccessorUnlock(t *testing.T, tx *core.UnsignedTx, unlock int64) {
	t.Helper()
	succ, err := game.DecodeGame(tx.Outputs[0])
	require.NoError(t, err)
	succ.Cancellation.UnlockHeight = unlock
	b, err := game.EncodeGame(succ)
	require.NoError(t, err)
	tx.Outputs[0] = b
}

func TestDrainRejectsInflatedUnlock(t *testing.T) {
	creator, stranger := testutil.NewKey(t), testutil.NewKey(t)
	g := testutil.Draining(creator, creator.P2PK(), 10_000_000_000, 500)
	gb := testutil.GameBox(t, g)

	in := intent(t, core.ActionDrainStake, 600, gb)
	in.UnlockHeight = math.MaxInt64 / 2
	requireViolation(t, prepareAndCheck(in), core.PredUnlockMonotonic)

	in = intent(t, core.ActionDrainStake, 600, gb)
	in.UnlockHeight = 600 + params.CooldownBlocks + params.CooldownMargin + 1
	requireViolation(t, prepareAndCheck(in), core.PredUnlockMonotonic)

	tx := buildAndVerify(t, intent(t, core.ActionDrainStake, 600, gb), stranger, stranger.Wallet(5_000_000))
	require.NoError(t, rules.Verify(tx, 601, params))
	setSuccessorUnlock(t, tx, math.MaxInt64/2)
	requireViolation(t, rules.Verify(tx, 601, params), core.PredUnlockMonotonic)
}

func TestCancelRejectsInflatedUnlock(t *testing.T) {
	creator, leaker := testutil.NewKey(t), testutil.NewKey(t)
	gb := testutil.GameBox(t, testutil.NewActive(creator, 10_000_000_000, testutil.DefaultTerms))

	in := intent(t, core.ActionCancelGame, 500, gb)
	in.Secret = testutil.Secret
	in.PayoutTo = leaker.P2PK()
	in.UnlockHeight = 500 + params.CooldownBlocks + params.CooldownMargin + 1
	requireViolation(t, prepareAndCheck(in), core.PredUnlockMonotonic)

	in = intent(t, core.ActionCancelGame, 500, gb)
	in.Secret = testutil.Secret
	in.PayoutTo = leaker.P2PK()
	tx := buildAndVerify(t, in, leaker, leaker.Wallet(5_000_000))
	require.NoError(t, rules.Verify(tx, 501, params))
	setSuccessorUnlock(t, tx, math.MaxInt64/2)
	requireViolation(t, rules.Verify(tx, 501, params), core.PredUnlockMonotonic)
}

func TestRefundAfterCancellation(t *testing.T) {
	creator, player, other := testutil.NewKey(t), testutil.NewKey(t), testutil.NewKey(t)
	active := testutil.NewActive(creator, 10, testutil.DefaultTerms)
	pb := testutil.ParticipationBox(t, active, player, 10)

	cancelled := testutil.Draining(creator, creator.P2PK(), 10, 0)
	cancelled.NFTID = active.NFTID
	cb := testutil.GameBox(t, cancelled)

	in := intent(t, core.ActionRefund, 500, cb, pb)
	tx := buildAndVerify(t, in, player)
	require.Len(t, tx.Outputs, 1)
	require.Equal(t, crypto.P2PK(player.Pub), tx.Outputs[0].Proposition)
	require.Equal(t, pb.Value-params.MinFee, tx.Outputs[0].Value)
	require.Equal(t, []*box.Box{pb}, tx.Inputs)

	in = intent(t, core.ActionRefund, 500, cb, pb)
	in.Recipient = other.P2PK()
	requireViolation(t, prepareAndCheck(in), core.PredRefundRecipient)

	in = intent(t, core.ActionRefund, 500, testutil.GameBox(t, active), pb)
	requireViolation(t, prepareAndCheck(in), core.PredDataInput)

	tx.Outputs[0].Proposition = other.P2PK()
	requireViolation(t, rules.Verify(tx, 500, params), core.PredRefundRecipient)
}

func TestReclaimAfterGrace(t *testing.T) {
	creator, player := testutil.NewKey(t), testutil.NewKey(t)
	g := testutil.NewActive(creator, 10, testutil.DefaultTerms)
	gb := testutil.GameBox(t, g)
	pb := testutil.ParticipationBox(t, g, player, 10)

	requireViolation(t, prepareAndCheck(intent(t, core.ActionReclaimAfterGrace, 1719, gb, pb)), core.PredGraceElapsed)

	tx := buildAndVerify(t, intent(t, core.ActionReclaimAfterGrace, 1720, gb, pb), player)
	require.Equal(t, []*box.Box{pb}, tx.Inputs)
	require.Len(t, tx.Outputs, 1)
	require.Equal(t, player.P2PK(), tx.Outputs[0].Proposition)

	in := intent(t, core.ActionReclaimAfterGrace, 1720, gb, pb)
	in.Recipient = creator.P2PK()
	requireViolation(t, prepareAndCheck(in), core.PredPayoutRecipient)
}

func TestReclaimAbandoned(t *testing.T) {
	creator, player := testutil.NewKey(t), testutil.NewKey(t)
	g := testutil.Resolved(creator, 10, 1000)
	gb := testutil.GameBox(t, g)
	pb := testutil.ParticipationBox(t, g, player, 10)
	end := 1000 + params.AbandonmentWindow

	requireViolation(t, prepareAndCheck(intent(t, core.ActionReclaimAbandoned, end-1, gb, pb)), core.PredAbandonmentElapsed)

	tx := buildAndVerify(t, intent(t, core.ActionReclaimAbandoned, end, gb, pb), creator)
	require.Equal(t, creator.P2PK(), tx.Outputs[0].Proposition)

	in := intent(t, core.ActionReclaimAbandoned, end, gb, pb)
	in.Recipient = player.P2PK()
	requireViolation(t, prepareAndCheck(in), core.PredPayoutRecipient)
}

func TestClaimPrizeAndCloseResolved(t *testing.T) {
	creator, player := testutil.NewKey(t), testutil.NewKey(t)
	g := testutil.Resolved(creator, 500_000_000, 1000)
	prize, err := game.EncodeParticipation(&game.Participation{
		BoxID: testutil.NextID(), Value: 2_700_000, Status: game.ParticipationResolved,
		PlayerPubKey: player.Pub, GameNFTID: g.NFTID, ResolvedHeight: 1000, Prize: 2_700_000,
	})
	require.NoError(t, err)

	tx := buildAndVerify(t, intent(t, core.ActionClaimPrize, 1001, nil, prize), player)
	require.Equal(t, player.P2PK(), tx.Outputs[0].Proposition)
	require.EqualValues(t, 1_600_000, tx.Outputs[0].Value)

	gb := testutil.GameBox(t, g)
	end := 1000 + params.AbandonmentWindow
	requireViolation(t, prepareAndCheck(intent(t, core.ActionCloseResolved, end-1, gb)), core.PredAbandonmentElapsed)
	tx = buildAndVerify(t, intent(t, core.ActionCloseResolved, end, gb), creator)
	require.Len(t, tx.Outputs, 1)
	require.Empty(t, tx.Outputs[0].Tokens, "nft is burned")
	require.Equal(t, g.Value-params.MinFee, tx.Outputs[0].Value)
}

func TestSelfFundedPayoutMustCoverFee(t *testing.T) {
	creator, player := testutil.NewKey(t), testutil.NewKey(t)
	terms := testutil.DefaultTerms
	terms.ParticipationFee = int64(params.MinFee)
	g := testutil.NewActive(creator, 10, terms)
	in := intent(t, core.ActionReclaimAfterGrace, 2000, testutil.GameBox(t, g), testutil.ParticipationBox(t, g, player, 1))
	require.NoError(t, prepareAndCheck(in))
	_, err := assembler.New(params).Build(in, nil, player.P2PK())
	require.ErrorIs(t, err, core.ErrInsufficientFunds)
}

func TestVerifyRejectsForeignProtocolInput(t *testing.T) {
	creator := testutil.NewKey(t)
	target := testutil.NewKey(t).P2PK()
	g := testutil.Draining(creator, target, 1_000_000_000, 100)
	in := intent(t, core.ActionDrainStake, 100, testutil.GameBox(t, g))
	tx := buildAndVerify(t, in, creator, creator.Wallet(5_000_000))

	victim := testutil.GameBox(t, testutil.NewActive(testutil.NewKey(t), 7_000_000, testutil.DefaultTerms))
	tx.Inputs = append(tx.Inputs, victim)
	tx.Outputs[len(tx.Outputs)-1].Value += victim.Value
	requireViolation(t, rules.Verify(tx, 100, params), core.PredInputShape)
}

func TestVerifyConservationAndFee(t *testing.T) {
	creator := testutil.NewKey(t)
	g := testutil.Draining(creator, creator.P2PK(), 1_000_000_000, 100)
	in := intent(t, core.ActionDrainStake, 100, testutil.GameBox(t, g))
	tx := buildAndVerify(t, in, creator, creator.Wallet(5_000_000))

	tx.Outputs[len(tx.Outputs)-1].Value++
	requireViolation(t, rules.Verify(tx, 100, params), core.PredValueConservation)

	tx.Outputs[len(tx.Outputs)-1].Value--
	tx.Fee = 1
	requireViolation(t, rules.Verify(tx, 100, params), core.PredFee)
}

func TestUnknownAction(t *testing.T) {
	in := rules.NewIntent("steal", 1)
	requireViolation(t, rules.Check(in, params), core.PredUnknownAction)
}

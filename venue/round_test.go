package venue

import (
	"context"
	"errors"
	"testing"

	"github.com/gridmarket/lem/order"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type mockWallet struct {
	revenue decimal.Decimal
	payment decimal.Decimal
	sold    decimal.Decimal
	bought  decimal.Decimal
}

func (w *mockWallet) SettleRevenue(quantity, amount decimal.Decimal) error {
	w.sold = w.sold.Add(quantity)
	w.revenue = w.revenue.Add(amount)
	return nil
}

func (w *mockWallet) SettlePayment(quantity, amount decimal.Decimal) error {
	w.bought = w.bought.Add(quantity)
	w.payment = w.payment.Add(amount)
	return nil
}

type mockSettler struct {
	wallets  map[order.ParticipantID]*mockWallet
	surplus  decimal.Decimal
	checkErr error
}

func newMockSettler() *mockSettler {
	return &mockSettler{
		wallets: make(map[order.ParticipantID]*mockWallet),
	}
}

func (s *mockSettler) CheckSettlement(*matching.SettlementReport) error {
	return s.checkErr
}

func (s *mockSettler) Wallet(id order.ParticipantID) (Wallet, error) {
	w, ok := s.wallets[id]
	if !ok {
		w = &mockWallet{}
		s.wallets[id] = w
	}

	return w, nil
}

func (s *mockSettler) SweepSurplus(amount decimal.Decimal) error {
	s.surplus = s.surplus.Add(amount)
	return nil
}

type mockStorer struct {
	outcomes []*RoundOutcome
}

func (s *mockStorer) StoreRound(_ context.Context, o *RoundOutcome) error {
	s.outcomes = append(s.outcomes, o)
	return nil
}

func bid(price, qty int64, id string) order.Order {
	return order.NewBid(
		decimal.NewFromInt(price), decimal.NewFromInt(qty),
		order.ParticipantID(id),
	)
}

func offer(price, qty int64, id string) order.Order {
	return order.NewOffer(
		decimal.NewFromInt(price), decimal.NewFromInt(qty),
		order.ParticipantID(id),
	)
}

func newTestExecutor(t *testing.T, rule matching.PricingRule) (*RoundExecutor,
	*mockSettler, *mockStorer) {

	t.Helper()

	cfg := matching.DefaultConfig()
	cfg.Rule = rule
	engine, err := matching.NewEngine(cfg)
	require.NoError(t, err)

	settler := newMockSettler()
	storer := &mockStorer{}
	executor := NewRoundExecutor(&ExecutorConfig{
		Engine:      engine,
		Settler:     settler,
		RoundStorer: storer,
	})

	return executor, settler, storer
}

func requireDec(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()

	require.Truef(
		t, decimal.RequireFromString(expected).Equal(actual),
		"expected %v, got %v", expected, actual,
	)
}

var (
	partialBids = []order.Order{
		bid(54, 1, "A"), bid(53, 2, "B"), bid(38, 2, "C"),
	}
	partialOffers = []order.Order{
		offer(39, 6, "X"), offer(51, 1, "Y"),
	}
)

// TestRoundStateTransitions makes sure only the documented transitions are
// allowed.
func TestRoundStateTransitions(t *testing.T) {
	t.Parallel()

	require.True(t, RoundIdle.CanTransitionTo(OrdersCollected))
	require.True(t, RoundClassified.CanTransitionTo(RoundPriced))
	require.True(t, RoundClassified.CanTransitionTo(RoundSettled))
	require.True(t, RoundSettled.CanTransitionTo(RoundIdle))

	require.False(t, RoundIdle.CanTransitionTo(RoundPriced))
	require.False(t, OrdersSorted.CanTransitionTo(RoundPriced))
	require.False(t, RoundPriced.CanTransitionTo(RoundIdle))
	require.False(t, RoundState(99).CanTransitionTo(RoundIdle))

	require.Equal(t, "Classified", RoundClassified.String())
	require.Equal(t, "<unknown_state=99>", RoundState(99).String())
}

// TestExecutePartialRound drives a partially executing round through the
// whole state machine and makes sure all wallets are settled.
func TestExecutePartialRound(t *testing.T) {
	t.Parallel()

	executor, settler, storer := newTestExecutor(
		t, matching.PayAsClearRule,
	)

	outcome, err := executor.Execute(
		context.Background(), partialBids, partialOffers,
	)
	require.NoError(t, err)

	require.Equal(t, []RoundState{
		RoundIdle, OrdersCollected, OrdersSorted, RoundClassified,
		RoundPriced, RoundSettled, RoundIdle,
	}, outcome.States)
	require.Equal(t, uint64(1), outcome.Sequence)
	require.Equal(t, matching.PartialExecution, outcome.Result.Type)
	requireDec(t, "3", outcome.Result.Quantity)
	requireDec(t, "53", outcome.Result.Price)

	requireDec(t, "1", outcome.NetPositions.Position("A"))
	requireDec(t, "2", outcome.NetPositions.Position("B"))
	requireDec(t, "-3", outcome.NetPositions.Position("X"))
	requireDec(t, "0", outcome.NetPositions.Position("C"))

	requireDec(t, "53", settler.wallets["A"].payment)
	requireDec(t, "106", settler.wallets["B"].payment)
	requireDec(t, "159", settler.wallets["X"].revenue)
	requireDec(t, "3", settler.wallets["X"].sold)
	requireDec(t, "2", settler.wallets["B"].bought)
	require.NotContains(t, settler.wallets, order.ParticipantID("C"))
	requireDec(t, "0", settler.surplus)

	require.Len(t, storer.outcomes, 1)
	require.Equal(t, outcome.ID, storer.outcomes[0].ID)
	require.Equal(t, outcome.States, storer.outcomes[0].States)

	// A second round gets a new ID and sequence number.
	second, err := executor.Execute(
		context.Background(), partialBids, partialOffers,
	)
	require.NoError(t, err)
	require.NotEqual(t, outcome.ID, second.ID)
	require.Equal(t, uint64(2), second.Sequence)
}

// TestExecuteNoTrade makes sure a round in which nothing executes skips the
// pricing state and settles nothing.
func TestExecuteNoTrade(t *testing.T) {
	t.Parallel()

	executor, settler, storer := newTestExecutor(
		t, matching.PayAsClearRule,
	)

	outcome, err := executor.Execute(
		context.Background(), []order.Order{bid(30, 1, "A")},
		[]order.Order{offer(51, 1, "X")},
	)
	require.NoError(t, err)

	require.Equal(t, []RoundState{
		RoundIdle, OrdersCollected, OrdersSorted, RoundClassified,
		RoundSettled, RoundIdle,
	}, outcome.States)
	require.Equal(t, matching.NoExecution, outcome.Result.Type)
	require.Empty(t, outcome.Result.TradePairs)
	require.Empty(t, outcome.NetPositions)
	require.Empty(t, settler.wallets)
	require.Len(t, storer.outcomes, 1)
}

// TestExecuteMcAfeeSurplus makes sure the surplus of an imbalanced McAfee
// round is swept.
func TestExecuteMcAfeeSurplus(t *testing.T) {
	t.Parallel()

	executor, settler, _ := newTestExecutor(t, matching.McAfeeRule)

	outcome, err := executor.Execute(
		context.Background(), partialBids, partialOffers,
	)
	require.NoError(t, err)
	require.False(t, outcome.Result.BudgetBalanced)

	requireDec(t, "53", settler.wallets["A"].payment)
	requireDec(t, "39", settler.wallets["X"].revenue)
	requireDec(t, "14", settler.surplus)
}

// TestExecuteFailures makes sure failing rounds don't settle anything.
func TestExecuteFailures(t *testing.T) {
	t.Parallel()

	// Zero quantity orders are dropped silently, negative ones fail the
	// round before anything else happens.
	executor, settler, storer := newTestExecutor(
		t, matching.PayAsClearRule,
	)
	_, err := executor.Execute(
		context.Background(),
		append([]order.Order{bid(60, 0, "Z")}, partialBids...),
		partialOffers,
	)
	require.NoError(t, err)

	_, err = executor.Execute(
		context.Background(),
		append([]order.Order{bid(60, -1, "Z")}, partialBids...),
		partialOffers,
	)
	require.ErrorIs(t, err, order.ErrNonPositiveQuantity)

	var roundErr *ErrRoundFailed
	require.ErrorAs(t, err, &roundErr)
	require.Equal(t, RoundIdle, roundErr.State)
	require.Len(t, storer.outcomes, 1)

	// A settlement that doesn't pass the check leaves all wallets
	// untouched.
	checkErr := errors.New("insufficient balance")
	executor, settler, storer = newTestExecutor(
		t, matching.PayAsClearRule,
	)
	settler.checkErr = checkErr
	_, err = executor.Execute(
		context.Background(), partialBids, partialOffers,
	)
	require.ErrorIs(t, err, checkErr)
	require.ErrorAs(t, err, &roundErr)
	require.Equal(t, RoundPriced, roundErr.State)
	require.Empty(t, settler.wallets)
	require.Empty(t, storer.outcomes)

	// A canceled context aborts the round before settlement.
	executor, settler, _ = newTestExecutor(t, matching.PayAsClearRule)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = executor.Execute(ctx, partialBids, partialOffers)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, settler.wallets)
}

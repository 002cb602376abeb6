package withdrawsched

import (
	"context"
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

func TestScheduleSufficientThenAlreadyScheduled(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 100})

	req := withdraw("tx1", map[types.AccountID]uint64{x: 50})
	res := schedule(t, s, 0, req)
	require.Equal(t, types.SufficientBalance, res["tx1"])

	res = schedule(t, s, 0, req)
	require.Equal(t, types.AlreadyScheduled, res["tx1"])

	// the duplicate left the reservation untouched
	requireInt(t, 50, s.PendingDebit(x, 0))
}

func TestScheduleInsufficient(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 100})

	res := schedule(t, s, 0, withdraw("tx1", map[types.AccountID]uint64{x: 150}))
	require.Equal(t, types.InsufficientBalance, res["tx1"])
	require.True(t, s.PendingDebit(x, 0).IsZero())
}

func TestScheduleBatchSeesEarlierReservations(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 100})

	res := schedule(t, s, 0,
		withdraw("w1", map[types.AccountID]uint64{x: 50}),
		withdraw("w2", map[types.AccountID]uint64{x: 60}),
	)
	require.Equal(t, types.SufficientBalance, res["w1"])
	require.Equal(t, types.InsufficientBalance, res["w2"])
	requireInt(t, 50, s.PendingDebit(x, 0))

	// exact remainder still fits
	res = schedule(t, s, 0, withdraw("w3", map[types.AccountID]uint64{x: 50}))
	require.Equal(t, types.SufficientBalance, res["w3"])
	requireInt(t, 100, s.PendingDebit(x, 0))
}

func TestScheduleAfterSettlement(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 100})

	res := schedule(t, s, 0, withdraw("tx1", map[types.AccountID]uint64{x: 50}))
	require.Equal(t, types.SufficientBalance, res["tx1"])

	settle(t, s, 1, map[types.AccountID]int64{x: -50})
	requireBalance(t, s, x, 1, 50)
	// the bucket of version 0 is superseded by the settlement
	require.True(t, s.PendingDebit(x, 0).IsZero())

	res = schedule(t, s, 1, withdraw("tx2", map[types.AccountID]uint64{x: 50}))
	require.Equal(t, types.SufficientBalance, res["tx2"])

	res = schedule(t, s, 1, withdraw("tx3", map[types.AccountID]uint64{x: 1}))
	require.Equal(t, types.InsufficientBalance, res["tx3"])
}

func TestSettleOutOfOrder(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 100})

	settle(t, s, 2, map[types.AccountID]int64{x: -80})
	require.Equal(t, uint64(0), s.SettledWatermark())

	settle(t, s, 1, map[types.AccountID]int64{x: -20})
	require.Equal(t, uint64(2), s.SettledWatermark())

	res := schedule(t, s, 1, withdraw("tx1", map[types.AccountID]uint64{x: 80}))
	require.Equal(t, types.SufficientBalance, res["tx1"])

	requireBalance(t, s, x, 1, 80)
	requireBalance(t, s, x, 2, 0)
}

func TestSettleOrderDoesNotChangeBalances(t *testing.T) {
	x, y := testAccount(1), testAccount(2)
	init := map[types.AccountID]int64{x: 100, y: 40}
	steps := []map[types.AccountID]int64{
		{x: -30, y: 10},
		{x: 5},
		{y: -50},
	}

	inOrder := newTestScheduler(t, 0, init)
	for i, changes := range steps {
		settle(t, inOrder, uint64(i+1), changes)
	}

	reversed := newTestScheduler(t, 0, init)
	for i := len(steps) - 1; i >= 0; i-- {
		settle(t, reversed, uint64(i+1), steps[i])
	}

	for version := uint64(0); version <= 3; version++ {
		for _, account := range []types.AccountID{x, y} {
			expected, err := inOrder.BalanceAsOf(account, version)
			require.NoError(t, err)
			got, err := reversed.BalanceAsOf(account, version)
			require.NoError(t, err)
			require.Equal(t, expected.String(), got.String(), "account %s version %d", account, version)
		}
	}
}

func TestScheduleHistoricalVersion(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 100})

	settle(t, s, 1, map[types.AccountID]int64{x: -40})
	settle(t, s, 2, map[types.AccountID]int64{x: -40})
	settle(t, s, 3, map[types.AccountID]int64{x: -10})

	res := schedule(t, s, 0, withdraw("old0", map[types.AccountID]uint64{x: 100}))
	require.Equal(t, types.SufficientBalance, res["old0"])

	res = schedule(t, s, 1,
		withdraw("old1a", map[types.AccountID]uint64{x: 60}),
		withdraw("old1b", map[types.AccountID]uint64{x: 1}),
	)
	require.Equal(t, types.SufficientBalance, res["old1a"])
	require.Equal(t, types.InsufficientBalance, res["old1b"])

	res = schedule(t, s, 3, withdraw("new", map[types.AccountID]uint64{x: 11}))
	require.Equal(t, types.InsufficientBalance, res["new"])
}

func TestScheduleMultiAccountAllOrNothing(t *testing.T) {
	a, b := testAccount(1), testAccount(2)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{a: 100, b: 10})

	res := schedule(t, s, 0, withdraw("both", map[types.AccountID]uint64{a: 50, b: 20}))
	require.Equal(t, types.InsufficientBalance, res["both"])
	require.True(t, s.PendingDebit(a, 0).IsZero())
	require.True(t, s.PendingDebit(b, 0).IsZero())

	res = schedule(t, s, 0, withdraw("fits", map[types.AccountID]uint64{a: 50, b: 10}))
	require.Equal(t, types.SufficientBalance, res["fits"])
	requireInt(t, 50, s.PendingDebit(a, 0))
	requireInt(t, 10, s.PendingDebit(b, 0))

	// b is exhausted, so a must not be debited either
	res = schedule(t, s, 0, withdraw("again", map[types.AccountID]uint64{a: 10, b: 1}))
	require.Equal(t, types.InsufficientBalance, res["again"])
	requireInt(t, 50, s.PendingDebit(a, 0))
}

func TestScheduleDuplicateAfterInsufficient(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 10})

	res := schedule(t, s, 0, withdraw("tx1", map[types.AccountID]uint64{x: 50}))
	require.Equal(t, types.InsufficientBalance, res["tx1"])

	// different content, same id
	res = schedule(t, s, 0, withdraw("tx1", map[types.AccountID]uint64{x: 5}))
	require.Equal(t, types.AlreadyScheduled, res["tx1"])
	require.True(t, s.PendingDebit(x, 0).IsZero())
}

func TestScheduleDuplicateWithinBatchKeepsFirst(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 100})
	listener := &recordingListener{}
	s.RegisterResolutionListener(listener)

	res := schedule(t, s, 0,
		withdraw("tx1", map[types.AccountID]uint64{x: 30}),
		withdraw("tx1", map[types.AccountID]uint64{x: 30}),
	)
	require.Len(t, res, 1)
	require.Equal(t, types.SufficientBalance, res["tx1"])
	requireInt(t, 30, s.PendingDebit(x, 0))

	resolved := listener.snapshot()
	require.Len(t, resolved, 2)
	require.Equal(t, types.SufficientBalance, resolved[0].result)
	require.Equal(t, types.AlreadyScheduled, resolved[1].result)
}

func TestScheduleEmptyReservations(t *testing.T) {
	s := newTestScheduler(t, 0, nil)

	res := schedule(t, s, 0, withdraw("noop", nil))
	require.Equal(t, types.SufficientBalance, res["noop"])
	require.True(t, s.IsScheduled("noop"))
}

func TestScheduleZeroAmount(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 0})

	res := schedule(t, s, 0, withdraw("zero", map[types.AccountID]uint64{x: 0}))
	require.Equal(t, types.SufficientBalance, res["zero"])

	res = schedule(t, s, 0, withdraw("one", map[types.AccountID]uint64{x: 1}))
	require.Equal(t, types.InsufficientBalance, res["one"])
}

func TestScheduleUnsettledVersionPanics(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 100})

	require.Panics(t, func() {
		_, _ = s.ScheduleWithdraws(context.Background(), 1, []types.TxWithdrawRequest{
			withdraw("tx1", map[types.AccountID]uint64{x: 1}),
		})
	})

	// a gap below the requested version is just as fatal
	settle(t, s, 2, map[types.AccountID]int64{x: -1})
	require.Panics(t, func() {
		_, _ = s.ScheduleWithdraws(context.Background(), 2, []types.TxWithdrawRequest{
			withdraw("tx2", map[types.AccountID]uint64{x: 1}),
		})
	})
	require.False(t, s.IsScheduled("tx1"))
	require.False(t, s.IsScheduled("tx2"))
}

func TestScheduleBelowInitVersionPanics(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 5, map[types.AccountID]int64{x: 100})

	require.Panics(t, func() {
		_, _ = s.ScheduleWithdraws(context.Background(), 4, []types.TxWithdrawRequest{
			withdraw("tx1", map[types.AccountID]uint64{x: 1}),
		})
	})

	res := schedule(t, s, 5, withdraw("tx1", map[types.AccountID]uint64{x: 1}))
	require.Equal(t, types.SufficientBalance, res["tx1"])
}

func TestSettleConflictPanics(t *testing.T) {
	x, y := testAccount(1), testAccount(2)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 100, y: 100})

	settle(t, s, 1, map[types.AccountID]int64{x: -10})
	require.Panics(t, func() {
		_ = s.SettleBalances(context.Background(), settlement(1, map[types.AccountID]int64{x: -10}))
	})
	require.Panics(t, func() {
		_ = s.SettleBalances(context.Background(), settlement(1, map[types.AccountID]int64{y: 3}))
	})
	require.Panics(t, func() {
		_ = s.SettleBalances(context.Background(), settlement(0, map[types.AccountID]int64{x: 1}))
	})

	requireBalance(t, s, x, 1, 90)
	requireBalance(t, s, y, 1, 100)
}

func TestSettleTooFarAheadPanics(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 100})
	settle(t, s, 1, map[types.AccountID]int64{x: -10})

	require.Panics(t, func() {
		_ = s.SettleBalances(context.Background(), settlement(1+MaxSettlementLead+1, map[types.AccountID]int64{x: -10}))
	})
	require.Panics(t, func() {
		_ = s.SettleBalances(context.Background(), settlement(1<<40, map[types.AccountID]int64{x: -10}))
	})

	require.Equal(t, uint64(1), s.SettledWatermark())
	settle(t, s, 2, map[types.AccountID]int64{x: -10})
	requireBalance(t, s, x, 2, 80)
}

func TestSettleZeroDeltaStillAdvancesWatermark(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 100})

	settle(t, s, 1, nil)
	settle(t, s, 2, map[types.AccountID]int64{x: 0})
	require.Equal(t, uint64(2), s.SettledWatermark())
	requireBalance(t, s, x, 2, 100)
}

func TestLazyAccountLoading(t *testing.T) {
	x, y := testAccount(1), testAccount(2)
	reader := NewMapBalanceReader(map[types.AccountID]math.Int{x: math.NewInt(30), y: math.NewInt(70)})
	cfg := DefaultConfig()
	cfg.MetricsEnabled = false
	s, err := NewScheduler(context.Background(), reader, 0, cfg, log.NewNopLogger())
	require.NoError(t, err)
	require.Equal(t, 0, s.Stats().Accounts)

	res := schedule(t, s, 0, withdraw("tx1", map[types.AccountID]uint64{x: 30}))
	require.Equal(t, types.SufficientBalance, res["tx1"])
	require.Equal(t, 1, s.Stats().Accounts)

	// y is first seen through a settlement
	settle(t, s, 1, map[types.AccountID]int64{y: -20})
	requireBalance(t, s, y, 1, 50)
	requireBalance(t, s, y, 0, 70)

	_, err = s.BalanceAsOf(testAccount(9), 0)
	require.ErrorIs(t, err, types.ErrUnknownAccount)
	assertInvariant(t, s)
}

func TestReaderErrorLeavesStateUntouched(t *testing.T) {
	good, bad := testAccount(1), testAccount(2)
	s, err := NewScheduler(context.Background(), failingReader{fail: map[types.AccountID]bool{bad: true}}, 0, DefaultConfig(), nil)
	require.NoError(t, err)

	_, err = s.ScheduleWithdraws(context.Background(), 0, []types.TxWithdrawRequest{
		withdraw("tx1", map[types.AccountID]uint64{good: 10}),
		withdraw("tx2", map[types.AccountID]uint64{good: 10, bad: 10}),
	})
	require.ErrorIs(t, err, types.ErrBalanceRead)
	require.False(t, s.IsScheduled("tx1"))
	require.False(t, s.IsScheduled("tx2"))
	require.True(t, s.PendingDebit(good, 0).IsZero())

	err = s.SettleBalances(context.Background(), settlement(1, map[types.AccountID]int64{bad: 5}))
	require.ErrorIs(t, err, types.ErrBalanceRead)
	require.Equal(t, uint64(0), s.SettledWatermark())

	// the version was not claimed, so it can still be settled
	require.NoError(t, s.SettleBalances(context.Background(), settlement(1, map[types.AccountID]int64{good: 5})))
	assertInvariant(t, s)
}

func TestNewSchedulerEagerAccountErrors(t *testing.T) {
	bad := testAccount(2)
	cfg := DefaultConfig()
	cfg.EagerAccounts = []string{string(bad)}
	_, err := NewScheduler(context.Background(), failingReader{fail: map[types.AccountID]bool{bad: true}}, 0, cfg, nil)
	require.ErrorIs(t, err, types.ErrBalanceRead)

	cfg.EagerAccounts = []string{"not-an-address"}
	_, err = NewScheduler(context.Background(), NewMapBalanceReader(nil), 0, cfg, nil)
	require.ErrorIs(t, err, types.ErrInvalidAccount)
}

func TestNewSchedulerAcceptsHexAccounts(t *testing.T) {
	addr := testAddress(3)
	cfg := DefaultConfig()
	cfg.MetricsEnabled = false
	cfg.EagerAccounts = []string{"0x" + hexString(addr)}

	reader := NewMapBalanceReader(map[types.AccountID]math.Int{AccountIDFromAddress(addr): math.NewInt(12)})
	s, err := NewScheduler(context.Background(), reader, 0, cfg, nil)
	require.NoError(t, err)
	requireBalance(t, s, AccountIDFromAddress(addr), 0, 12)
}

func TestResolutionListener(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 0, map[types.AccountID]int64{x: 10})
	listener := &recordingListener{}
	s.RegisterResolutionListener(listener)
	s.RegisterResolutionListener(nil)

	schedule(t, s, 0,
		withdraw("a", map[types.AccountID]uint64{x: 10}),
		withdraw("b", map[types.AccountID]uint64{x: 10}),
	)
	schedule(t, s, 0, withdraw("a", map[types.AccountID]uint64{x: 1}))

	require.Equal(t, []resolution{
		{txID: "a", version: 0, result: types.SufficientBalance},
		{txID: "b", version: 0, result: types.InsufficientBalance},
		{txID: "a", version: 0, result: types.AlreadyScheduled},
	}, listener.snapshot())
}

func TestStats(t *testing.T) {
	x := testAccount(1)
	s := newTestScheduler(t, 3, map[types.AccountID]int64{x: 10})
	schedule(t, s, 3, withdraw("a", map[types.AccountID]uint64{x: 1}))
	settle(t, s, 4, map[types.AccountID]int64{x: 1})

	require.Equal(t, Stats{
		Accounts:         1,
		RegisteredTxs:    1,
		InitVersion:      3,
		Floor:            3,
		SettledWatermark: 4,
	}, s.Stats())
}

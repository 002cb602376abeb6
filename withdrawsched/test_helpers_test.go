package withdrawsched

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

func testAddress(id int) sdk.AccAddress {
	sum := sha256.Sum256([]byte(fmt.Sprintf("addr-%d", id)))
	return sdk.AccAddress(sum[:20])
}

func testAccount(id int) types.AccountID {
	return AccountIDFromAddress(testAddress(id))
}

func withdraw(txID string, reservations map[types.AccountID]uint64) types.TxWithdrawRequest {
	return types.TxWithdrawRequest{TxID: types.TxID(txID), Reservations: reservations}
}

func settlement(version types.Version, changes map[types.AccountID]int64) types.BalanceSettlement {
	out := types.BalanceSettlement{
		Version:        version,
		BalanceChanges: make(map[types.AccountID]math.Int, len(changes)),
	}
	for account, delta := range changes {
		out.BalanceChanges[account] = math.NewInt(delta)
	}
	return out
}

// newTestScheduler builds a scheduler at initVersion with the given init
// balances loaded eagerly.
func newTestScheduler(t *testing.T, initVersion types.Version, balances map[types.AccountID]int64) *Scheduler {
	t.Helper()
	return newTestSchedulerWithConfig(t, initVersion, balances, DefaultConfig())
}

func newTestSchedulerWithConfig(t *testing.T, initVersion types.Version, balances map[types.AccountID]int64, cfg Config) *Scheduler {
	t.Helper()

	snapshot := make(map[types.AccountID]math.Int, len(balances))
	cfg.EagerAccounts = nil
	for account, balance := range balances {
		snapshot[account] = math.NewInt(balance)
		cfg.EagerAccounts = append(cfg.EagerAccounts, string(account))
	}
	cfg.MetricsEnabled = false

	s, err := NewScheduler(context.Background(), NewMapBalanceReader(snapshot), initVersion, cfg, log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		assertInvariant(t, s)
	})
	return s
}

// assertInvariant fails the test immediately if scheduler invariants are broken.
func assertInvariant(t *testing.T, s *Scheduler) {
	t.Helper()
	require.NoError(t, s.ValidateInvariants())
}

// schedule runs ScheduleWithdraws and returns the resolved result per tx.
func schedule(t *testing.T, s *Scheduler, version types.Version, reqs ...types.TxWithdrawRequest) map[types.TxID]types.ScheduleResult {
	t.Helper()

	notifications, err := s.ScheduleWithdraws(context.Background(), version, reqs)
	require.NoError(t, err)

	out := make(map[types.TxID]types.ScheduleResult, len(notifications))
	for txID, n := range notifications {
		result, ok := n.Result()
		require.True(t, ok, "notification for %s not resolved", txID)
		out[txID] = result
	}
	return out
}

func settle(t *testing.T, s *Scheduler, version types.Version, changes map[types.AccountID]int64) {
	t.Helper()
	require.NoError(t, s.SettleBalances(context.Background(), settlement(version, changes)))
}

func requireBalance(t *testing.T, s *Scheduler, account types.AccountID, version types.Version, expected int64) {
	t.Helper()
	balance, err := s.BalanceAsOf(account, version)
	require.NoError(t, err)
	requireInt(t, expected, balance)
}

type recordingListener struct {
	mtx      sync.Mutex
	resolved []resolution
}

func (l *recordingListener) OnWithdrawResolved(txID types.TxID, version types.Version, result types.ScheduleResult) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.resolved = append(l.resolved, resolution{txID: txID, version: version, result: result})
}

func (l *recordingListener) snapshot() []resolution {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	out := make([]resolution, len(l.resolved))
	copy(out, l.resolved)
	return out
}

// failingReader fails for the listed accounts and serves a balance of 100 otherwise.
type failingReader struct {
	fail map[types.AccountID]bool
}

var errReaderUnavailable = errors.New("reader unavailable")

func (r failingReader) GetBalance(_ context.Context, account types.AccountID) (math.Int, error) {
	if r.fail[account] {
		return math.Int{}, errReaderUnavailable
	}
	return math.NewInt(100), nil
}

func hexString(addr sdk.AccAddress) string {
	return hex.EncodeToString(addr)
}

// requireInt compares by value; zero-valued big ints do not compare equal
// with reflect.DeepEqual.
func requireInt(t *testing.T, expected int64, got math.Int) {
	t.Helper()
	require.False(t, got.IsNil())
	require.Equal(t, math.NewInt(expected).String(), got.String())
}

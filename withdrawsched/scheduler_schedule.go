package withdrawsched

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

type resolution struct {
	txID    types.TxID
	version types.Version
	result  types.ScheduleResult
}

// ScheduleWithdraws decides every request against the balances as of
// version and returns one resolved notification per transaction id.
//
// Requests are evaluated in slice order and each one sees the reservations
// committed by the ones before it. A request is all-or-nothing across the
// accounts it touches. A transaction id that was scheduled before resolves to
// AlreadyScheduled without touching the ledger; when the same id appears twice
// in one batch the returned map keeps the first notification.
//
// version must be the init version or a version whose settlement, and every
// settlement below it, has been applied. Violating that panics. An error is
// returned only when the balance of a first-seen account cannot be read, in
// which case nothing is scheduled.
func (s *Scheduler) ScheduleWithdraws(
	ctx context.Context,
	version types.Version,
	withdraws []types.TxWithdrawRequest,
) (map[types.TxID]*Notification, error) {
	defer s.measureSince(time.Now(), metricKeySchedule)

	if err := s.LoadAccounts(ctx, withdrawAccounts(withdraws)...); err != nil {
		return nil, err
	}

	out, resolved := s.scheduleBatch(version, withdraws)
	s.dispatchResolved(resolved)
	return out, nil
}

func (s *Scheduler) scheduleBatch(
	version types.Version,
	withdraws []types.TxWithdrawRequest,
) (map[types.TxID]*Notification, []resolution) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	if err := s.watermark.checkQueryable(version); err != nil {
		panic(fmt.Sprintf("schedule withdraws precondition violated: %v", err))
	}

	out := make(map[types.TxID]*Notification, len(withdraws))
	resolved := make([]resolution, 0, len(withdraws))
	for _, req := range withdraws {
		result := s.scheduleOne(version, req)

		n := newNotification()
		n.resolve(result)
		if _, ok := out[req.TxID]; !ok {
			out[req.TxID] = n
		}
		resolved = append(resolved, resolution{txID: req.TxID, version: version, result: result})

		s.logger.Debug("withdraw resolved", "tx", req.TxID, "version", version, "result", result.String())
	}
	return out, resolved
}

func (s *Scheduler) scheduleOne(version types.Version, req types.TxWithdrawRequest) types.ScheduleResult {
	if alreadyPresent := s.registry.register(req.TxID, version); alreadyPresent {
		return types.AlreadyScheduled
	}
	if expiredAt, ok := s.registry.takeExpired(req.TxID); ok {
		s.logger.Debug("expired withdraw re-admitted", "tx", req.TxID, "version", version, "expired_version", expiredAt)
	}
	if s.reserveAll(version, req) {
		return types.SufficientBalance
	}
	return types.InsufficientBalance
}

// reserveAll commits every reservation of req at version, or none of them.
func (s *Scheduler) reserveAll(version types.Version, req types.TxWithdrawRequest) bool {
	accounts := req.SortedAccounts()
	switch len(accounts) {
	case 0:
		return true
	case 1:
		account := accounts[0]
		return s.ledgersFor(accounts)[0].tryReserve(version, math.NewIntFromUint64(req.Reservations[account]))
	}

	ledgers := s.ledgersFor(accounts)
	amounts := make([]math.Int, len(accounts))
	for i, account := range accounts {
		amounts[i] = math.NewIntFromUint64(req.Reservations[account])
	}

	lockLedgers(ledgers)
	defer unlockLedgers(ledgers)

	for i, l := range ledgers {
		if !l.canReserveLocked(version, amounts[i]) {
			return false
		}
	}
	for i, l := range ledgers {
		l.reserveLocked(version, amounts[i])
	}
	return true
}

// dispatchResolved emits metrics and notifies listeners outside of locks.
func (s *Scheduler) dispatchResolved(resolved []resolution) {
	listeners := s.copyListeners()
	for _, r := range resolved {
		s.emitResolution(r.result)
		for _, listener := range listeners {
			listener.OnWithdrawResolved(r.txID, r.version, r.result)
		}
	}
}

// withdrawAccounts lists every account named by the batch.
func withdrawAccounts(withdraws []types.TxWithdrawRequest) []types.AccountID {
	var accounts []types.AccountID
	for _, req := range withdraws {
		for account := range req.Reservations {
			accounts = append(accounts, account)
		}
	}
	return accounts
}

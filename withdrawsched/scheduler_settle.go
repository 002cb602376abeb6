package withdrawsched

import (
	"context"
	"time"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

// SettleBalances folds the real balance changes of one version into the
// ledger. Versions may be settled in any order. Settling a version twice, or
// settling the init version or one below it, panics.
//
// An error is returned only when the balance of a first-seen account cannot
// be read, in which case nothing is settled.
func (s *Scheduler) SettleBalances(ctx context.Context, settlement types.BalanceSettlement) error {
	defer s.measureSince(time.Now(), metricKeySettle)

	accounts := changedAccounts(settlement)
	if err := s.LoadAccounts(ctx, accounts...); err != nil {
		return err
	}

	watermark := s.applySettlement(settlement.Version, accounts, settlement)
	s.emitWatermark(watermark)
	s.logger.Debug("balances settled", "version", settlement.Version, "accounts", len(accounts), "watermark", watermark)

	if retain := s.cfg.RetainVersions; retain > 0 && watermark > retain {
		s.Prune(watermark - retain)
	}
	return nil
}

func (s *Scheduler) applySettlement(
	version types.Version,
	accounts []types.AccountID,
	settlement types.BalanceSettlement,
) types.Version {
	s.gate.RLock()
	defer s.gate.RUnlock()

	s.watermark.claim(version)
	for i, l := range s.ledgersFor(accounts) {
		l.applySettlement(version, settlement.BalanceChanges[accounts[i]])
	}
	return s.watermark.markSettled(version)
}

// changedAccounts returns, in canonical order, the accounts whose delta is
// not zero.
func changedAccounts(settlement types.BalanceSettlement) []types.AccountID {
	var accounts []types.AccountID
	for _, account := range settlement.SortedAccounts() {
		delta := settlement.BalanceChanges[account]
		if delta.IsNil() || delta.IsZero() {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts
}

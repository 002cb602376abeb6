package withdrawsched

import (
	"context"
	"fmt"
	"sync"

	"cosmossdk.io/log"
	"cosmossdk.io/math"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

// Scheduler decides, ahead of execution, whether the withdrawals declared by
// transactions can be covered by the balances of the accounts they touch.
//
// Reservations are answered against the balance of an account as of an
// accumulator version. That balance is the init snapshot plus every settled
// delta up to the version, so settlements may arrive in any order and older
// versions stay queryable until they are pruned. Reservations already
// approved at a version are remembered as pending debits, which keeps two
// concurrently approved withdrawals from overdrawing an account.
//
// Schedule and settle calls run concurrently. Each account has its own lock;
// multi-account requests lock their accounts in canonical order. Prune takes
// the scheduler exclusively.
type Scheduler struct {
	cfg    Config
	logger log.Logger
	reader BalanceReader

	// gate is held shared by schedule, settle and query calls and
	// exclusively by Prune and ValidateInvariants.
	gate sync.RWMutex

	accountsMtx sync.RWMutex
	accounts    map[types.AccountID]*accountLedger

	registry  *reservationRegistry
	watermark *settlementWatermark

	listenersMtx sync.Mutex
	listeners    []ResolutionListener
}

// NewScheduler creates a scheduler whose ledger starts at initVersion. The
// accounts listed in cfg.EagerAccounts are read from reader right away; any
// other account is read the first time a request or settlement names it.
func NewScheduler(
	ctx context.Context,
	reader BalanceReader,
	initVersion types.Version,
	cfg Config,
	logger log.Logger,
) (*Scheduler, error) {
	if reader == nil {
		panic("balance reader is required")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s := &Scheduler{
		cfg:       cfg,
		logger:    logger.With("module", types.ModuleName),
		reader:    reader,
		accounts:  make(map[types.AccountID]*accountLedger),
		registry:  newReservationRegistry(),
		watermark: newSettlementWatermark(initVersion),
	}

	eager := make([]types.AccountID, 0, len(cfg.EagerAccounts))
	for _, account := range cfg.EagerAccounts {
		id, err := DecodeAccountID(account)
		if err != nil {
			return nil, err
		}
		eager = append(eager, id)
	}
	if err := s.LoadAccounts(ctx, eager...); err != nil {
		return nil, err
	}

	s.logger.Info("withdraw scheduler created", "init_version", initVersion, "accounts", len(eager))
	return s, nil
}

// LoadAccounts reads the init balance of every account that is not yet known.
// Nothing is stored when any read fails.
func (s *Scheduler) LoadAccounts(ctx context.Context, accounts ...types.AccountID) error {
	missing := s.missingAccounts(accounts)
	if len(missing) == 0 {
		return nil
	}

	balances := make([]math.Int, len(missing))
	for i, account := range missing {
		balance, err := s.reader.GetBalance(ctx, account)
		if err != nil {
			s.logger.Error("failed to read balance", "account", account, "err", err)
			return types.ErrBalanceRead.Wrapf("account %s: %v", account, err)
		}
		if balance.IsNil() {
			return types.ErrInvalidBalance.Wrapf("account %s: nil balance", account)
		}
		balances[i] = balance
	}

	s.accountsMtx.Lock()
	defer s.accountsMtx.Unlock()
	for i, account := range missing {
		// another caller may have loaded it while we were reading
		if _, ok := s.accounts[account]; ok {
			continue
		}
		s.accounts[account] = newAccountLedger(account, balances[i])
	}
	return nil
}

// missingAccounts returns the deduplicated accounts that have no ledger yet.
func (s *Scheduler) missingAccounts(accounts []types.AccountID) []types.AccountID {
	s.accountsMtx.RLock()
	defer s.accountsMtx.RUnlock()

	var missing []types.AccountID
	seen := make(map[types.AccountID]struct{}, len(accounts))
	for _, account := range accounts {
		if _, ok := seen[account]; ok {
			continue
		}
		seen[account] = struct{}{}
		if _, ok := s.accounts[account]; !ok {
			missing = append(missing, account)
		}
	}
	return missing
}

// ledgersFor returns the ledgers of accounts in the given order. All of them
// must have been loaded.
func (s *Scheduler) ledgersFor(accounts []types.AccountID) []*accountLedger {
	s.accountsMtx.RLock()
	defer s.accountsMtx.RUnlock()

	ledgers := make([]*accountLedger, len(accounts))
	for i, account := range accounts {
		l, ok := s.accounts[account]
		if !ok {
			panic(fmt.Sprintf("account %s used before it was loaded", account))
		}
		ledgers[i] = l
	}
	return ledgers
}

func (s *Scheduler) ledger(account types.AccountID) (*accountLedger, bool) {
	s.accountsMtx.RLock()
	defer s.accountsMtx.RUnlock()

	l, ok := s.accounts[account]
	return l, ok
}

// snapshotLedgers copies the ledger set so it can be walked without holding
// accountsMtx.
func (s *Scheduler) snapshotLedgers() []*accountLedger {
	s.accountsMtx.RLock()
	defer s.accountsMtx.RUnlock()

	out := make([]*accountLedger, 0, len(s.accounts))
	for _, l := range s.accounts {
		out = append(out, l)
	}
	return out
}

// RegisterResolutionListener registers an observer that is notified of every
// resolved reservation.
func (s *Scheduler) RegisterResolutionListener(listener ResolutionListener) {
	if listener == nil {
		return
	}

	s.listenersMtx.Lock()
	defer s.listenersMtx.Unlock()
	s.listeners = append(s.listeners, listener)
}

// copyListeners produces a shallow snapshot of listeners so we can iterate without holding the lock.
func (s *Scheduler) copyListeners() []ResolutionListener {
	s.listenersMtx.Lock()
	defer s.listenersMtx.Unlock()

	if len(s.listeners) == 0 {
		return nil
	}
	copied := make([]ResolutionListener, len(s.listeners))
	copy(copied, s.listeners)
	return copied
}

// BalanceAsOf returns the settled balance of account at version.
func (s *Scheduler) BalanceAsOf(account types.AccountID, version types.Version) (math.Int, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	if err := s.watermark.checkQueryable(version); err != nil {
		return math.Int{}, err
	}
	l, ok := s.ledger(account)
	if !ok {
		return math.Int{}, types.ErrUnknownAccount.Wrap(string(account))
	}
	return l.balanceAsOf(version), nil
}

// PendingDebit returns the amount already reserved from account at version.
func (s *Scheduler) PendingDebit(account types.AccountID, version types.Version) math.Int {
	l, ok := s.ledger(account)
	if !ok {
		return math.ZeroInt()
	}
	return l.pendingDebit(version)
}

// IsScheduled reports whether txID has been scheduled and not yet expired.
func (s *Scheduler) IsScheduled(txID types.TxID) bool {
	return s.registry.contains(txID)
}

// SettledWatermark returns the highest version V such that every version
// above the init version up to V has been settled.
func (s *Scheduler) SettledWatermark() types.Version {
	return s.watermark.watermark()
}

// Stats returns a summary of the scheduler state.
func (s *Scheduler) Stats() Stats {
	s.accountsMtx.RLock()
	accounts := len(s.accounts)
	s.accountsMtx.RUnlock()

	return Stats{
		Accounts:         accounts,
		RegisteredTxs:    s.registry.len(),
		InitVersion:      s.watermark.init,
		Floor:            s.watermark.currentFloor(),
		SettledWatermark: s.watermark.watermark(),
	}
}

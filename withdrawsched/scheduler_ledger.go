package withdrawsched

import (
	"fmt"
	"sync"

	"github.com/huandu/skiplist"

	"cosmossdk.io/math"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

// accountLedger is the versioned balance state of one account. baseline is
// the balance as of the retention floor; settled holds the per-version deltas
// above it ordered by version; pending holds the amounts already reserved at
// each version. cursorBalance is baseline plus every delta at or below
// cursor, so queries near the latest read only walk the deltas in between.
//
// All methods with the Locked suffix require mtx to be held.
type accountLedger struct {
	mtx      sync.Mutex
	account  types.AccountID
	baseline math.Int
	settled  *skiplist.SkipList
	pending  map[types.Version]math.Int

	cursor        types.Version
	cursorBalance math.Int
}

func newAccountLedger(account types.AccountID, baseline math.Int) *accountLedger {
	return &accountLedger{
		account:  account,
		baseline: baseline,
		settled:  skiplist.New(skiplist.Uint64),
		pending:  make(map[types.Version]math.Int),

		cursorBalance: baseline,
	}
}

// balanceAsOfLocked returns the baseline plus every settled delta up to and
// including version. Callers must have checked that no version in the range
// is missing a settlement. Reading at or above the cursor moves it forward.
func (l *accountLedger) balanceAsOfLocked(version types.Version) math.Int {
	if version == l.cursor {
		return l.cursorBalance
	}
	if version < l.cursor {
		balance := l.cursorBalance
		for elem := l.settled.Find(version + 1); elem != nil; elem = elem.Next() {
			if elem.Key().(uint64) > l.cursor {
				break
			}
			balance = balance.Sub(elem.Value.(math.Int))
		}
		return balance
	}

	balance := l.cursorBalance
	for elem := l.settled.Find(l.cursor + 1); elem != nil; elem = elem.Next() {
		if elem.Key().(uint64) > version {
			break
		}
		balance = balance.Add(elem.Value.(math.Int))
	}
	l.cursor, l.cursorBalance = version, balance
	return balance
}

// pendingLocked returns the amount already reserved at version.
func (l *accountLedger) pendingLocked(version types.Version) math.Int {
	if amount, ok := l.pending[version]; ok {
		return amount
	}
	return math.ZeroInt()
}

// availableLocked is the balance at version minus what is already reserved
// there.
func (l *accountLedger) availableLocked(version types.Version) math.Int {
	return l.balanceAsOfLocked(version).Sub(l.pendingLocked(version))
}

// canReserveLocked reports whether amount fits into the available balance at
// version without recording anything.
func (l *accountLedger) canReserveLocked(version types.Version, amount math.Int) bool {
	return amount.LTE(l.availableLocked(version))
}

// reserveLocked adds amount to the pending debits of version.
func (l *accountLedger) reserveLocked(version types.Version, amount math.Int) {
	l.pending[version] = l.pendingLocked(version).Add(amount)
}

// tryReserve checks and records a single-account reservation atomically.
func (l *accountLedger) tryReserve(version types.Version, amount math.Int) bool {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if !l.canReserveLocked(version, amount) {
		return false
	}
	l.reserveLocked(version, amount)
	return true
}

// applySettlement records the delta for version and drops the pending bucket
// of the previous version, which the delta supersedes. A second delta for the
// same version panics.
func (l *accountLedger) applySettlement(version types.Version, delta math.Int) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if l.settled.Get(version) != nil {
		panic(fmt.Sprintf("conflicting settlement for account %s at version %d", l.account, version))
	}
	l.settled.Set(version, delta)
	if version <= l.cursor {
		l.cursorBalance = l.cursorBalance.Add(delta)
	}
	if version > 0 {
		delete(l.pending, version-1)
	}
}

// fold merges every delta at or below floor into the baseline and drops the
// pending buckets below floor.
func (l *accountLedger) fold(floor types.Version) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	for elem := l.settled.Front(); elem != nil; elem = l.settled.Front() {
		if elem.Key().(uint64) > floor {
			break
		}
		l.baseline = l.baseline.Add(elem.Value.(math.Int))
		l.settled.Remove(elem.Key())
	}
	if l.cursor < floor {
		l.cursor, l.cursorBalance = floor, l.baseline
	}
	for version := range l.pending {
		if version < floor {
			delete(l.pending, version)
		}
	}
}

func (l *accountLedger) balanceAsOf(version types.Version) math.Int {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	return l.balanceAsOfLocked(version)
}

func (l *accountLedger) pendingDebit(version types.Version) math.Int {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	return l.pendingLocked(version)
}

// lockLedgers locks the given ledgers in order. Callers pass them sorted by
// account id so concurrent multi-account requests cannot deadlock.
func lockLedgers(ledgers []*accountLedger) {
	for _, l := range ledgers {
		l.mtx.Lock()
	}
}

func unlockLedgers(ledgers []*accountLedger) {
	for i := len(ledgers) - 1; i >= 0; i-- {
		ledgers[i].mtx.Unlock()
	}
}

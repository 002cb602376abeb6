package withdrawsched

import (
	"fmt"

	"cosmossdk.io/math"
)

// ValidateInvariants verifies internal scheduler consistency and returns an
// error when any ledger, watermark or registry invariant is broken.
//
// This method is intended for diagnostics and tests.
func (s *Scheduler) ValidateInvariants() error {
	s.gate.Lock()
	defer s.gate.Unlock()

	w := s.watermark
	floor := w.currentFloor()
	watermark := w.watermark()
	if floor < w.init || floor > watermark {
		return fmt.Errorf("floor %d outside [init %d, watermark %d]", floor, w.init, watermark)
	}
	for version := floor + 1; version <= watermark; version++ {
		if !w.isSettled(version) {
			return fmt.Errorf("version %d below watermark %d is not settled", version, watermark)
		}
	}

	for _, l := range s.snapshotLedgers() {
		if err := validateLedger(l, floor, watermark, w.isSettled); err != nil {
			return err
		}
	}

	return s.registry.validate()
}

func validateLedger(l *accountLedger, floor, watermark uint64, isSettled func(uint64) bool) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if l.baseline.IsNil() {
		return fmt.Errorf("account %s has nil baseline", l.account)
	}

	atCursor := l.baseline
	for elem := l.settled.Front(); elem != nil; elem = elem.Next() {
		version := elem.Key().(uint64)
		if version <= l.cursor {
			atCursor = atCursor.Add(elem.Value.(math.Int))
		}
		if version <= floor {
			return fmt.Errorf("account %s keeps delta at version %d at or below floor %d", l.account, version, floor)
		}
		if !isSettled(version) {
			return fmt.Errorf("account %s has delta at unpublished version %d", l.account, version)
		}
		if delta := elem.Value.(math.Int); delta.IsNil() || delta.IsZero() {
			return fmt.Errorf("account %s stores empty delta at version %d", l.account, version)
		}
	}

	if l.cursorBalance.IsNil() || !l.cursorBalance.Equal(atCursor) {
		return fmt.Errorf("account %s caches balance %s at version %d, history sums to %s", l.account, l.cursorBalance, l.cursor, atCursor)
	}

	for version, amount := range l.pending {
		if amount.IsNegative() {
			return fmt.Errorf("account %s has negative pending debit %s at version %d", l.account, amount, version)
		}
		if version < floor {
			return fmt.Errorf("account %s keeps pending debit at pruned version %d", l.account, version)
		}
		if version > watermark {
			return fmt.Errorf("account %s has pending debit at unsettled version %d", l.account, version)
		}
		// superseded buckets no longer bound anything
		if isSettled(version + 1) {
			continue
		}
		if balance := l.balanceAsOfLocked(version); amount.GT(balance) {
			return fmt.Errorf("account %s overdrawn at version %d: pending %s > balance %s", l.account, version, amount, balance)
		}
	}
	return nil
}

func (r *reservationRegistry) validate() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	indexed := 0
	for version, ids := range r.byVersion {
		for _, id := range ids {
			seenAt, ok := r.seen[id]
			if !ok {
				return fmt.Errorf("registry index holds %s at version %d but it is not registered", id, version)
			}
			if seenAt != version {
				return fmt.Errorf("registry index holds %s at version %d but it was registered at %d", id, version, seenAt)
			}
		}
		indexed += len(ids)
	}
	if indexed != len(r.seen) {
		return fmt.Errorf("registry count mismatch: indexed=%d, registered=%d", indexed, len(r.seen))
	}
	return nil
}

// AssertInvariant panics when internal scheduler invariants are broken.
// Use this in debug/test paths when immediate fail-fast behavior is preferred.
func (s *Scheduler) AssertInvariant() {
	if err := s.ValidateInvariants(); err != nil {
		panic(fmt.Sprintf("withdraw scheduler invariant violation: %v", err))
	}
}

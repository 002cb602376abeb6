package withdrawsched

import (
	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

// Prune makes floor the oldest queryable version. Settled deltas at or below
// floor are folded into the account baselines, pending debits below floor are
// dropped and transaction ids scheduled below floor are forgotten. Pruning
// above the settled watermark panics; pruning at or below the current floor
// is a no-op.
func (s *Scheduler) Prune(floor types.Version) {
	s.gate.Lock()
	defer s.gate.Unlock()

	if floor <= s.watermark.currentFloor() {
		return
	}
	s.watermark.advanceFloor(floor)

	for _, l := range s.snapshotLedgers() {
		l.fold(floor)
	}
	expired := s.registry.expireBelow(floor)

	s.emitPruned(expired)
	s.logger.Info("withdraw scheduler pruned", "floor", floor, "expired_txs", expired)
}

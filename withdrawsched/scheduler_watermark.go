package withdrawsched

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

// MaxSettlementLead is how far above the settled watermark a settlement may
// arrive. Settling further ahead panics.
const MaxSettlementLead = types.Version(1 << 20)

// settlementWatermark tracks which versions above the init version have been
// settled. Bit i stands for version base+1+i, where base starts at the init
// version and follows the retention floor.
//
// A settlement first claims its version, then applies the per-account deltas,
// then marks the version settled. Only settled versions count toward the
// contiguous watermark, so a reader never observes a half-applied settlement.
type settlementWatermark struct {
	mtx        sync.RWMutex
	init       types.Version
	floor      types.Version
	base       types.Version
	claimed    *bitset.BitSet
	settled    *bitset.BitSet
	contiguous types.Version
}

func newSettlementWatermark(init types.Version) *settlementWatermark {
	return &settlementWatermark{
		init:       init,
		floor:      init,
		base:       init,
		claimed:    bitset.New(64),
		settled:    bitset.New(64),
		contiguous: init,
	}
}

func (w *settlementWatermark) index(version types.Version) uint {
	return uint(version - w.base - 1)
}

// claim reserves version for a settlement in progress. Settling the init
// version or anything below it panics, as does settling a version twice or
// more than MaxSettlementLead versions above the watermark.
func (w *settlementWatermark) claim(version types.Version) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if version <= w.init {
		panic(fmt.Sprintf("conflicting settlement: version %d is not above init version %d", version, w.init))
	}
	if version > w.contiguous && version-w.contiguous > MaxSettlementLead {
		panic(fmt.Sprintf("conflicting settlement: version %d is more than %d versions above settled watermark %d",
			version, MaxSettlementLead, w.contiguous))
	}
	if version <= w.base {
		panic(fmt.Sprintf("conflicting settlement: version %d settled twice", version))
	}
	idx := w.index(version)
	if w.claimed.Test(idx) {
		panic(fmt.Sprintf("conflicting settlement: version %d settled twice", version))
	}
	w.claimed.Set(idx)
}

// markSettled publishes a claimed version and returns the new contiguous
// watermark.
func (w *settlementWatermark) markSettled(version types.Version) types.Version {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	w.settled.Set(w.index(version))
	for w.settled.Test(w.index(w.contiguous + 1)) {
		w.contiguous++
	}
	return w.contiguous
}

// isSettled reports whether version's balance is fixed by a settlement. The
// init version and everything below it count as settled.
func (w *settlementWatermark) isSettled(version types.Version) bool {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	if version <= w.base {
		return true
	}
	return w.settled.Test(w.index(version))
}

// checkQueryable returns an error unless every version in (floor, version]
// is settled and version is not below the floor.
func (w *settlementWatermark) checkQueryable(version types.Version) error {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	if version < w.floor {
		return types.ErrVersionPruned.Wrapf("version %d is below retention floor %d", version, w.floor)
	}
	if version > w.contiguous {
		return types.ErrVersionNotSettled.Wrapf("version %d is above settled watermark %d", version, w.contiguous)
	}
	return nil
}

func (w *settlementWatermark) watermark() types.Version {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	return w.contiguous
}

func (w *settlementWatermark) currentFloor() types.Version {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	return w.floor
}

// advanceFloor raises the retention floor and drops the bits at or below it.
// The floor cannot pass the contiguous watermark.
func (w *settlementWatermark) advanceFloor(floor types.Version) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if floor > w.contiguous {
		panic(fmt.Sprintf("cannot prune to version %d above settled watermark %d", floor, w.contiguous))
	}
	if floor <= w.floor {
		return
	}
	w.floor = floor

	shift := uint(floor - w.base)
	w.claimed = shiftDown(w.claimed, shift)
	w.settled = shiftDown(w.settled, shift)
	w.base = floor
}

// shiftDown returns a copy of b with the lowest n bits removed.
func shiftDown(b *bitset.BitSet, n uint) *bitset.BitSet {
	out := bitset.New(64)
	for i, ok := b.NextSet(n); ok; i, ok = b.NextSet(i + 1) {
		out.Set(i - n)
	}
	return out
}

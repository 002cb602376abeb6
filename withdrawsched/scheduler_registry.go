package withdrawsched

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

// reservationRegistry remembers every transaction id that was scheduled so
// each one is resolved exactly once. Entries are indexed by the version they
// were scheduled at so they can be expired together with pruned versions.
// The most recently expired ids are remembered so a re-admission can be
// reported.
type reservationRegistry struct {
	mtx       sync.Mutex
	seen      map[types.TxID]types.Version
	byVersion map[types.Version][]types.TxID
	expired   *lru.Cache[types.TxID, types.Version]
}

// expiredCacheSize bounds how many expired ids are remembered.
const expiredCacheSize = 4096

func newReservationRegistry() *reservationRegistry {
	expired, err := lru.New[types.TxID, types.Version](expiredCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create expired tx cache: %v", err))
	}
	return &reservationRegistry{
		seen:      make(map[types.TxID]types.Version),
		byVersion: make(map[types.Version][]types.TxID),
		expired:   expired,
	}
}

// register marks txID as seen at version and reports whether it was already
// present. Check and mark happen under one lock.
func (r *reservationRegistry) register(txID types.TxID, version types.Version) (alreadyPresent bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.seen[txID]; ok {
		return true
	}
	r.seen[txID] = version
	r.byVersion[version] = append(r.byVersion[version], txID)
	return false
}

// contains reports whether txID has been registered and not yet expired.
func (r *reservationRegistry) contains(txID types.TxID) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	_, ok := r.seen[txID]
	return ok
}

// expireBelow forgets every id registered at a version lower than floor and
// returns how many were dropped.
func (r *reservationRegistry) expireBelow(floor types.Version) int {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	expired := 0
	for version, ids := range r.byVersion {
		if version >= floor {
			continue
		}
		for _, id := range ids {
			// an id is indexed once, under the version it was first seen at
			delete(r.seen, id)
			r.expired.Add(id, version)
		}
		expired += len(ids)
		delete(r.byVersion, version)
	}
	return expired
}

// takeExpired reports whether txID was expired recently and at which version
// it had been scheduled, forgetting the record.
func (r *reservationRegistry) takeExpired(txID types.TxID) (types.Version, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	version, ok := r.expired.Get(txID)
	if ok {
		r.expired.Remove(txID)
	}
	return version, ok
}

func (r *reservationRegistry) len() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return len(r.seen)
}

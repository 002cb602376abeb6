package withdrawsched

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

// Notification delivers the single result of a withdraw reservation. It is
// resolved exactly once; readers may wait on it from any goroutine.
type Notification struct {
	resolved atomic.Bool
	result   types.ScheduleResult
	done     chan struct{}
}

func newNotification() *Notification {
	return &Notification{done: make(chan struct{})}
}

// resolve stores the result and wakes all waiters. Resolving twice panics.
func (n *Notification) resolve(result types.ScheduleResult) {
	if !n.resolved.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("withdraw notification resolved twice: %s", result))
	}
	n.result = result
	close(n.done)
}

// Done returns a channel that is closed once the result is available.
func (n *Notification) Done() <-chan struct{} {
	return n.done
}

// Result returns the result without blocking. ok is false while unresolved.
func (n *Notification) Result() (result types.ScheduleResult, ok bool) {
	select {
	case <-n.done:
		return n.result, true
	default:
		return 0, false
	}
}

// Wait blocks until the result is available or ctx is done.
func (n *Notification) Wait(ctx context.Context) (types.ScheduleResult, error) {
	select {
	case <-n.done:
		return n.result, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

//go:build !baremetal

package hal

import "time"

// hostTicker hands out tick sequence numbers. Ticks the kernel has not
// taken when the buffer is full are counted and dropped.
type hostTicker struct {
	ch      chan uint64
	period  time.Duration
	seq     uint64
	dropped uint64
	start   time.Time
}

func newHostTicker(period time.Duration) *hostTicker {
	return &hostTicker{ch: make(chan uint64, 1024), period: period}
}

func (t *hostTicker) Ticks() <-chan uint64 { return t.ch }

// catchUp emits every tick owed at now: one at the first call, then one per
// elapsed period.
func (t *hostTicker) catchUp(now time.Time) {
	if t.start.IsZero() {
		t.start = now
	}
	owed := uint64(now.Sub(t.start)/t.period) + 1
	if owed > t.seq {
		t.emit(owed - t.seq)
	}
}

func (t *hostTicker) emit(n uint64) {
	for ; n > 0; n-- {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
			t.dropped++
		}
	}
}

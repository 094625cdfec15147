package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 is a float64 that one goroutine can publish while others read
// it without locks, e.g. run statistics read by http handlers mid-run.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// NewAtomicFloat64 returns an AtomicFloat64 holding val.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.bits.Store(math.Float64bits(val))
	return af
}

// AtomicRead returns the current value.
func (af *AtomicFloat64) AtomicRead() float64 {
	return math.Float64frombits(af.bits.Load())
}

// AtomicSet stores val unconditionally.
func (af *AtomicFloat64) AtomicSet(val float64) {
	af.bits.Store(math.Float64bits(val))
}

// AtomicAdd adds addend and returns the new value.
func (af *AtomicFloat64) AtomicAdd(addend float64) (newVal float64) {
	for {
		old := af.bits.Load()
		newVal = math.Float64frombits(old) + addend
		if af.bits.CompareAndSwap(old, math.Float64bits(newVal)) {
			return
		}
	}
}

package filespace

import "sync/atomic"

// quotaMetric is a simple 64-bit counter from/to which can be
// subtracted/added atomically. It is used to store the number of bytes
// that may still be obtained from a backing store.
type quotaMetric struct {
	remaining atomic.Uint64
}

func (m *quotaMetric) allocate(v uint64) bool {
	for {
		remaining := m.remaining.Load()
		if remaining < v {
			return false
		}
		if m.remaining.CompareAndSwap(remaining, remaining-v) {
			return true
		}
	}
}

func (m *quotaMetric) release(v uint64) {
	m.remaining.Add(v)
}

func (m *quotaMetric) init(v uint64) {
	m.remaining.Store(v)
}

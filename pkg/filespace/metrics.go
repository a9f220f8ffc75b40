package filespace

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	allocatorPrometheusMetrics sync.Once

	allocatorAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "filespace",
			Name:      "allocator_allocations_total",
			Help:      "Number of successful allocations, partitioned by the way in which they were served.",
		},
		[]string{"class", "path"})
	allocatorAllocatedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "filespace",
			Name:      "allocator_allocated_bytes_total",
			Help:      "Number of bytes handed out by successful allocations.",
		},
		[]string{"class"})
	allocatorFragmentsReleasedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "filespace",
			Name:      "allocator_fragments_released_bytes_total",
			Help:      "Number of bytes handed to the free space manager as a side effect of allocations.",
		},
		[]string{"class", "kind"})
	allocatorPeerReclaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "filespace",
			Name:      "allocator_peer_reclaims_total",
			Help:      "Number of times the extent of an aggregator was released to the backing store to make room for its peer.",
		},
		[]string{"class"})
)

// allocationPath describes how the policy engine served a request.
type allocationPath int

const (
	allocationPathFits allocationPath = iota
	allocationPathExtended
	allocationPathReplaced
	allocationPathLargeBlock
	allocationPathBypass
	allocationPathCount
)

var allocationPathNames = [allocationPathCount]string{
	allocationPathFits:       "fits",
	allocationPathExtended:   "extended",
	allocationPathReplaced:   "replaced",
	allocationPathLargeBlock: "large_block",
	allocationPathBypass:     "bypass",
}

// allocatorMetrics holds counters that are resolved once per class,
// so that WithLabelValues() doesn't need to be called on every
// allocation.
type allocatorMetrics struct {
	allocations              [allocationPathCount]prometheus.Counter
	allocatedBytes           prometheus.Counter
	frontFragmentBytes       prometheus.Counter
	endOfAllocationFragBytes prometheus.Counter
	abandonedBytes           prometheus.Counter
	peerReclaims             prometheus.Counter
}

func newAllocatorMetrics(class Class) *allocatorMetrics {
	allocatorPrometheusMetrics.Do(func() {
		prometheus.MustRegister(allocatorAllocations)
		prometheus.MustRegister(allocatorAllocatedBytes)
		prometheus.MustRegister(allocatorFragmentsReleasedBytes)
		prometheus.MustRegister(allocatorPeerReclaims)
	})

	name := class.String()
	m := &allocatorMetrics{
		allocatedBytes:           allocatorAllocatedBytes.WithLabelValues(name),
		frontFragmentBytes:       allocatorFragmentsReleasedBytes.WithLabelValues(name, "front"),
		endOfAllocationFragBytes: allocatorFragmentsReleasedBytes.WithLabelValues(name, "end_of_allocation"),
		abandonedBytes:           allocatorFragmentsReleasedBytes.WithLabelValues(name, "abandoned"),
		peerReclaims:             allocatorPeerReclaims.WithLabelValues(name),
	}
	for path, pathName := range allocationPathNames {
		m.allocations[path] = allocatorAllocations.WithLabelValues(name, pathName)
	}
	return m
}

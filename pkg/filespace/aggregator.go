package filespace

// aggregator holds the extent from which small allocations of a single
// class are served. When the extent is fully consumed its address is
// retained, so that the next growth step can attempt to extend the
// backing store right where the extent ended.
type aggregator struct {
	address uint64
	size    uint64
	// Number of bytes obtained from the backing store since the
	// aggregator was last pointed at a fresh block. Used to decide
	// whether a peer holding space at the end of allocation has
	// grown large enough to be worth releasing.
	totalAcquired uint64
	growthQuantum uint64
	enabled       bool
}

func (ag *aggregator) end() uint64 {
	return ag.address + ag.size
}

func (ag *aggregator) extent() Extent {
	return Extent{Address: ag.address, Size: ag.size}
}

func (ag *aggregator) reset() {
	ag.address = 0
	ag.size = 0
	ag.totalAcquired = 0
}

// adjoins returns true if a section is directly in front of or
// directly behind the aggregator's extent.
func (ag *aggregator) adjoins(section Extent) bool {
	return ag.address != 0 && (section.End() == ag.address || ag.end() == section.Address)
}

// AggregatorState is a snapshot of the state of one of the aggregators
// of an Allocator.
type AggregatorState struct {
	Extent        Extent
	TotalAcquired uint64
	GrowthQuantum uint64
	Enabled       bool
}

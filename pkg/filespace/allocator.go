package filespace

import (
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Allocator hands out space within a single backing file for the
// metadata and raw data classes. Small requests are batched by
// carving them out of a per-class aggregator, which is grown in large
// steps through the BackingStoreDriver. Space that the aggregators
// can no longer use is handed to the FreeSpaceManager.
//
// Space at the top of the address space is reserved for temporary
// allocations. Regular allocations never extend past the start of
// this region.
//
// Allocator performs no locking. At most one call may be in flight for
// a given Allocator at any point in time, as operations on one class
// may alter the aggregator of the other class.
type Allocator struct {
	driver           BackingStoreDriver
	freeSpaceManager FreeSpaceManager

	strategy           Strategy
	alignment          uint64
	alignmentThreshold uint64
	temporaryBoundary  uint64

	aggregators [classCount]aggregator
	metrics     [classCount]*allocatorMetrics
}

// NewAllocator creates an Allocator with empty aggregators. It should
// be created when a file is opened for writing. ResetAll should be
// called before the file is closed, so that space held by the
// aggregators is given back.
func NewAllocator(driver BackingStoreDriver, freeSpaceManager FreeSpaceManager, configuration Configuration) (*Allocator, error) {
	configuration.SetDefaults()
	if err := configuration.Validate(); err != nil {
		return nil, util.StatusWrap(err, "Invalid file space configuration")
	}

	a := &Allocator{
		driver:             driver,
		freeSpaceManager:   freeSpaceManager,
		strategy:           configuration.Strategy,
		alignment:          configuration.AlignmentBytes,
		alignmentThreshold: configuration.AlignmentThresholdBytes,
		temporaryBoundary:  configuration.MaximumAddressBytes,
	}
	for class := Class(0); class < classCount; class++ {
		ac := configuration.aggregator(class)
		a.aggregators[class] = aggregator{
			growthQuantum: ac.GrowthQuantumBytes,
			enabled:       ac.Enabled,
		}
		a.metrics[class] = newAllocatorMetrics(class)
	}
	return a, nil
}

// IsAggregating returns whether requests of a given class are served
// through its aggregator.
func (a *Allocator) IsAggregating(class Class) bool {
	return class.isValid() && a.aggregators[class].enabled && a.strategy != StrategyDriverOnly
}

// Query returns the unused extent held by the aggregator of a class.
// An empty extent is returned if aggregation is disabled.
func (a *Allocator) Query(class Class) Extent {
	if !a.IsAggregating(class) {
		return Extent{}
	}
	return a.aggregators[class].extent()
}

// State returns a snapshot of all bookkeeping of the aggregator of a
// class.
func (a *Allocator) State(class Class) AggregatorState {
	if !class.isValid() {
		return AggregatorState{}
	}
	ag := &a.aggregators[class]
	return AggregatorState{
		Extent:        ag.extent(),
		TotalAcquired: ag.totalAcquired,
		GrowthQuantum: ag.growthQuantum,
		Enabled:       a.IsAggregating(class),
	}
}

// Reset the aggregator of a class, giving any space it holds back. The
// space is returned to the BackingStoreDriver if it is still placed at
// the end of allocation, so that the file can shrink. Otherwise it is
// handed to the FreeSpaceManager.
//
// Calling Reset on an aggregator that holds no space is a no-op.
func (a *Allocator) Reset(class Class) error {
	if err := class.validate(); err != nil {
		return err
	}
	ag := &a.aggregators[class]
	if ag.size > 0 {
		held := ag.extent()
		endOfAllocation, err := a.driver.GetEndOfAllocation(class)
		if err != nil {
			return util.StatusWrap(err, "Failed to obtain end of allocation")
		}
		if held.End() == endOfAllocation {
			if err := a.driver.Free(class, held.Address, held.Size); err != nil {
				return util.StatusWrapf(err, "Failed to release %s aggregator %s", class, held)
			}
		} else {
			a.freeSpaceManager.Reclaim(class, held)
		}
	}
	ag.reset()
	return nil
}

// ResetAll resets both aggregators. The aggregator at the higher
// address is reset first. When both aggregators are placed at the end
// of the file, this allows both of them to shrink the file.
func (a *Allocator) ResetAll() error {
	first, second := ClassMetadata, ClassRawData
	if a.aggregators[second].address > a.aggregators[first].address {
		first, second = second, first
	}
	if err := a.Reset(first); err != nil {
		return err
	}
	return a.Reset(second)
}

// AllocateTemporary allocates space from the temporary region at the
// top of the address space. The region grows downward, and may not
// meet the end of allocation.
func (a *Allocator) AllocateTemporary(size uint64) (uint64, error) {
	if size == 0 {
		return 0, status.Error(codes.InvalidArgument, "Cannot allocate zero bytes of temporary file space")
	}
	endOfAllocation, err := a.driver.GetEndOfAllocation(ClassMetadata)
	if err != nil {
		return 0, util.StatusWrap(err, "Failed to obtain end of allocation")
	}
	if size >= a.temporaryBoundary || a.temporaryBoundary-size <= endOfAllocation {
		return 0, status.Errorf(codes.OutOfRange, "Temporary allocation of %d bytes below address %d would overlap with regular file space ending at address %d", size, a.temporaryBoundary, endOfAllocation)
	}
	a.temporaryBoundary -= size
	return a.temporaryBoundary, nil
}

// IsTemporaryAddress returns whether an address lies within the
// temporary region.
func (a *Allocator) IsTemporaryAddress(address uint64) bool {
	return address >= a.temporaryBoundary
}

// TemporaryBoundary returns the lowest address of the temporary region.
func (a *Allocator) TemporaryBoundary() uint64 {
	return a.temporaryBoundary
}

// exceedsTemporaryBoundary returns whether placing size bytes at a
// given address would overlap with the temporary region.
func (a *Allocator) exceedsTemporaryBoundary(address, size uint64) bool {
	return size > a.temporaryBoundary || address > a.temporaryBoundary-size
}

func (a *Allocator) newRangeViolation(address, size uint64) error {
	return status.Errorf(codes.OutOfRange, "Allocation of %d bytes at address %d would overlap with temporary file space starting at address %d", size, address, a.temporaryBoundary)
}

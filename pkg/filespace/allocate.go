package filespace

import (
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// allocationResult is produced by the allocation policy. Besides the
// address of the allocated space, it contains all extents that became
// unusable as part of serving the request. These are handed to the
// FreeSpaceManager only after the policy has committed its changes.
type allocationResult struct {
	address uint64
	path    allocationPath

	// Alignment gap carved off the front of the aggregator.
	frontFragment Extent
	// Alignment gap produced by the BackingStoreDriver.
	endOfAllocationFragment Extent
	// Remainder of an aggregator that got replaced by a fresh
	// block.
	abandoned Extent
}

// Allocate size bytes of file space for a given class.
//
// Requests are served from the aggregator of the class if aggregation
// is enabled for it. Otherwise the request is forwarded to the
// BackingStoreDriver directly. Allocations of at least the configured
// alignment threshold are aligned.
//
// Upon failure, the aggregator of the class is left untouched. The
// peer aggregator may have released its space to the
// BackingStoreDriver, in which case it has been reset accordingly.
func (a *Allocator) Allocate(class Class, size uint64) (uint64, error) {
	if err := class.validate(); err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, status.Error(codes.InvalidArgument, "Cannot allocate zero bytes of file space")
	}
	endOfAllocation, err := a.driver.GetEndOfAllocation(class)
	if err != nil {
		return 0, util.StatusWrap(err, "Failed to obtain end of allocation")
	}

	var result allocationResult
	if a.IsAggregating(class) {
		result, err = a.allocateFromAggregator(class, size, endOfAllocation)
	} else {
		result, err = a.allocateFromDriver(class, size, endOfAllocation, allocationPathBypass)
	}
	if err != nil {
		return 0, err
	}

	m := a.metrics[class]
	if f := result.frontFragment; !f.IsEmpty() {
		a.freeSpaceManager.Reclaim(class, f)
		m.frontFragmentBytes.Add(float64(f.Size))
	}
	if f := result.endOfAllocationFragment; !f.IsEmpty() {
		a.freeSpaceManager.Reclaim(class, f)
		m.endOfAllocationFragBytes.Add(float64(f.Size))
	}
	if f := result.abandoned; !f.IsEmpty() {
		a.freeSpaceManager.Reclaim(class, f)
		m.abandonedBytes.Add(float64(f.Size))
	}
	m.allocations[result.path].Inc()
	m.allocatedBytes.Add(float64(size))
	return result.address, nil
}

func (a *Allocator) requiredAlignment(size uint64) uint64 {
	if a.alignment > 1 && size >= a.alignmentThreshold {
		return a.alignment
	}
	return 0
}

func (a *Allocator) allocateFromAggregator(class Class, size, endOfAllocation uint64) (allocationResult, error) {
	ag := &a.aggregators[class]

	// If the aggregator is misaligned, the space up to the next
	// aligned address can't be used for this request.
	var frontFragment Extent
	if alignment := a.requiredAlignment(size); alignment != 0 && ag.address > 0 {
		if misalignment := ag.address % alignment; misalignment != 0 {
			frontFragment = Extent{
				Address: ag.address,
				Size:    alignment - misalignment,
			}
		}
	}

	if needed := size + frontFragment.Size; needed <= ag.size {
		address := ag.address + frontFragment.Size
		ag.address += needed
		ag.size -= needed
		return allocationResult{
			address:       address,
			path:          allocationPathFits,
			frontFragment: frontFragment,
		}, nil
	}
	if size >= ag.growthQuantum {
		return a.allocateLargeBlock(class, size, endOfAllocation, frontFragment)
	}
	return a.allocateSmallBlock(class, size, endOfAllocation, frontFragment)
}

// allocateLargeBlock serves requests that are too big to be carved out
// of a regular aggregator block. The aggregator is only grown if that
// can be done in place. Otherwise the request is served by the
// BackingStoreDriver, leaving the aggregator as is.
func (a *Allocator) allocateLargeBlock(class Class, size, endOfAllocation uint64, frontFragment Extent) (allocationResult, error) {
	ag := &a.aggregators[class]
	extension := size + frontFragment.Size
	if a.exceedsTemporaryBoundary(ag.end(), extension) {
		return allocationResult{}, a.newRangeViolation(ag.end(), extension)
	}

	if ag.address > 0 {
		extended, err := a.driver.TryExtend(class, ag.end(), extension)
		if err != nil {
			return allocationResult{}, util.StatusWrapf(err, "Failed to extend %s aggregator %s by %d bytes", class, ag.extent(), extension)
		}
		if extended {
			// The request is served from the front of the
			// aggregator, while the aggregator moves up by
			// the amount of space gained.
			address := ag.address + frontFragment.Size
			ag.address += extension
			ag.totalAcquired += extension
			return allocationResult{
				address:       address,
				path:          allocationPathExtended,
				frontFragment: frontFragment,
			}, nil
		}
	}
	return a.allocateFromDriver(class, size, endOfAllocation, allocationPathLargeBlock)
}

// allocateSmallBlock serves requests that don't fit in the aggregator,
// by either growing the aggregator in place or by replacing it with a
// fresh block.
func (a *Allocator) allocateSmallBlock(class Class, size, endOfAllocation uint64, frontFragment Extent) (allocationResult, error) {
	ag := &a.aggregators[class]
	extension := ag.growthQuantum
	if slack := extension - size; frontFragment.Size > slack {
		extension += frontFragment.Size - slack
	}
	if a.exceedsTemporaryBoundary(ag.end(), extension) {
		return allocationResult{}, a.newRangeViolation(ag.end(), extension)
	}

	if ag.address > 0 {
		extended, err := a.driver.TryExtend(class, ag.end(), extension)
		if err != nil {
			return allocationResult{}, util.StatusWrapf(err, "Failed to extend %s aggregator %s by %d bytes", class, ag.extent(), extension)
		}
		if extended {
			ag.address += frontFragment.Size
			ag.size += extension - frontFragment.Size
			ag.totalAcquired += extension
			address := ag.address
			ag.address += size
			ag.size -= size
			return allocationResult{
				address:       address,
				path:          allocationPathExtended,
				frontFragment: frontFragment,
			}, nil
		}
	}

	if a.exceedsTemporaryBoundary(endOfAllocation, ag.growthQuantum) {
		return allocationResult{}, a.newRangeViolation(endOfAllocation, ag.growthQuantum)
	}
	if err := a.reclaimPeerAtEndOfAllocation(class.Peer(), endOfAllocation); err != nil {
		return allocationResult{}, err
	}
	allocation, err := a.allocateGrant(class, ag.growthQuantum)
	if err != nil {
		return allocationResult{}, err
	}

	// Point the aggregator at the new block. Whatever remained of
	// the old block can no longer be used by the aggregator.
	abandoned := ag.extent()
	ag.address = allocation.Address + size
	ag.size = ag.growthQuantum - size
	ag.totalAcquired = ag.growthQuantum
	return allocationResult{
		address:                 allocation.Address,
		path:                    allocationPathReplaced,
		endOfAllocationFragment: allocation.Fragment,
		abandoned:               abandoned,
	}, nil
}

// allocateFromDriver serves a request by obtaining a dedicated block
// from the BackingStoreDriver, bypassing the aggregator.
func (a *Allocator) allocateFromDriver(class Class, size, endOfAllocation uint64, path allocationPath) (allocationResult, error) {
	if a.exceedsTemporaryBoundary(endOfAllocation, size) {
		return allocationResult{}, a.newRangeViolation(endOfAllocation, size)
	}
	if path == allocationPathLargeBlock {
		if err := a.reclaimPeerAtEndOfAllocation(class.Peer(), endOfAllocation); err != nil {
			return allocationResult{}, err
		}
	}
	allocation, err := a.allocateGrant(class, size)
	if err != nil {
		return allocationResult{}, err
	}
	return allocationResult{
		address:                 allocation.Address,
		path:                    path,
		endOfAllocationFragment: allocation.Fragment,
	}, nil
}

// allocateGrant obtains a block from the BackingStoreDriver. Because
// the driver may insert an alignment fragment, the resulting block is
// checked against the temporary region once more. Blocks that overlap
// with it are given back.
func (a *Allocator) allocateGrant(class Class, size uint64) (Allocation, error) {
	allocation, err := a.driver.Allocate(class, size)
	if err != nil {
		return Allocation{}, util.StatusWrapf(err, "Failed to allocate %d bytes of %s space from the backing store", size, class)
	}
	if !a.exceedsTemporaryBoundary(allocation.Address, size) {
		return allocation, nil
	}

	if err := a.driver.Free(class, allocation.Address, size); err != nil {
		return Allocation{}, util.StatusWrapf(err, "Failed to release block at address %d overlapping with temporary file space", allocation.Address)
	}
	if f := allocation.Fragment; !f.IsEmpty() {
		if err := a.driver.Free(class, f.Address, f.Size); err != nil {
			return Allocation{}, util.StatusWrapf(err, "Failed to release fragment %s in front of block overlapping with temporary file space", f)
		}
	}
	return Allocation{}, a.newRangeViolation(allocation.Address, size)
}

// reclaimPeerAtEndOfAllocation releases the space held by the peer
// aggregator to the BackingStoreDriver if it sits at the end of
// allocation, and has already handed out more than a growth quantum.
// This prevents the peer's unused space from getting stranded below
// the block that is about to be allocated.
func (a *Allocator) reclaimPeerAtEndOfAllocation(peerClass Class, endOfAllocation uint64) error {
	peer := &a.aggregators[peerClass]
	if peer.size == 0 || peer.end() != endOfAllocation || peer.totalAcquired < peer.size+peer.growthQuantum {
		return nil
	}
	if err := a.driver.Free(peerClass, peer.address, peer.size); err != nil {
		return util.StatusWrapf(err, "Failed to release %s aggregator %s", peerClass, peer.extent())
	}
	peer.reset()
	a.metrics[peerClass].peerReclaims.Inc()
	return nil
}

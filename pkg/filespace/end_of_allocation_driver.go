package filespace

import (
	"math"

	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type endOfAllocationDriver struct {
	storage            Storage
	endOfAllocation    uint64
	maximumAddress     uint64
	alignment          uint64
	alignmentThreshold uint64
}

// NewEndOfAllocationDriver creates a BackingStoreDriver that hands out
// space by moving up a single end of allocation address, starting at
// a base address. Space below the base address is not managed, and
// can be used to store a superblock.
//
// Allocations of at least alignmentThreshold bytes are placed at a
// multiple of alignment. The space skipped to achieve this is returned
// to the caller as a fragment. Space can only be freed if it is placed
// at the end of allocation. Requests to free other space are ignored,
// as the caller is expected to keep track of it.
func NewEndOfAllocationDriver(storage Storage, baseAddress, maximumAddress, alignment, alignmentThreshold uint64) BackingStoreDriver {
	if maximumAddress == 0 {
		maximumAddress = math.MaxUint64
	}
	return &endOfAllocationDriver{
		storage:            storage,
		endOfAllocation:    baseAddress,
		maximumAddress:     maximumAddress,
		alignment:          alignment,
		alignmentThreshold: alignmentThreshold,
	}
}

func (d *endOfAllocationDriver) exceedsMaximumAddress(address, size uint64) bool {
	return size > d.maximumAddress || address > d.maximumAddress-size
}

func (d *endOfAllocationDriver) setEndOfAllocation(endOfAllocation uint64) error {
	if endOfAllocation > math.MaxInt64 {
		return status.Errorf(codes.OutOfRange, "End of allocation %d cannot be represented as a file size", endOfAllocation)
	}
	if err := d.storage.Truncate(int64(endOfAllocation)); err != nil {
		return util.StatusWrapfWithCode(err, codes.Internal, "Failed to resize storage to %d bytes", endOfAllocation)
	}
	d.endOfAllocation = endOfAllocation
	return nil
}

func (d *endOfAllocationDriver) Allocate(class Class, size uint64) (Allocation, error) {
	var fragment Extent
	if d.alignment > 1 && size >= d.alignmentThreshold {
		if misalignment := d.endOfAllocation % d.alignment; misalignment != 0 {
			fragment = Extent{
				Address: d.endOfAllocation,
				Size:    d.alignment - misalignment,
			}
		}
	}

	address := d.endOfAllocation + fragment.Size
	if d.exceedsMaximumAddress(d.endOfAllocation, fragment.Size) || d.exceedsMaximumAddress(address, size) {
		return Allocation{}, status.Errorf(codes.ResourceExhausted, "Cannot allocate %d bytes at address %d, as the maximum address is %d", size, address, d.maximumAddress)
	}
	if err := d.setEndOfAllocation(address + size); err != nil {
		return Allocation{}, err
	}
	return Allocation{
		Address:  address,
		Fragment: fragment,
	}, nil
}

func (d *endOfAllocationDriver) Free(class Class, address, size uint64) error {
	if address+size != d.endOfAllocation {
		return nil
	}
	return d.setEndOfAllocation(address)
}

func (d *endOfAllocationDriver) TryExtend(class Class, blockEnd, extra uint64) (bool, error) {
	if blockEnd != d.endOfAllocation || d.exceedsMaximumAddress(blockEnd, extra) {
		return false, nil
	}
	if err := d.setEndOfAllocation(blockEnd + extra); err != nil {
		return false, err
	}
	return true, nil
}

func (d *endOfAllocationDriver) GetEndOfAllocation(class Class) (uint64, error) {
	return d.endOfAllocation, nil
}

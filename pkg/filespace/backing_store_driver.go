package filespace

// Allocation of space handed out by BackingStoreDriver.Allocate.
type Allocation struct {
	// Address of the first byte of the requested space.
	Address uint64
	// Space that the driver had to skip at the end of allocation
	// to satisfy alignment. It lies directly in front of Address
	// and is owned by the caller, who should hand it to the
	// FreeSpaceManager.
	Fragment Extent
}

// BackingStoreDriver is the only component that can actually grow or
// shrink the file. Allocator uses it to obtain large extents that are
// subsequently handed out in smaller pieces.
//
// Errors returned by implementations are expected to be gRPC status
// errors. They are propagated by Allocator with their code preserved.
type BackingStoreDriver interface {
	// Allocate a block of exactly size bytes at the end of
	// allocation.
	Allocate(class Class, size uint64) (Allocation, error)
	// Free a block of space. Implementations may only be able to
	// reclaim space that is placed at the end of allocation.
	Free(class Class, address, size uint64) error
	// TryExtend attempts to grow the block ending at blockEnd by
	// extra bytes without moving it. This is only possible if
	// blockEnd is the end of allocation.
	TryExtend(class Class, blockEnd, extra uint64) (bool, error)
	// GetEndOfAllocation returns the high-water mark of the space
	// granted by the driver.
	GetEndOfAllocation(class Class) (uint64, error)
}

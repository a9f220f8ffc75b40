package filespace

// FreeSpaceManager accepts extents that are no longer in use, so that
// they may be reused by future allocations. The way in which it indexes
// these extents is opaque to Allocator.
type FreeSpaceManager interface {
	Reclaim(class Class, extent Extent)
}

package filespace

import (
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Absorption describes how a free section and an aggregator that
// adjoin each other can be merged.
type Absorption int

const (
	// NoAbsorption indicates that the section and the aggregator
	// can't be merged, as they are not adjacent.
	NoAbsorption Absorption = iota
	// SectionAbsorbsAggregator indicates that the section should
	// take over the space of the aggregator. This is chosen when
	// the aggregator would otherwise grow past its growth quantum.
	SectionAbsorbsAggregator
	// AggregatorAbsorbsSection indicates that the aggregator should
	// take over the space of the section.
	AggregatorAbsorbsSection
)

func (a Absorption) String() string {
	switch a {
	case SectionAbsorbsAggregator:
		return "SectionAbsorbsAggregator"
	case AggregatorAbsorbsSection:
		return "AggregatorAbsorbsSection"
	default:
		return "NoAbsorption"
	}
}

// TryExtend attempts to grow a block owned by the caller that ends at
// blockEnd by extra bytes. This is only possible if the block is
// directly followed by the aggregator of the class. If the aggregator
// sits at the end of allocation, the backing store is grown and the
// aggregator moves up. Otherwise the block grows into the space of the
// aggregator, if it has enough of it left.
func (a *Allocator) TryExtend(class Class, blockEnd, extra uint64) (bool, error) {
	if err := class.validate(); err != nil {
		return false, err
	}
	if extra == 0 {
		return false, status.Error(codes.InvalidArgument, "Cannot extend a block by zero bytes")
	}
	if !a.IsAggregating(class) {
		return false, nil
	}
	ag := &a.aggregators[class]
	if ag.address == 0 || blockEnd != ag.address {
		return false, nil
	}

	if !a.exceedsTemporaryBoundary(ag.end(), extra) {
		extended, err := a.driver.TryExtend(class, ag.end(), extra)
		if err != nil {
			return false, util.StatusWrapf(err, "Failed to extend %s aggregator %s by %d bytes", class, ag.extent(), extra)
		}
		if extended {
			ag.address += extra
			ag.totalAcquired += extra
			return true, nil
		}
	}
	if ag.size >= extra {
		ag.address += extra
		ag.size -= extra
		return true, nil
	}
	return false, nil
}

// CanAbsorb returns whether a free section adjoins the aggregator of a
// class and, if so, which of the two should absorb the other.
func (a *Allocator) CanAbsorb(class Class, section Extent) Absorption {
	if !a.IsAggregating(class) {
		return NoAbsorption
	}
	ag := &a.aggregators[class]
	if section.IsEmpty() || !ag.adjoins(section) {
		return NoAbsorption
	}
	if ag.size+section.Size >= ag.growthQuantum {
		return SectionAbsorbsAggregator
	}
	return AggregatorAbsorbsSection
}

// Absorb merges a free section with the aggregator of a class that it
// adjoins. If the aggregator would become too large, the section
// absorbs the aggregator, causing the section to grow and the
// aggregator to be reset. Otherwise the aggregator absorbs the section.
// The former can be prevented by setting allowSectionAbsorb to false.
func (a *Allocator) Absorb(class Class, section *Extent, allowSectionAbsorb bool) error {
	if err := class.validate(); err != nil {
		return err
	}
	if !a.IsAggregating(class) {
		return status.Errorf(codes.InvalidArgument, "Aggregation is disabled for class %s", class)
	}
	ag := &a.aggregators[class]
	if section.IsEmpty() || !ag.adjoins(*section) {
		return status.Errorf(codes.InvalidArgument, "Section %s does not adjoin %s aggregator %s", *section, class, ag.extent())
	}

	if allowSectionAbsorb && ag.size+section.Size >= ag.growthQuantum {
		if section.End() != ag.address {
			section.Address -= ag.size
		}
		section.Size += ag.size
		ag.reset()
		return nil
	}

	if section.End() == ag.address {
		// Space that is absorbed at the front was never
		// obtained by growing the aggregator. Don't let it
		// count towards the space acquired.
		ag.address -= section.Size
		ag.size += section.Size
		ag.totalAcquired -= min(ag.totalAcquired, section.Size)
	} else {
		ag.size += section.Size
	}
	return nil
}

// Free space that is no longer used. Space at the end of allocation is
// returned to the BackingStoreDriver. Space adjoining the aggregator
// of the class is merged with it. Any other space is handed to the
// FreeSpaceManager.
func (a *Allocator) Free(class Class, extent Extent) error {
	if err := class.validate(); err != nil {
		return err
	}
	if extent.IsEmpty() {
		return nil
	}
	if a.IsTemporaryAddress(extent.Address) || a.exceedsTemporaryBoundary(extent.Address, extent.Size) {
		return status.Errorf(codes.InvalidArgument, "Extent %s overlaps with temporary file space starting at address %d", extent, a.temporaryBoundary)
	}

	endOfAllocation, err := a.driver.GetEndOfAllocation(class)
	if err != nil {
		return util.StatusWrap(err, "Failed to obtain end of allocation")
	}
	if extent.End() == endOfAllocation {
		return a.freeToDriver(class, extent)
	}

	switch a.CanAbsorb(class, extent) {
	case AggregatorAbsorbsSection:
		return a.Absorb(class, &extent, true)
	case SectionAbsorbsAggregator:
		ag := &a.aggregators[class]
		merged := Extent{
			Address: min(extent.Address, ag.address),
			Size:    extent.Size + ag.size,
		}
		if merged.End() == endOfAllocation {
			// The aggregator sits at the end of allocation.
			// Shrink the file, instead of growing the free
			// space manager.
			if err := a.freeToDriver(class, merged); err != nil {
				return err
			}
			ag.reset()
			return nil
		}
		if err := a.Absorb(class, &extent, true); err != nil {
			return err
		}
	}
	a.freeSpaceManager.Reclaim(class, extent)
	return nil
}

func (a *Allocator) freeToDriver(class Class, extent Extent) error {
	if err := a.driver.Free(class, extent.Address, extent.Size); err != nil {
		return util.StatusWrapf(err, "Failed to release %s to the backing store", extent)
	}
	return nil
}

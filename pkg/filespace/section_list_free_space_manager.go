package filespace

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// SectionListFreeSpaceManager is a FreeSpaceManager that stores free
// sections in an address ordered list per class. Adjacent sections are
// coalesced as they are reclaimed.
//
// Lookups are performed by scanning the list, which makes this
// implementation suitable for files with a modest amount of
// fragmentation.
type SectionListFreeSpaceManager struct {
	lock     sync.Mutex
	sections [classCount][]Extent
}

var _ FreeSpaceManager = (*SectionListFreeSpaceManager)(nil)

// NewSectionListFreeSpaceManager creates a SectionListFreeSpaceManager
// that does not contain any free sections.
func NewSectionListFreeSpaceManager() *SectionListFreeSpaceManager {
	return &SectionListFreeSpaceManager{}
}

// Reclaim a section of free space. It is invalid to reclaim space that
// is already free.
func (m *SectionListFreeSpaceManager) Reclaim(class Class, extent Extent) {
	if !class.isValid() {
		panic(fmt.Sprintf("Attempted to reclaim section %s for invalid class %d", extent, int(class)))
	}
	if extent.IsEmpty() {
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s := m.sections[class]
	i := sort.Search(len(s), func(i int) bool { return s[i].Address >= extent.Address })
	if (i > 0 && s[i-1].End() > extent.Address) || (i < len(s) && extent.End() > s[i].Address) {
		panic(fmt.Sprintf("Attempted to reclaim section %s, even though it overlaps with free space", extent))
	}

	mergePrevious := i > 0 && s[i-1].End() == extent.Address
	mergeNext := i < len(s) && extent.End() == s[i].Address
	switch {
	case mergePrevious && mergeNext:
		s[i-1].Size += extent.Size + s[i].Size
		s = slices.Delete(s, i, i+1)
	case mergePrevious:
		s[i-1].Size += extent.Size
	case mergeNext:
		s[i].Address = extent.Address
		s[i].Size += extent.Size
	default:
		s = slices.Insert(s, i, extent)
	}
	m.sections[class] = s
}

// Take size bytes of free space of a given class, placed at a multiple
// of alignment. The first section that is large enough is used. Space
// in front of and behind the allocation remains free.
func (m *SectionListFreeSpaceManager) Take(class Class, size, alignment uint64) (uint64, bool) {
	if !class.isValid() || size == 0 {
		return 0, false
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s := m.sections[class]
	for i, section := range s {
		address := section.Address
		if alignment > 1 {
			if misalignment := address % alignment; misalignment != 0 {
				address += alignment - misalignment
			}
		}
		head := address - section.Address
		if head > section.Size || section.Size-head < size {
			continue
		}

		var remainder []Extent
		if head > 0 {
			remainder = append(remainder, Extent{Address: section.Address, Size: head})
		}
		if tail := section.Size - head - size; tail > 0 {
			remainder = append(remainder, Extent{Address: address + size, Size: tail})
		}
		m.sections[class] = slices.Replace(s, i, i+1, remainder...)
		return address, true
	}
	return 0, false
}

// Sections returns a copy of the free sections of a class, ordered by
// address.
func (m *SectionListFreeSpaceManager) Sections(class Class) []Extent {
	if !class.isValid() {
		return nil
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	return slices.Clone(m.sections[class])
}

// TotalSize returns the number of free bytes across all classes.
func (m *SectionListFreeSpaceManager) TotalSize() uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()

	var total uint64
	for _, sections := range m.sections {
		for _, section := range sections {
			total += section.Size
		}
	}
	return total
}

package filespace

import (
	"fmt"
)

// Extent is a contiguous range of bytes within the backing file.
// Extents with a zero size are considered to be empty. They are also
// used to describe free sections exchanged with the FreeSpaceManager.
type Extent struct {
	Address uint64
	Size    uint64
}

// End returns the address of the first byte past the extent.
func (e Extent) End() uint64 {
	return e.Address + e.Size
}

// IsEmpty returns true if the extent does not contain any bytes.
func (e Extent) IsEmpty() bool {
	return e.Size == 0
}

func (e Extent) String() string {
	return fmt.Sprintf("[%d, %d)", e.Address, e.End())
}

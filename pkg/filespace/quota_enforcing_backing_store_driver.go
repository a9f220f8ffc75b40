package filespace

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type quotaEnforcingBackingStoreDriver struct {
	base           BackingStoreDriver
	bytesRemaining quotaMetric
}

// NewQuotaEnforcingBackingStoreDriver creates a BackingStoreDriver
// that enforces a quota on the amount of space that may be obtained
// from an underlying BackingStoreDriver. Alignment fragments count
// towards the quota, as they occupy space in the file all the same.
func NewQuotaEnforcingBackingStoreDriver(base BackingStoreDriver, maximumBytes uint64) BackingStoreDriver {
	d := &quotaEnforcingBackingStoreDriver{
		base: base,
	}
	d.bytesRemaining.init(maximumBytes)
	return d
}

func (d *quotaEnforcingBackingStoreDriver) Allocate(class Class, size uint64) (Allocation, error) {
	if !d.bytesRemaining.allocate(size) {
		return Allocation{}, status.Error(codes.ResourceExhausted, "Backing store quota reached")
	}
	allocation, err := d.base.Allocate(class, size)
	if err != nil {
		d.bytesRemaining.release(size)
		return Allocation{}, err
	}
	if f := allocation.Fragment.Size; f > 0 && !d.bytesRemaining.allocate(f) {
		// The fragment can't be accounted for. Undo the
		// allocation entirely.
		d.bytesRemaining.release(size)
		if err := d.base.Free(class, allocation.Address, size); err != nil {
			return Allocation{}, err
		}
		if err := d.base.Free(class, allocation.Fragment.Address, f); err != nil {
			return Allocation{}, err
		}
		return Allocation{}, status.Error(codes.ResourceExhausted, "Backing store quota reached")
	}
	return allocation, nil
}

func (d *quotaEnforcingBackingStoreDriver) Free(class Class, address, size uint64) error {
	if err := d.base.Free(class, address, size); err != nil {
		return err
	}
	d.bytesRemaining.release(size)
	return nil
}

func (d *quotaEnforcingBackingStoreDriver) TryExtend(class Class, blockEnd, extra uint64) (bool, error) {
	if !d.bytesRemaining.allocate(extra) {
		return false, nil
	}
	extended, err := d.base.TryExtend(class, blockEnd, extra)
	if err != nil || !extended {
		d.bytesRemaining.release(extra)
	}
	return extended, err
}

func (d *quotaEnforcingBackingStoreDriver) GetEndOfAllocation(class Class) (uint64, error) {
	return d.base.GetEndOfAllocation(class)
}

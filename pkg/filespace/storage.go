package filespace

// Storage is resized by EndOfAllocationDriver every time the end of
// allocation changes. *os.File implements this interface.
type Storage interface {
	Truncate(size int64) error
}

type voidStorage struct{}

func (voidStorage) Truncate(size int64) error {
	return nil
}

// VoidStorage is an implementation of Storage that ignores all resize
// requests. It can be used to perform address space bookkeeping
// without any file backing it.
var VoidStorage Storage = voidStorage{}

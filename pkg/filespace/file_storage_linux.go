//go:build linux

package filespace

import (
	"os"

	"github.com/buildbarn/bb-storage/pkg/util"

	"golang.org/x/sys/unix"
)

type fileStorage struct {
	file *os.File
	size int64
}

// NewFileStorage creates a Storage that is backed by a file. Growth of
// the file is performed using fallocate(), so that the space of the
// file is reserved on disk right away. This causes allocations to fail
// early if the file system runs out of space.
func NewFileStorage(file *os.File) (Storage, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, util.StatusWrapf(err, "Failed to obtain size of file %#v", file.Name())
	}
	return &fileStorage{
		file: file,
		size: info.Size(),
	}, nil
}

func (s *fileStorage) Truncate(size int64) error {
	if size > s.size {
		if err := unix.Fallocate(int(s.file.Fd()), 0, s.size, size-s.size); err != nil {
			return err
		}
	} else if err := s.file.Truncate(size); err != nil {
		return err
	}
	s.size = size
	return nil
}

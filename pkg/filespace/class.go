package filespace

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Class of content for which file space is allocated. Each class has
// its own aggregator. The aggregators of both classes share the same
// address space, which is why each of them is aware of the other.
type Class int

const (
	// ClassMetadata is used for structural extents, such as object
	// headers, heaps and B-tree nodes.
	ClassMetadata Class = iota
	// ClassRawData is used for extents containing raw dataset
	// payload.
	ClassRawData

	classCount = 2
)

var classNames = [classCount]string{
	ClassMetadata: "metadata",
	ClassRawData:  "raw_data",
}

// ParseClass converts the textual name of a class, as used in
// configuration files and metric labels, back to a Class.
func ParseClass(name string) (Class, error) {
	for c, n := range classNames {
		if n == name {
			return Class(c), nil
		}
	}
	return 0, status.Errorf(codes.InvalidArgument, "Unknown file space class %#v", name)
}

func (c Class) String() string {
	if !c.isValid() {
		return "unknown"
	}
	return classNames[c]
}

// Peer returns the class whose aggregator shares the address space
// with the aggregator of this class.
func (c Class) Peer() Class {
	if c == ClassMetadata {
		return ClassRawData
	}
	return ClassMetadata
}

func (c Class) isValid() bool {
	return c >= 0 && c < classCount
}

func (c Class) validate() error {
	if !c.isValid() {
		return status.Errorf(codes.InvalidArgument, "Invalid file space class %d", int(c))
	}
	return nil
}

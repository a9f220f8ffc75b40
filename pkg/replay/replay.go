package replay

import (
	"context"
	"os"

	configuration "github.com/buildbarn/bb-filespace/pkg/configuration/bb_filespace_replay"
	"github.com/buildbarn/bb-filespace/pkg/filespace"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Summary of the state of a file after all operations have been
// replayed and the aggregators have been reset.
type Summary struct {
	Name string
	// Address of the first byte past the space in use.
	EndOfAllocation uint64
	// Number of bytes in blocks that were allocated, but not freed.
	OutstandingBytes uint64
	// Number of bytes tracked by the free space manager.
	FreeBytes uint64
	// Number of blocks that were allocated, but not freed.
	Blocks int
	// Lowest address of the temporary region.
	TemporaryBoundary uint64
}

type block struct {
	class  filespace.Class
	extent filespace.Extent
}

type replayer struct {
	allocator        *filespace.Allocator
	driver           filespace.BackingStoreDriver
	freeSpaceManager *filespace.SectionListFreeSpaceManager
	fileSpace        filespace.Configuration
	blocks           map[string]*block
}

// ReplayFile applies a sequence of file space operations against a
// fresh Allocator. Once all operations have been applied, both
// aggregators are reset and it is validated that no space has been
// lost or handed out twice.
func ReplayFile(ctx context.Context, fileConfiguration *configuration.FileConfiguration) (Summary, error) {
	storage := filespace.VoidStorage
	if fileConfiguration.Path != "" {
		file, err := os.OpenFile(fileConfiguration.Path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o666)
		if err != nil {
			return Summary{}, util.StatusWrapf(err, "Failed to open file %#v", fileConfiguration.Path)
		}
		defer file.Close()
		if storage, err = filespace.NewFileStorage(file); err != nil {
			return Summary{}, err
		}
	}
	baseAddress := fileConfiguration.BaseAddressBytes
	if err := storage.Truncate(int64(baseAddress)); err != nil {
		return Summary{}, util.StatusWrapf(err, "Failed to resize storage to base address %d", baseAddress)
	}

	fileSpace := fileConfiguration.FileSpace
	fileSpace.SetDefaults()
	driver := filespace.NewEndOfAllocationDriver(
		storage,
		baseAddress,
		fileConfiguration.MaximumAddressBytes,
		fileSpace.AlignmentBytes,
		fileSpace.AlignmentThresholdBytes)
	if fileConfiguration.QuotaBytes > 0 {
		driver = filespace.NewQuotaEnforcingBackingStoreDriver(driver, fileConfiguration.QuotaBytes)
	}
	driver = filespace.NewMetricsBackingStoreDriver(driver)

	freeSpaceManager := filespace.NewSectionListFreeSpaceManager()
	allocator, err := filespace.NewAllocator(driver, freeSpaceManager, fileSpace)
	if err != nil {
		return Summary{}, err
	}

	r := replayer{
		allocator:        allocator,
		driver:           driver,
		freeSpaceManager: freeSpaceManager,
		fileSpace:        fileSpace,
		blocks:           map[string]*block{},
	}
	for i, operation := range fileConfiguration.Operations {
		if err := ctx.Err(); err != nil {
			return Summary{}, util.StatusFromContext(ctx)
		}
		if err := r.apply(operation); err != nil {
			return Summary{}, util.StatusWrapf(err, "Operation %d", i)
		}
	}

	if err := allocator.ResetAll(); err != nil {
		return Summary{}, util.StatusWrap(err, "Failed to reset aggregators")
	}
	summary, err := r.summarize(baseAddress)
	if err != nil {
		return Summary{}, err
	}
	summary.Name = fileConfiguration.Name
	return summary, nil
}

func (r *replayer) apply(operation configuration.Operation) error {
	switch {
	case operation.Allocate != nil:
		return r.allocate(operation.Allocate)
	case operation.Free != nil:
		return r.free(operation.Free)
	case operation.Extend != nil:
		return r.extend(operation.Extend)
	case operation.AllocateTemporary != nil:
		_, err := r.allocator.AllocateTemporary(operation.AllocateTemporary.SizeBytes)
		return err
	case operation.Reset != nil:
		class, err := filespace.ParseClass(operation.Reset.Class)
		if err != nil {
			return err
		}
		return r.allocator.Reset(class)
	default:
		return status.Error(codes.InvalidArgument, "No operation type set")
	}
}

func (r *replayer) allocate(operation *configuration.AllocateOperation) error {
	if _, ok := r.blocks[operation.Name]; ok {
		return status.Errorf(codes.InvalidArgument, "Block %#v already exists", operation.Name)
	}
	class, err := filespace.ParseClass(operation.Class)
	if err != nil {
		return err
	}

	// Prefer reusing space that was freed previously.
	var alignment uint64
	if r.fileSpace.AlignmentBytes > 1 && operation.SizeBytes >= r.fileSpace.AlignmentThresholdBytes {
		alignment = r.fileSpace.AlignmentBytes
	}
	address, ok := r.freeSpaceManager.Take(class, operation.SizeBytes, alignment)
	if !ok {
		if address, err = r.allocator.Allocate(class, operation.SizeBytes); err != nil {
			return util.StatusWrapf(err, "Failed to allocate block %#v", operation.Name)
		}
	}
	r.blocks[operation.Name] = &block{
		class:  class,
		extent: filespace.Extent{Address: address, Size: operation.SizeBytes},
	}
	return nil
}

func (r *replayer) getBlock(name string) (*block, error) {
	b, ok := r.blocks[name]
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "Block %#v does not exist", name)
	}
	return b, nil
}

func (r *replayer) free(operation *configuration.FreeOperation) error {
	b, err := r.getBlock(operation.Name)
	if err != nil {
		return err
	}
	if err := r.allocator.Free(b.class, b.extent); err != nil {
		return util.StatusWrapf(err, "Failed to free block %#v", operation.Name)
	}
	delete(r.blocks, operation.Name)
	return nil
}

func (r *replayer) extend(operation *configuration.ExtendOperation) error {
	b, err := r.getBlock(operation.Name)
	if err != nil {
		return err
	}
	extended, err := r.allocator.TryExtend(b.class, b.extent.End(), operation.ExtraBytes)
	if err != nil {
		return util.StatusWrapf(err, "Failed to extend block %#v", operation.Name)
	}
	if extended {
		b.extent.Size += operation.ExtraBytes
	}
	return nil
}

func (r *replayer) summarize(baseAddress uint64) (Summary, error) {
	endOfAllocation, err := r.driver.GetEndOfAllocation(filespace.ClassMetadata)
	if err != nil {
		return Summary{}, util.StatusWrap(err, "Failed to obtain end of allocation")
	}
	summary := Summary{
		EndOfAllocation:   endOfAllocation,
		FreeBytes:         r.freeSpaceManager.TotalSize(),
		Blocks:            len(r.blocks),
		TemporaryBoundary: r.allocator.TemporaryBoundary(),
	}
	for _, b := range r.blocks {
		summary.OutstandingBytes += b.extent.Size
	}

	accounted := summary.OutstandingBytes + summary.FreeBytes
	for _, class := range []filespace.Class{filespace.ClassMetadata, filespace.ClassRawData} {
		accounted += r.allocator.Query(class).Size
	}
	if accounted != endOfAllocation-baseAddress {
		return Summary{}, status.Errorf(codes.Internal, "Accounted for %d bytes of file space, while %d bytes are in use", accounted, endOfAllocation-baseAddress)
	}
	return summary, nil
}

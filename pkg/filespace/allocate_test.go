package filespace_test

import (
	"testing"

	"github.com/buildbarn/bb-filespace/internal/mock"
	"github.com/buildbarn/bb-filespace/pkg/filespace"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.uber.org/mock/gomock"
)

func newTestAllocator(t *testing.T, ctrl *gomock.Controller, configuration filespace.Configuration) (*mock.MockBackingStoreDriver, *mock.MockFreeSpaceManager, *filespace.Allocator) {
	driver := mock.NewMockBackingStoreDriver(ctrl)
	freeSpaceManager := mock.NewMockFreeSpaceManager(ctrl)
	allocator, err := filespace.NewAllocator(driver, freeSpaceManager, configuration)
	require.NoError(t, err)
	return driver, freeSpaceManager, allocator
}

func aggregatingConfiguration(metadataQuantum, rawDataQuantum uint64) filespace.Configuration {
	return filespace.Configuration{
		Metadata: filespace.AggregatorConfiguration{
			Enabled:            true,
			GrowthQuantumBytes: metadataQuantum,
		},
		RawData: filespace.AggregatorConfiguration{
			Enabled:            true,
			GrowthQuantumBytes: rawDataQuantum,
		},
	}
}

func requireAggregatorState(t *testing.T, allocator *filespace.Allocator, class filespace.Class, address, size, totalAcquired uint64) {
	t.Helper()
	state := allocator.State(class)
	require.Equal(t, filespace.Extent{Address: address, Size: size}, state.Extent)
	require.Equal(t, totalAcquired, state.TotalAcquired)
}

func TestAllocatorAllocateScenario(t *testing.T) {
	ctrl := gomock.NewController(t)

	driver, _, allocator := newTestAllocator(t, ctrl, aggregatingConfiguration(4096, 4096))
	const x = 96

	// The first allocation causes a full growth quantum to be
	// obtained from the backing store.
	driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(x), nil)
	driver.EXPECT().Allocate(filespace.ClassMetadata, uint64(4096)).Return(filespace.Allocation{Address: x}, nil)
	address, err := allocator.Allocate(filespace.ClassMetadata, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(x), address)
	requireAggregatorState(t, allocator, filespace.ClassMetadata, x+100, 3996, 4096)

	// A request that exactly fits the remaining space should not
	// cause any calls against the backing store, except for
	// obtaining the end of allocation.
	driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(x+4096), nil)
	address, err = allocator.Allocate(filespace.ClassMetadata, 3996)
	require.NoError(t, err)
	require.Equal(t, uint64(x+100), address)
	requireAggregatorState(t, allocator, filespace.ClassMetadata, x+4096, 0, 4096)

	// The aggregator is now empty, but still sits at the end of
	// allocation. It should be extended in place.
	driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(x+4096), nil)
	driver.EXPECT().TryExtend(filespace.ClassMetadata, uint64(x+4096), uint64(4096)).Return(true, nil)
	address, err = allocator.Allocate(filespace.ClassMetadata, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(x+4096), address)
	requireAggregatorState(t, allocator, filespace.ClassMetadata, x+4096+10, 4086, 8192)
	require.Equal(t, filespace.Extent{Address: x + 4096 + 10, Size: 4086}, allocator.Query(filespace.ClassMetadata))

	// The raw data aggregator should not have been affected.
	require.Equal(t, filespace.Extent{}, allocator.Query(filespace.ClassRawData))
}

func TestAllocatorAllocateInvalidArguments(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, _, allocator := newTestAllocator(t, ctrl, aggregatingConfiguration(4096, 4096))

	t.Run("ZeroSize", func(t *testing.T) {
		_, err := allocator.Allocate(filespace.ClassMetadata, 0)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Cannot allocate zero bytes of file space"), err)
	})

	t.Run("InvalidClass", func(t *testing.T) {
		_, err := allocator.Allocate(filespace.Class(7), 100)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Invalid file space class 7"), err)
	})
}

func TestAllocatorAllocateSmallBlock(t *testing.T) {
	ctrl := gomock.NewController(t)

	driver, freeSpaceManager, allocator := newTestAllocator(t, ctrl, aggregatingConfiguration(4096, 4096))

	driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(96), nil)
	driver.EXPECT().Allocate(filespace.ClassMetadata, uint64(4096)).Return(filespace.Allocation{Address: 96}, nil)
	_, err := allocator.Allocate(filespace.ClassMetadata, 100)
	require.NoError(t, err)

	t.Run("ExtendFailure", func(t *testing.T) {
		// Errors from the backing store should be propagated,
		// leaving the aggregator untouched.
		driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(4192), nil)
		driver.EXPECT().TryExtend(filespace.ClassMetadata, uint64(4192), uint64(4096)).
			Return(false, status.Error(codes.Internal, "Disk on fire"))
		_, err := allocator.Allocate(filespace.ClassMetadata, 4000)
		testutil.RequireEqualStatus(t, status.Error(codes.Internal, "Failed to extend metadata aggregator [196, 4192) by 4096 bytes: Disk on fire"), err)
		requireAggregatorState(t, allocator, filespace.ClassMetadata, 196, 3996, 4096)
	})

	t.Run("AllocateFailure", func(t *testing.T) {
		driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(10000), nil)
		driver.EXPECT().TryExtend(filespace.ClassMetadata, uint64(4192), uint64(4096)).Return(false, nil)
		driver.EXPECT().Allocate(filespace.ClassMetadata, uint64(4096)).
			Return(filespace.Allocation{}, status.Error(codes.ResourceExhausted, "Out of space"))
		_, err := allocator.Allocate(filespace.ClassMetadata, 4000)
		testutil.RequireEqualStatus(t, status.Error(codes.ResourceExhausted, "Failed to allocate 4096 bytes of metadata space from the backing store: Out of space"), err)
		requireAggregatorState(t, allocator, filespace.ClassMetadata, 196, 3996, 4096)
	})

	t.Run("Replace", func(t *testing.T) {
		// The aggregator can't be extended, as something else
		// got allocated behind it. A new block is obtained, and
		// the remainder of the old block is given to the free
		// space manager.
		driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(10000), nil)
		driver.EXPECT().TryExtend(filespace.ClassMetadata, uint64(4192), uint64(4096)).Return(false, nil)
		driver.EXPECT().Allocate(filespace.ClassMetadata, uint64(4096)).Return(filespace.Allocation{
			Address:  10004,
			Fragment: filespace.Extent{Address: 10000, Size: 4},
		}, nil)
		freeSpaceManager.EXPECT().Reclaim(filespace.ClassMetadata, filespace.Extent{Address: 10000, Size: 4})
		freeSpaceManager.EXPECT().Reclaim(filespace.ClassMetadata, filespace.Extent{Address: 196, Size: 3996})
		address, err := allocator.Allocate(filespace.ClassMetadata, 4000)
		require.NoError(t, err)
		require.Equal(t, uint64(10004), address)
		requireAggregatorState(t, allocator, filespace.ClassMetadata, 14004, 96, 4096)
	})
}

func TestAllocatorAllocateLargeBlock(t *testing.T) {
	ctrl := gomock.NewController(t)

	driver, freeSpaceManager, allocator := newTestAllocator(t, ctrl, aggregatingConfiguration(4096, 1024))

	// Let the metadata aggregator hold [196, 4192).
	driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(96), nil)
	driver.EXPECT().Allocate(filespace.ClassMetadata, uint64(4096)).Return(filespace.Allocation{Address: 96}, nil)
	_, err := allocator.Allocate(filespace.ClassMetadata, 100)
	require.NoError(t, err)

	t.Run("ExtendInPlace", func(t *testing.T) {
		// Large requests may cause the aggregator to be
		// extended. The request is served from the front of
		// the aggregator, while the aggregator moves up.
		driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(4192), nil)
		driver.EXPECT().TryExtend(filespace.ClassMetadata, uint64(4192), uint64(5000)).Return(true, nil)
		address, err := allocator.Allocate(filespace.ClassMetadata, 5000)
		require.NoError(t, err)
		require.Equal(t, uint64(196), address)
		requireAggregatorState(t, allocator, filespace.ClassMetadata, 5196, 3996, 9096)
	})

	// Let the raw data aggregator hold [10300, 11248), having
	// handed out more than a single growth quantum.
	driver.EXPECT().GetEndOfAllocation(filespace.ClassRawData).Return(uint64(9200), nil)
	driver.EXPECT().Allocate(filespace.ClassRawData, uint64(1024)).Return(filespace.Allocation{Address: 9200}, nil)
	_, err = allocator.Allocate(filespace.ClassRawData, 1000)
	require.NoError(t, err)
	driver.EXPECT().GetEndOfAllocation(filespace.ClassRawData).Return(uint64(10224), nil)
	driver.EXPECT().TryExtend(filespace.ClassRawData, uint64(10224), uint64(1024)).Return(true, nil)
	address, err := allocator.Allocate(filespace.ClassRawData, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(10200), address)
	requireAggregatorState(t, allocator, filespace.ClassRawData, 10300, 948, 2048)

	t.Run("ReclaimPeer", func(t *testing.T) {
		// The metadata aggregator can't be extended. Because
		// the raw data aggregator sits at the end of
		// allocation, it gets released first. The request is
		// then served by the backing store directly, leaving
		// the metadata aggregator untouched.
		driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(11248), nil)
		driver.EXPECT().TryExtend(filespace.ClassMetadata, uint64(9192), uint64(6000)).Return(false, nil)
		driver.EXPECT().Free(filespace.ClassRawData, uint64(10300), uint64(948))
		driver.EXPECT().Allocate(filespace.ClassMetadata, uint64(6000)).Return(filespace.Allocation{
			Address:  10304,
			Fragment: filespace.Extent{Address: 10300, Size: 4},
		}, nil)
		freeSpaceManager.EXPECT().Reclaim(filespace.ClassMetadata, filespace.Extent{Address: 10300, Size: 4})
		address, err := allocator.Allocate(filespace.ClassMetadata, 6000)
		require.NoError(t, err)
		require.Equal(t, uint64(10304), address)
		requireAggregatorState(t, allocator, filespace.ClassMetadata, 5196, 3996, 9096)
		requireAggregatorState(t, allocator, filespace.ClassRawData, 0, 0, 0)
	})

	t.Run("DirectAllocation", func(t *testing.T) {
		// The raw data aggregator is empty and the metadata
		// aggregator doesn't sit at the end of allocation.
		// The request is simply forwarded.
		driver.EXPECT().GetEndOfAllocation(filespace.ClassRawData).Return(uint64(16304), nil)
		driver.EXPECT().Allocate(filespace.ClassRawData, uint64(2000)).Return(filespace.Allocation{Address: 16304}, nil)
		address, err := allocator.Allocate(filespace.ClassRawData, 2000)
		require.NoError(t, err)
		require.Equal(t, uint64(16304), address)
		requireAggregatorState(t, allocator, filespace.ClassRawData, 0, 0, 0)
		requireAggregatorState(t, allocator, filespace.ClassMetadata, 5196, 3996, 9096)
	})
}

func TestAllocatorAllocateAlignment(t *testing.T) {
	ctrl := gomock.NewController(t)

	configuration := aggregatingConfiguration(4096, 4096)
	configuration.AlignmentBytes = 512
	configuration.AlignmentThresholdBytes = 256
	driver, freeSpaceManager, allocator := newTestAllocator(t, ctrl, configuration)

	// Requests below the threshold are not aligned.
	driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(96), nil)
	driver.EXPECT().Allocate(filespace.ClassMetadata, uint64(4096)).Return(filespace.Allocation{
		Address:  512,
		Fragment: filespace.Extent{Address: 96, Size: 416},
	}, nil)
	freeSpaceManager.EXPECT().Reclaim(filespace.ClassMetadata, filespace.Extent{Address: 96, Size: 416})
	address, err := allocator.Allocate(filespace.ClassMetadata, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(512), address)

	// Requests above the threshold cause the front of the
	// aggregator to be discarded.
	driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(4608), nil)
	freeSpaceManager.EXPECT().Reclaim(filespace.ClassMetadata, filespace.Extent{Address: 612, Size: 412})
	address, err = allocator.Allocate(filespace.ClassMetadata, 300)
	require.NoError(t, err)
	require.Equal(t, uint64(1024), address)
	requireAggregatorState(t, allocator, filespace.ClassMetadata, 1324, 3284, 4096)

	// When extending, the growth quantum is increased if the
	// fragment doesn't fit in the slack of the quantum.
	driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(4608), nil)
	driver.EXPECT().TryExtend(filespace.ClassMetadata, uint64(4608), uint64(4212)).Return(true, nil)
	freeSpaceManager.EXPECT().Reclaim(filespace.ClassMetadata, filespace.Extent{Address: 1324, Size: 212})
	address, err = allocator.Allocate(filespace.ClassMetadata, 4000)
	require.NoError(t, err)
	require.Equal(t, uint64(1536), address)
	requireAggregatorState(t, allocator, filespace.ClassMetadata, 5536, 3284, 8308)
}

func TestAllocatorAllocateTemporaryBoundary(t *testing.T) {
	ctrl := gomock.NewController(t)

	configuration := aggregatingConfiguration(4096, 4096)
	configuration.MaximumAddressBytes = 10000
	driver, _, allocator := newTestAllocator(t, ctrl, configuration)

	t.Run("SmallBlock", func(t *testing.T) {
		// Growing the aggregator would overlap with the
		// temporary region. No space should be allocated.
		driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(9950), nil)
		_, err := allocator.Allocate(filespace.ClassMetadata, 100)
		testutil.RequireEqualStatus(t, status.Error(codes.OutOfRange, "Allocation of 4096 bytes at address 9950 would overlap with temporary file space starting at address 10000"), err)
	})

	t.Run("LargeBlock", func(t *testing.T) {
		driver.EXPECT().GetEndOfAllocation(filespace.ClassRawData).Return(uint64(5000), nil)
		_, err := allocator.Allocate(filespace.ClassRawData, 5001)
		testutil.RequireEqualStatus(t, status.Error(codes.OutOfRange, "Allocation of 5001 bytes at address 5000 would overlap with temporary file space starting at address 10000"), err)
	})

	t.Run("ExactFit", func(t *testing.T) {
		driver.EXPECT().GetEndOfAllocation(filespace.ClassRawData).Return(uint64(5000), nil)
		driver.EXPECT().Allocate(filespace.ClassRawData, uint64(5000)).Return(filespace.Allocation{Address: 5000}, nil)
		address, err := allocator.Allocate(filespace.ClassRawData, 5000)
		require.NoError(t, err)
		require.Equal(t, uint64(5000), address)
	})

	t.Run("FragmentCrossesBoundary", func(t *testing.T) {
		// The backing store inserted an alignment fragment,
		// causing the block to overlap with the temporary
		// region. The block should be given back.
		driver.EXPECT().GetEndOfAllocation(filespace.ClassRawData).Return(uint64(4000), nil)
		driver.EXPECT().Allocate(filespace.ClassRawData, uint64(5000)).Return(filespace.Allocation{
			Address:  8192,
			Fragment: filespace.Extent{Address: 4000, Size: 4192},
		}, nil)
		driver.EXPECT().Free(filespace.ClassRawData, uint64(8192), uint64(5000))
		driver.EXPECT().Free(filespace.ClassRawData, uint64(4000), uint64(4192))
		_, err := allocator.Allocate(filespace.ClassRawData, 5000)
		testutil.RequireEqualStatus(t, status.Error(codes.OutOfRange, "Allocation of 5000 bytes at address 8192 would overlap with temporary file space starting at address 10000"), err)
	})
}

func TestAllocatorAllocateBypass(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("DriverOnlyStrategy", func(t *testing.T) {
		configuration := aggregatingConfiguration(4096, 4096)
		configuration.Strategy = filespace.StrategyDriverOnly
		driver, freeSpaceManager, allocator := newTestAllocator(t, ctrl, configuration)
		require.False(t, allocator.IsAggregating(filespace.ClassMetadata))

		driver.EXPECT().GetEndOfAllocation(filespace.ClassMetadata).Return(uint64(98), nil)
		driver.EXPECT().Allocate(filespace.ClassMetadata, uint64(10)).Return(filespace.Allocation{
			Address:  100,
			Fragment: filespace.Extent{Address: 98, Size: 2},
		}, nil)
		freeSpaceManager.EXPECT().Reclaim(filespace.ClassMetadata, filespace.Extent{Address: 98, Size: 2})
		address, err := allocator.Allocate(filespace.ClassMetadata, 10)
		require.NoError(t, err)
		require.Equal(t, uint64(100), address)
		require.Equal(t, filespace.Extent{}, allocator.Query(filespace.ClassMetadata))
	})

	t.Run("AggregatorDisabled", func(t *testing.T) {
		configuration := aggregatingConfiguration(4096, 4096)
		configuration.RawData.Enabled = false
		driver, _, allocator := newTestAllocator(t, ctrl, configuration)
		require.True(t, allocator.IsAggregating(filespace.ClassMetadata))
		require.False(t, allocator.IsAggregating(filespace.ClassRawData))

		driver.EXPECT().GetEndOfAllocation(filespace.ClassRawData).Return(uint64(96), nil)
		driver.EXPECT().Allocate(filespace.ClassRawData, uint64(10)).Return(filespace.Allocation{Address: 96}, nil)
		address, err := allocator.Allocate(filespace.ClassRawData, 10)
		require.NoError(t, err)
		require.Equal(t, uint64(96), address)
	})
}

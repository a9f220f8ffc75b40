package configuration_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	configuration "github.com/buildbarn/bb-filespace/pkg/configuration/bb_filespace_replay"
	"github.com/buildbarn/bb-filespace/pkg/filespace"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func writeConfiguration(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "bb_filespace_replay.jsonnet")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestGetReplayConfiguration(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		t.Setenv("FILESPACE_QUOTA", "65536")
		path := writeConfiguration(t, `
local allocate(name, size) = { allocate: { name: name, class: 'metadata', sizeBytes: size } };
{
  files: [{
    name: 'example.h5',
    quotaBytes: std.parseInt(std.extVar('FILESPACE_QUOTA')),
    fileSpace: {
      metadata: { enabled: true },
      rawData: { enabled: true, growthQuantumBytes: 8192 },
    },
    operations: [
      allocate('header', 100),
      { extend: { name: 'header', extraBytes: 20 } },
      { free: { name: 'header' } },
      { allocateTemporary: { sizeBytes: 10 } },
      { reset: { class: 'raw_data' } },
    ],
  }],
}
`)
		applicationConfiguration, err := configuration.GetReplayConfiguration(path)
		require.NoError(t, err)
		require.Len(t, applicationConfiguration.Files, 1)

		fileConfiguration := applicationConfiguration.Files[0]
		require.Equal(t, "example.h5", fileConfiguration.Name)
		require.Equal(t, uint64(configuration.DefaultBaseAddressBytes), fileConfiguration.BaseAddressBytes)
		require.Equal(t, uint64(math.MaxUint64), fileConfiguration.MaximumAddressBytes)
		require.Equal(t, uint64(65536), fileConfiguration.QuotaBytes)
		require.Equal(t, filespace.Configuration{
			Strategy:                filespace.StrategyAggregate,
			AlignmentBytes:          1,
			AlignmentThresholdBytes: 1,
			MaximumAddressBytes:     math.MaxUint64,
			Metadata:                filespace.AggregatorConfiguration{Enabled: true, GrowthQuantumBytes: 2048},
			RawData:                 filespace.AggregatorConfiguration{Enabled: true, GrowthQuantumBytes: 8192},
		}, fileConfiguration.FileSpace)
		require.Equal(t, []configuration.Operation{
			{Allocate: &configuration.AllocateOperation{Name: "header", Class: "metadata", SizeBytes: 100}},
			{Extend: &configuration.ExtendOperation{Name: "header", ExtraBytes: 20}},
			{Free: &configuration.FreeOperation{Name: "header"}},
			{AllocateTemporary: &configuration.AllocateTemporaryOperation{SizeBytes: 10}},
			{Reset: &configuration.ResetOperation{Class: "raw_data"}},
		}, fileConfiguration.Operations)
	})

	t.Run("UnknownField", func(t *testing.T) {
		path := writeConfiguration(t, `{ files: [{ name: 'a', blockSize: 512 }] }`)
		_, err := configuration.GetReplayConfiguration(path)
		require.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("InvalidJsonnet", func(t *testing.T) {
		path := writeConfiguration(t, `{ files: [`)
		_, err := configuration.GetReplayConfiguration(path)
		require.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("MissingName", func(t *testing.T) {
		path := writeConfiguration(t, `{ files: [{}] }`)
		_, err := configuration.GetReplayConfiguration(path)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Failed to retrieve configuration: File \"\": No name provided"), err)
	})

	t.Run("BaseAboveMaximum", func(t *testing.T) {
		path := writeConfiguration(t, `{ files: [{ name: 'a', baseAddressBytes: 4096, maximumAddressBytes: 1024 }] }`)
		_, err := configuration.GetReplayConfiguration(path)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Failed to retrieve configuration: File \"a\": Base address 4096 must be below maximum address 1024"), err)
	})

	t.Run("InvalidFileSpace", func(t *testing.T) {
		path := writeConfiguration(t, `{ files: [{ name: 'a', fileSpace: { strategy: 'paged' } }] }`)
		_, err := configuration.GetReplayConfiguration(path)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Failed to retrieve configuration: File \"a\": Invalid file space configuration: Unknown file space strategy \"paged\""), err)
	})

	t.Run("AmbiguousOperation", func(t *testing.T) {
		path := writeConfiguration(t, `{ files: [{ name: 'a', operations: [{}, { free: { name: 'x' }, reset: { class: 'metadata' } }] }] }`)
		_, err := configuration.GetReplayConfiguration(path)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Failed to retrieve configuration: File \"a\": Operation 0: Exactly one operation type must be set, while 0 are set"), err)
	})

	t.Run("UnknownClass", func(t *testing.T) {
		path := writeConfiguration(t, `{ files: [{ name: 'a', operations: [{ allocate: { name: 'x', class: 'btree', sizeBytes: 1 } }] }] }`)
		_, err := configuration.GetReplayConfiguration(path)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Failed to retrieve configuration: File \"a\": Operation 0: Unknown file space class \"btree\""), err)
	})
}

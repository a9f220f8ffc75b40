package filespace

import (
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Strategy controls how file space is handed out.
type Strategy string

const (
	// StrategyAggregate lets small requests be served from the
	// aggregators of the classes for which aggregation is enabled.
	StrategyAggregate Strategy = "aggregate"
	// StrategyDriverOnly disables aggregation entirely. All
	// requests are forwarded to the BackingStoreDriver.
	StrategyDriverOnly Strategy = "driver_only"
)

// DefaultGrowthQuantumBytes is the amount of space an aggregator
// requests from the BackingStoreDriver when it runs out of space, if
// not configured otherwise.
const DefaultGrowthQuantumBytes = 2048

// AggregatorConfiguration holds the options of the aggregator of a
// single class.
type AggregatorConfiguration struct {
	Enabled            bool   `json:"enabled"`
	GrowthQuantumBytes uint64 `json:"growthQuantumBytes"`
}

// Configuration of an Allocator.
type Configuration struct {
	Strategy Strategy `json:"strategy"`
	// Allocations of at least AlignmentThresholdBytes are placed at
	// a multiple of AlignmentBytes. Alignment is disabled when
	// AlignmentBytes is at most one.
	AlignmentBytes          uint64 `json:"alignmentBytes"`
	AlignmentThresholdBytes uint64 `json:"alignmentThresholdBytes"`
	// Initial start of the temporary address space, which grows
	// downward. Zero means the full 64-bit address space.
	MaximumAddressBytes uint64 `json:"maximumAddressBytes"`

	Metadata AggregatorConfiguration `json:"metadata"`
	RawData  AggregatorConfiguration `json:"rawData"`
}

// SetDefaults fills in values for options that were left unset.
func (c *Configuration) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyAggregate
	}
	if c.AlignmentBytes == 0 {
		c.AlignmentBytes = 1
	}
	if c.AlignmentThresholdBytes == 0 {
		c.AlignmentThresholdBytes = 1
	}
	if c.MaximumAddressBytes == 0 {
		c.MaximumAddressBytes = math.MaxUint64
	}
	if c.Metadata.GrowthQuantumBytes == 0 {
		c.Metadata.GrowthQuantumBytes = DefaultGrowthQuantumBytes
	}
	if c.RawData.GrowthQuantumBytes == 0 {
		c.RawData.GrowthQuantumBytes = DefaultGrowthQuantumBytes
	}
}

func (c *Configuration) aggregator(class Class) *AggregatorConfiguration {
	if class == ClassMetadata {
		return &c.Metadata
	}
	return &c.RawData
}

// Validate checks whether the configuration can be used to construct
// an Allocator. Defaults are expected to be applied already.
func (c *Configuration) Validate() error {
	switch c.Strategy {
	case StrategyAggregate, StrategyDriverOnly:
	default:
		return status.Errorf(codes.InvalidArgument, "Unknown file space strategy %#v", string(c.Strategy))
	}
	if c.AlignmentBytes == 0 {
		return status.Error(codes.InvalidArgument, "Alignment must be at least one byte")
	}
	for class := Class(0); class < classCount; class++ {
		if ac := c.aggregator(class); ac.Enabled && ac.GrowthQuantumBytes == 0 {
			return status.Errorf(codes.InvalidArgument, "Growth quantum of the %s aggregator must be positive", class)
		}
	}
	return nil
}

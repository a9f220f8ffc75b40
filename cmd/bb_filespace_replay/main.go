package main

import (
	"context"
	"log"
	"os"

	configuration "github.com/buildbarn/bb-filespace/pkg/configuration/bb_filespace_replay"
	"github.com/buildbarn/bb-filespace/pkg/replay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"

	"golang.org/x/sync/errgroup"
)

// bb_filespace_replay applies sequences of file space operations
// against one or more files, as described in a Jsonnet configuration
// file. For every file the space between the base address and the end
// of allocation is accounted for once all operations have completed.
//
// This tool can be used to evaluate the effect of growth quanta and
// alignment settings on the size and fragmentation of files, without
// needing to run the application that produced the operations.

func main() {
	printMetrics := pflag.Bool("print-metrics", false, "Write all Prometheus metrics to stdout after replaying")
	pflag.Parse()
	if pflag.NArg() != 1 {
		log.Fatal("Usage: bb_filespace_replay [--print-metrics] bb_filespace_replay.jsonnet")
	}
	applicationConfiguration, err := configuration.GetReplayConfiguration(pflag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read configuration from %s: %s", pflag.Arg(0), err)
	}

	// Files are independent of each other, so they can be replayed
	// in parallel.
	group, groupCtx := errgroup.WithContext(context.Background())
	for i := range applicationConfiguration.Files {
		fileConfiguration := &applicationConfiguration.Files[i]
		group.Go(func() error {
			summary, err := replay.ReplayFile(groupCtx, fileConfiguration)
			if err != nil {
				log.Printf("Failed to replay file %#v: %s", fileConfiguration.Name, err)
				return err
			}
			log.Printf(
				"File %#v: end of allocation %d, %d bytes in %d blocks, %d bytes free, temporary space starting at %d",
				summary.Name,
				summary.EndOfAllocation,
				summary.OutstandingBytes,
				summary.Blocks,
				summary.FreeBytes,
				summary.TemporaryBoundary)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		log.Fatal("Replay failed: ", err)
	}

	if *printMetrics {
		metricFamilies, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			log.Fatal("Failed to gather metrics: ", err)
		}
		for _, metricFamily := range metricFamilies {
			if _, err := expfmt.MetricFamilyToText(os.Stdout, metricFamily); err != nil {
				log.Fatal("Failed to write metrics: ", err)
			}
		}
	}
}

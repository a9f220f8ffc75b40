package filespace

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	backingStoreDriverPrometheusMetrics sync.Once

	backingStoreDriverOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "filespace",
			Name:      "backing_store_driver_operations_total",
			Help:      "Number of operations performed against the backing store driver.",
		},
		[]string{"class", "operation", "result"})
	backingStoreDriverBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "filespace",
			Name:      "backing_store_driver_bytes_total",
			Help:      "Number of bytes allocated, extended or freed through the backing store driver.",
		},
		[]string{"class", "operation"})
)

type metricsBackingStoreDriver struct {
	base BackingStoreDriver
}

// NewMetricsBackingStoreDriver creates a decorator for
// BackingStoreDriver that exposes Prometheus metrics on the number of
// operations performed and the amount of space they affected.
func NewMetricsBackingStoreDriver(base BackingStoreDriver) BackingStoreDriver {
	backingStoreDriverPrometheusMetrics.Do(func() {
		prometheus.MustRegister(backingStoreDriverOperations)
		prometheus.MustRegister(backingStoreDriverBytes)
	})

	return &metricsBackingStoreDriver{
		base: base,
	}
}

func observeBackingStoreDriverOperation(class Class, operation, result string, bytes uint64) {
	backingStoreDriverOperations.WithLabelValues(class.String(), operation, result).Inc()
	if bytes > 0 {
		backingStoreDriverBytes.WithLabelValues(class.String(), operation).Add(float64(bytes))
	}
}

func (d *metricsBackingStoreDriver) Allocate(class Class, size uint64) (Allocation, error) {
	allocation, err := d.base.Allocate(class, size)
	if err != nil {
		observeBackingStoreDriverOperation(class, "Allocate", "Failure", 0)
		return Allocation{}, err
	}
	observeBackingStoreDriverOperation(class, "Allocate", "Success", size+allocation.Fragment.Size)
	return allocation, nil
}

func (d *metricsBackingStoreDriver) Free(class Class, address, size uint64) error {
	if err := d.base.Free(class, address, size); err != nil {
		observeBackingStoreDriverOperation(class, "Free", "Failure", 0)
		return err
	}
	observeBackingStoreDriverOperation(class, "Free", "Success", size)
	return nil
}

func (d *metricsBackingStoreDriver) TryExtend(class Class, blockEnd, extra uint64) (bool, error) {
	extended, err := d.base.TryExtend(class, blockEnd, extra)
	switch {
	case err != nil:
		observeBackingStoreDriverOperation(class, "TryExtend", "Failure", 0)
	case extended:
		observeBackingStoreDriverOperation(class, "TryExtend", "Extended", extra)
	default:
		observeBackingStoreDriverOperation(class, "TryExtend", "NotExtended", 0)
	}
	return extended, err
}

func (d *metricsBackingStoreDriver) GetEndOfAllocation(class Class) (uint64, error) {
	return d.base.GetEndOfAllocation(class)
}

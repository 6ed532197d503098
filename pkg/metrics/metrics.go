// Package metrics exposes each container's observed resource usage as
// Prometheus series. It consumes resource.Handler.Stats output and never
// touches a controller or the kernel filesystem directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/spec"
)

const namespace = "lmctfy"

var (
	memoryUsageBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_usage_bytes",
		Help:      "Current memory usage of a container's memory cgroup.",
	}, []string{"container"})

	memoryLimitBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_limit_bytes",
		Help:      "Configured memory limit of a container's memory cgroup.",
	}, []string{"container"})

	// cpuUsageSecondsTotal and blockioServiceBytesTotal mirror the
	// kernel's own cumulative counters (cpuacct.usage,
	// blkio.throttle.io_service_bytes). They're Gauges set to the
	// absolute value read at each scrape rather than Counters
	// incremented by a delta, since this package only ever sees the
	// kernel's running total, never a per-interval delta.
	cpuUsageSecondsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cpu_usage_seconds_total",
		Help:      "Cumulative CPU time consumed by a container, in seconds.",
	}, []string{"container"})

	blockioServiceBytesTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "blockio_service_bytes_total",
		Help:      "Cumulative bytes a container has read or written through blkio.",
	}, []string{"container", "direction"})

	containerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "container_state",
		Help:      "Freezer state of a container: 0 thawed, 1 freezing, 2 frozen.",
	}, []string{"container"})
)

// MustRegister registers every series this package exports against
// registerer.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(memoryUsageBytes, memoryLimitBytes, cpuUsageSecondsTotal, blockioServiceBytesTotal, containerState)
}

// Observe updates every series this package knows how to derive from
// stats, labeled by containerPath. Fields stats leaves nil (an
// unmounted hierarchy or an unreadable optional stat) leave the
// corresponding series untouched rather than reset to zero, so a
// temporarily-unreadable stat doesn't read as "usage dropped to 0".
func Observe(containerPath string, stats spec.ContainerStats) {
	if stats.Memory != nil {
		if stats.Memory.UsageBytes != nil {
			memoryUsageBytes.WithLabelValues(containerPath).Set(float64(*stats.Memory.UsageBytes))
		}
		if stats.Memory.LimitBytes != nil {
			memoryLimitBytes.WithLabelValues(containerPath).Set(float64(*stats.Memory.LimitBytes))
		}
	}
	if stats.CpuAcct != nil && stats.CpuAcct.UsageNs != nil {
		cpuUsageSecondsTotal.WithLabelValues(containerPath).Set(float64(*stats.CpuAcct.UsageNs) / 1e9)
	}
	if stats.BlockIo != nil && stats.BlockIo.ServiceBytesTotal != nil {
		blockioServiceBytesTotal.WithLabelValues(containerPath, "total").Set(float64(*stats.BlockIo.ServiceBytesTotal))
	}
}

// ObserveFreezerState sets the container_state gauge from a freezer
// state read directly off controller.Freezer, since Freezer sits outside
// the resource.Handler/ContainerStats surface.
func ObserveFreezerState(containerPath string, state controller.FreezerState) {
	var v float64
	switch state {
	case controller.FreezerThawed:
		v = 0
	case controller.FreezerFreezing:
		v = 1
	case controller.FreezerFrozen:
		v = 2
	default:
		return
	}
	containerState.WithLabelValues(containerPath).Set(v)
}

package controller

import (
	"strconv"
	"strings"

	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/status"
)

const defaultCfsPeriodUs int64 = 100000

// Cpu wraps the cpu hierarchy: shares, the CFS bandwidth quota/period
// pair, scheduling latency class, and the cpu.stat throttling counters.
type Cpu struct {
	Base
}

// NewCpu constructs a CpuController bound to absolutePath.
func NewCpu(hierarchyPath, absolutePath string, ownsCgroup bool, fs kernelfs.Interface, listener notify.Interface) *Cpu {
	return &Cpu{Base: NewBase(hierarchy.Cpu, hierarchyPath, absolutePath, ownsCgroup, fs, listener)}
}

// SetMilliCpus maps mcpus (1000 == one full CPU) onto cpu.shares, with
// the kernel's floor of 2 enforced at the wire.
func (c *Cpu) SetMilliCpus(mcpus int64) *status.Status {
	shares := mcpus * 1024 / 1000
	if shares < 2 {
		shares = 2
	}
	return c.SetParamInt(fileCpuShares, shares)
}

// GetMilliCpus is the inverse of SetMilliCpus.
func (c *Cpu) GetMilliCpus() (int64, *status.Status) {
	shares, err := c.GetParamInt(fileCpuShares)
	if err != nil {
		return 0, err
	}
	return shares * 1000 / 1024, nil
}

func (c *Cpu) throttlingPeriodUs() (int64, *status.Status) {
	period, err := c.GetParamInt(fileCpuCfsPeriodUs)
	if err != nil {
		if status.Is(err, status.NotFound) {
			return defaultCfsPeriodUs, nil
		}
		return 0, err
	}
	return period, nil
}

// SetMaxMilliCpus caps CPU usage to mcpus milli-cpus by writing the CFS
// period (always the default 100000us) and then the quota for that
// period. If the period write succeeds but the quota write fails, the
// cgroup is left with the new period — this matches the documented,
// non-atomic two-file update.
func (c *Cpu) SetMaxMilliCpus(mcpus int64) *status.Status {
	period := defaultCfsPeriodUs
	if mcpus < 1 {
		return status.New(status.InvalidArgument, "max milli cpus must be positive, got %d", mcpus)
	}
	quota := period * mcpus / 1000
	if quota < 1 {
		return status.New(status.InvalidArgument, "max milli cpus %d rounds to a zero quota for period %d", mcpus, period)
	}
	if err := c.SetParamInt(fileCpuCfsPeriodUs, period); err != nil {
		return err
	}
	return c.SetParamInt(fileCpuCfsQuotaUs, quota)
}

// GetMaxMilliCpus reads back the CFS quota, reporting the kernel's
// uncapped sentinel (-1) unchanged.
func (c *Cpu) GetMaxMilliCpus() (int64, *status.Status) {
	quota, err := c.GetParamInt(fileCpuCfsQuotaUs)
	if err != nil {
		return 0, err
	}
	if quota < 0 {
		return -1, nil
	}
	period, err := c.throttlingPeriodUs()
	if err != nil {
		return 0, err
	}
	if period == 0 {
		return 0, status.New(status.FailedPrecondition, "cpu.cfs_period_us is zero")
	}
	return quota * 1000 / period, nil
}

// SetLatency writes one of the four fixed cpu.lat values for class.
func (c *Cpu) SetLatency(class LatencyClass) *status.Status {
	return c.SetParamInt(fileCpuLatency, class.cpuLatValue())
}

// SetPlacementStrategy writes strategy verbatim to cpu.placement_strategy.
// The value is not validated against a known set: the kernel module this
// is modeled on accepts whatever the scheduler understands and this layer
// does not maintain its own copy of that list.
func (c *Cpu) SetPlacementStrategy(strategy int) *status.Status {
	return c.SetParamInt(fileCpuPlacementStrategy, int64(strategy))
}

// GetThrottlingStats parses cpu.stat into the three documented counters.
func (c *Cpu) GetThrottlingStats() (ThrottlingStats, *status.Status) {
	lines, err := c.GetParamLines(fileCpuStat)
	if err != nil {
		return ThrottlingStats{}, err
	}
	defer lines.Close()

	var stats ThrottlingStats
	seen := map[string]bool{}
	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		n, convErr := strconv.ParseInt(fields[1], 10, 64)
		if convErr != nil {
			continue
		}
		switch fields[0] {
		case "nr_periods":
			stats.NrPeriods = n
			seen["nr_periods"] = true
		case "nr_throttled":
			stats.NrThrottled = n
			seen["nr_throttled"] = true
		case "throttled_time":
			stats.ThrottledTime = n
			seen["throttled_time"] = true
		}
	}
	if lines.Err() != nil {
		return ThrottlingStats{}, lines.Err()
	}
	if !seen["nr_periods"] || !seen["nr_throttled"] || !seen["throttled_time"] {
		return ThrottlingStats{}, status.New(status.FailedPrecondition, "cpu.stat missing required keys")
	}
	return stats, nil
}

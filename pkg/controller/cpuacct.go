package controller

import (
	"strconv"
	"strings"

	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// clockTicksPerSecond mirrors sysconf(_SC_CLK_TCK), which is 100 on every
// Linux platform this module targets.
const clockTicksPerSecond = 100

// CpuHistogramData is one named section of cpuacct.histogram:
// (bucket upper bound in µs) -> observation count. The upper bound of the
// last bucket is reported as math.MaxInt32, matching the kernel's "inf".
type CpuHistogramData struct {
	Name    string
	Buckets []HistogramBucket
}

// HistogramBucket is a single "< upper count" row.
type HistogramBucket struct {
	Upper int64
	Count int64
}

var queueBuckets = []int64{1000, 5000, 10000, 25000, 75000, 100000, 500000}
var nonQueueBuckets = []int64{1000, 5000, 10000, 20000, 50000, 100000, 250000}
var histogramNames = []string{"serve", "oncpu", "sleep", "queue_self", "queue_other"}

// CpuAcct wraps the cpuacct hierarchy: cumulative usage, per-cpu usage,
// user/system time, and the scheduler histogram instrumentation.
type CpuAcct struct {
	Base
}

// NewCpuAcct constructs a CpuAcctController bound to absolutePath.
func NewCpuAcct(hierarchyPath, absolutePath string, ownsCgroup bool, fs kernelfs.Interface, listener notify.Interface) *CpuAcct {
	return &CpuAcct{Base: NewBase(hierarchy.CpuAcct, hierarchyPath, absolutePath, ownsCgroup, fs, listener)}
}

// GetCpuUsageNs returns cumulative CPU time in nanoseconds.
func (c *CpuAcct) GetCpuUsageNs() (int64, *status.Status) {
	return c.GetParamInt(fileCpuAcctUsage)
}

// GetPerCpuUsageNs returns cpuacct.usage_percpu as a per-CPU slice, in ns.
func (c *CpuAcct) GetPerCpuUsageNs() ([]int64, *status.Status) {
	v, err := c.GetParamString(fileCpuAcctUsagePerCpu)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(v)
	out := make([]int64, 0, len(fields))
	for _, f := range fields {
		n, convErr := strconv.ParseInt(f, 10, 64)
		if convErr != nil {
			return nil, status.Wrap(status.FailedPrecondition, convErr, "parse %s", fileCpuAcctUsagePerCpu)
		}
		out = append(out, n)
	}
	return out, nil
}

// GetCpuTime parses cpuacct.stat (ticks) into nanoseconds.
func (c *CpuAcct) GetCpuTime() (CpuTime, *status.Status) {
	lines, err := c.GetParamLines(fileCpuAcctStat)
	if err != nil {
		return CpuTime{}, err
	}
	defer lines.Close()

	var t CpuTime
	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		ticks, convErr := strconv.ParseInt(fields[1], 10, 64)
		if convErr != nil {
			continue
		}
		ns := ticks * 1e9 / clockTicksPerSecond
		switch fields[0] {
		case "user":
			t.UserNs = ns
		case "system":
			t.SystemNs = ns
		}
	}
	if lines.Err() != nil {
		return CpuTime{}, lines.Err()
	}
	return t, nil
}

// SetupHistograms enables the five fixed cpuacct.histogram instruments
// with their documented bucket boundaries.
func (c *CpuAcct) SetupHistograms() *status.Status {
	for _, name := range histogramNames {
		buckets := nonQueueBuckets
		if name == "queue_self" || name == "queue_other" {
			buckets = queueBuckets
		}
		fields := make([]string, 0, len(buckets)+1)
		fields = append(fields, name)
		for _, b := range buckets {
			fields = append(fields, strconv.FormatInt(b, 10))
		}
		if err := c.SetParamString(fileCpuAcctHistogram, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	return nil
}

// EnableSchedulerHistograms writes "1" to /proc/sys/kernel/sched_histogram.
// Unlike every other operation on this type it is not scoped to this
// cgroup's absolute path: it is a single machine-wide knob.
func (c *CpuAcct) EnableSchedulerHistograms() *status.Status {
	return c.fs.SafeWrite("/proc/sys/kernel/sched_histogram", "1")
}

// GetSchedulerHistograms parses the multi-section cpuacct.histogram file.
func (c *CpuAcct) GetSchedulerHistograms() ([]CpuHistogramData, *status.Status) {
	lines, err := c.GetParamLines(fileCpuAcctHistogram)
	if err != nil {
		return nil, err
	}
	defer lines.Close()

	header, ok := lines.Next()
	if !ok || strings.TrimSpace(header) != "unit: us" {
		return nil, status.New(status.Internal, "Malformed histogram data.")
	}

	var out []CpuHistogramData
	for {
		name, ok := lines.Next()
		if !ok {
			break
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !isKnownHistogramName(name) {
			return nil, status.New(status.Internal, "Unknown histogram name %s", name)
		}
		countLine, ok := lines.Next()
		if !ok {
			return nil, status.New(status.Internal, "Malformed histogram data.")
		}
		fields := strings.Fields(countLine)
		if len(fields) != 2 || fields[0] != "bucket" {
			return nil, status.New(status.Internal, "Malformed histogram data.")
		}
		numBuckets, convErr := strconv.Atoi(fields[1])
		if convErr != nil {
			return nil, status.New(status.Internal, "Failed to parse int from string %q", fields[1])
		}

		section := CpuHistogramData{Name: name}
		for i := 0; i < numBuckets; i++ {
			row, ok := lines.Next()
			if !ok {
				return nil, status.New(status.Internal, "Malformed histogram data.")
			}
			fields := strings.Fields(row)
			if len(fields) != 3 || fields[0] != "<" {
				return nil, status.New(status.Internal, "Malformed histogram data.")
			}
			var upper int64
			if fields[1] == "inf" {
				upper = int64(1<<31 - 1)
			} else {
				n, convErr := strconv.ParseInt(fields[1], 10, 64)
				if convErr != nil {
					return nil, status.New(status.Internal, "Failed to parse int from string %q", fields[1])
				}
				upper = n
			}
			count, convErr := strconv.ParseInt(fields[2], 10, 64)
			if convErr != nil {
				return nil, status.New(status.Internal, "Failed to parse int from string %q", fields[2])
			}
			section.Buckets = append(section.Buckets, HistogramBucket{Upper: upper, Count: count})
		}
		out = append(out, section)
	}
	if lines.Err() != nil {
		return nil, lines.Err()
	}
	return out, nil
}

func isKnownHistogramName(name string) bool {
	for _, n := range histogramNames {
		if n == name {
			return true
		}
	}
	return false
}

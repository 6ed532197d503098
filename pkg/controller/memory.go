package controller

import (
	"strconv"
	"strings"

	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// MemoryStats is the subset of memory.stat this module tracks, in both
// the container's own (no-prefix) and hierarchical ("total_"-prefixed)
// forms. Keys this module does not recognize are dropped rather than
// rejected, since memory.stat gains fields across kernel versions.
type MemoryStats struct {
	ContainerData     MemoryStatData
	HierarchicalData  MemoryStatData
}

// MemoryStatData holds one side (container or hierarchical) of
// memory.stat.
type MemoryStatData struct {
	Cache          int64
	Rss            int64
	RssHuge        int64
	MappedFile     int64
	Pgpgin         int64
	Pgfault        int64
	Pgmajfault     int64
	Dirty          int64
	Writeback      int64
	InactiveAnon   int64
	ActiveAnon     int64
	InactiveFile   int64
	ActiveFile     int64
	Unevictable    int64
}

var memoryStatKeys = map[string]func(*MemoryStatData, int64){
	"cache":           func(d *MemoryStatData, v int64) { d.Cache = v },
	"rss":             func(d *MemoryStatData, v int64) { d.Rss = v },
	"rss_huge":        func(d *MemoryStatData, v int64) { d.RssHuge = v },
	"mapped_file":     func(d *MemoryStatData, v int64) { d.MappedFile = v },
	"pgpgin":          func(d *MemoryStatData, v int64) { d.Pgpgin = v },
	"pgfault":         func(d *MemoryStatData, v int64) { d.Pgfault = v },
	"pgmajfault":      func(d *MemoryStatData, v int64) { d.Pgmajfault = v },
	"dirty":           func(d *MemoryStatData, v int64) { d.Dirty = v },
	"writeback":       func(d *MemoryStatData, v int64) { d.Writeback = v },
	"inactive_anon":   func(d *MemoryStatData, v int64) { d.InactiveAnon = v },
	"active_anon":     func(d *MemoryStatData, v int64) { d.ActiveAnon = v },
	"inactive_file":   func(d *MemoryStatData, v int64) { d.InactiveFile = v },
	"active_file":     func(d *MemoryStatData, v int64) { d.ActiveFile = v },
	"unevictable":     func(d *MemoryStatData, v int64) { d.Unevictable = v },
}

// NumaStats is the parsed contents of memory.numa_stat: a named counter
// followed by per-node breakdowns, in both container and hierarchical
// form.
type NumaStats struct {
	Container     map[string]NumaCounter
	Hierarchical  map[string]NumaCounter
}

// NumaCounter is one line's total plus its per-NUMA-node counts.
type NumaCounter struct {
	Total int64
	Nodes map[int]int64
}

// IdlePageStats is the parsed contents of memory.idle_page_stats.
type IdlePageStats struct {
	Scans int64
	Stale int64
	// Idle is keyed by age (0 when the kernel omits the age token), and
	// within an age by bucket name ("clean", "dirty_file", "dirty_swap").
	Idle map[int]map[string]int64
}

// CompressionSamplingStats is the parsed contents of
// memory.compression_sampling_stats.
type CompressionSamplingStats struct {
	RawSize      int64
	CompressedSize int64
	FifoOverflow int64
}

// Memory wraps the memory hierarchy.
type Memory struct {
	Base
}

// NewMemory constructs a MemoryController bound to absolutePath.
func NewMemory(hierarchyPath, absolutePath string, ownsCgroup bool, fs kernelfs.Interface, listener notify.Interface) *Memory {
	return &Memory{Base: NewBase(hierarchy.Memory, hierarchyPath, absolutePath, ownsCgroup, fs, listener)}
}

func (m *Memory) setBytes(file string, bytes int64) *status.Status {
	return m.SetParamInt(file, maxInt64Wire(bytes))
}

// SetLimit writes memory.limit_in_bytes.
func (m *Memory) SetLimit(bytes int64) *status.Status { return m.setBytes(fileMemoryLimitInBytes, bytes) }

// SetSoftLimit writes memory.soft_limit_in_bytes.
func (m *Memory) SetSoftLimit(bytes int64) *status.Status {
	return m.setBytes(fileMemorySoftLimitInBytes, bytes)
}

// SetSwapLimit writes memory.memsw.limit_in_bytes.
func (m *Memory) SetSwapLimit(bytes int64) *status.Status {
	return m.setBytes(fileMemswLimitInBytes, bytes)
}

// SetStalePageAge writes memory.stale_page_age, the kstaled scan period
// in reclaim cycles.
func (m *Memory) SetStalePageAge(cycles int64) *status.Status {
	return m.SetParamInt(fileMemoryStalePageAge, cycles)
}

// SetOomScore writes memory.oom_score_badness.
func (m *Memory) SetOomScore(score int64) *status.Status {
	return m.SetParamInt(fileMemoryOomScoreBadness, score)
}

// SetCompressionSamplingRatio writes memory.compression_sampling_ratio.
func (m *Memory) SetCompressionSamplingRatio(ratio int64) *status.Status {
	return m.SetParamInt(fileMemoryCompressionSamplingRatio, ratio)
}

// SetDirtyRatio writes memory.dirty_ratio.
func (m *Memory) SetDirtyRatio(pct int64) *status.Status {
	return m.SetParamInt(fileMemoryDirtyRatio, pct)
}

// SetDirtyBackgroundRatio writes memory.dirty_background_ratio.
func (m *Memory) SetDirtyBackgroundRatio(pct int64) *status.Status {
	return m.SetParamInt(fileMemoryDirtyBackgroundRatio, pct)
}

// SetDirtyLimit writes memory.dirty_limit_in_bytes.
func (m *Memory) SetDirtyLimit(bytes int64) *status.Status {
	return m.setBytes(fileMemoryDirtyLimitInBytes, bytes)
}

// SetDirtyBackgroundLimit writes memory.dirty_background_limit_in_bytes.
func (m *Memory) SetDirtyBackgroundLimit(bytes int64) *status.Status {
	return m.setBytes(fileMemoryDirtyBackgroundLimitBytes, bytes)
}

// SetKmemChargeUsage writes memory.kmem_charge_usage.
func (m *Memory) SetKmemChargeUsage(on bool) *status.Status {
	return m.SetParamBool(fileMemoryKMemChargeUsage, on)
}

// GetLimit reads memory.limit_in_bytes.
func (m *Memory) GetLimit() (int64, *status.Status) { return m.GetParamInt(fileMemoryLimitInBytes) }

// GetSoftLimit reads memory.soft_limit_in_bytes.
func (m *Memory) GetSoftLimit() (int64, *status.Status) {
	return m.GetParamInt(fileMemorySoftLimitInBytes)
}

// GetSwapLimit reads memory.memsw.limit_in_bytes.
func (m *Memory) GetSwapLimit() (int64, *status.Status) {
	return m.GetParamInt(fileMemswLimitInBytes)
}

// GetUsage reads memory.usage_in_bytes.
func (m *Memory) GetUsage() (int64, *status.Status) { return m.GetParamInt(fileMemoryUsageInBytes) }

// GetMaxUsage reads memory.max_usage_in_bytes.
func (m *Memory) GetMaxUsage() (int64, *status.Status) {
	return m.GetParamInt(fileMemoryMaxUsageInBytes)
}

// GetSwapUsage reads memory.memsw.usage_in_bytes.
func (m *Memory) GetSwapUsage() (int64, *status.Status) {
	return m.GetParamInt(fileMemswUsageInBytes)
}

// GetSwapMaxUsage reads memory.memsw.max_usage_in_bytes.
func (m *Memory) GetSwapMaxUsage() (int64, *status.Status) {
	return m.GetParamInt(fileMemswMaxUsageInBytes)
}

// GetFailCount reads memory.failcnt.
func (m *Memory) GetFailCount() (int64, *status.Status) { return m.GetParamInt(fileMemoryFailCount) }

// GetEffectiveLimit derives the effective limit from the
// hierarchical_memory_limit row of memory.stat.
func (m *Memory) GetEffectiveLimit() (int64, *status.Status) {
	stat, err := m.readStatMap()
	if err != nil {
		return 0, err
	}
	v, ok := stat["hierarchical_memory_limit"]
	if !ok {
		return 0, status.New(status.NotFound, "hierarchical_memory_limit not present in %s", fileMemoryStat)
	}
	return v, nil
}

// GetWorkingSet computes usage minus the portion of memory considered
// reclaimable/stale, preferring memory.idle_page_stats and falling back
// to memory.stat's inactive counters when idle stats are unavailable.
func (m *Memory) GetWorkingSet() (int64, *status.Status) {
	usage, err := m.GetUsage()
	if err != nil {
		return 0, err
	}

	var stale int64
	idle, ierr := m.GetIdlePageStats()
	if ierr == nil {
		stale = idle.Stale
	} else if status.Is(ierr, status.NotFound) {
		stat, serr := m.readStatMap()
		if serr != nil {
			return 0, serr
		}
		stale = stat["total_inactive_anon"] + stat["total_inactive_file"]
	} else {
		return 0, ierr
	}

	ws := usage - stale
	if ws < 0 {
		ws = 0
	}
	return ws, nil
}

func (m *Memory) readStatMap() (map[string]int64, *status.Status) {
	lines, err := m.GetParamLines(fileMemoryStat)
	if err != nil {
		return nil, err
	}
	defer lines.Close()

	out := make(map[string]int64)
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
		out[fields[0]] = n
	}
	if lines.Err() != nil {
		return nil, lines.Err()
	}
	return out, nil
}

// GetMemoryStats fills container and hierarchical sub-records from
// memory.stat. Unrecognized keys are silently dropped.
func (m *Memory) GetMemoryStats() (MemoryStats, *status.Status) {
	raw, err := m.readStatMap()
	if err != nil {
		return MemoryStats{}, err
	}
	var stats MemoryStats
	for key, v := range raw {
		if strings.HasPrefix(key, "total_") {
			if setter, ok := memoryStatKeys[strings.TrimPrefix(key, "total_")]; ok {
				setter(&stats.HierarchicalData, v)
			}
			continue
		}
		if setter, ok := memoryStatKeys[key]; ok {
			setter(&stats.ContainerData, v)
		}
	}
	return stats, nil
}

// GetNumaStats parses memory.numa_stat.
func (m *Memory) GetNumaStats() (NumaStats, *status.Status) {
	lines, err := m.GetParamLines(fileMemoryNumaStat)
	if err != nil {
		return NumaStats{}, err
	}
	defer lines.Close()

	stats := NumaStats{Container: map[string]NumaCounter{}, Hierarchical: map[string]NumaCounter{}}
	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		nameTotal := strings.SplitN(fields[0], "=", 2)
		if len(nameTotal) != 2 {
			return NumaStats{}, status.New(status.FailedPrecondition, "malformed memory.numa_stat line %q", line)
		}
		total, convErr := strconv.ParseInt(nameTotal[1], 10, 64)
		if convErr != nil {
			return NumaStats{}, status.New(status.FailedPrecondition, "malformed memory.numa_stat total in %q", line)
		}

		counter := NumaCounter{Total: total, Nodes: map[int]int64{}}
		for _, f := range fields[1:] {
			if !strings.HasPrefix(f, "N") {
				continue
			}
			kv := strings.SplitN(f[1:], "=", 2)
			if len(kv) != 2 {
				return NumaStats{}, status.New(status.FailedPrecondition, "malformed memory.numa_stat node entry %q", f)
			}
			level, convErr := strconv.Atoi(kv[0])
			if convErr != nil {
				return NumaStats{}, status.New(status.FailedPrecondition, "malformed memory.numa_stat node id %q", kv[0])
			}
			count, convErr := strconv.ParseInt(kv[1], 10, 64)
			if convErr != nil {
				return NumaStats{}, status.New(status.FailedPrecondition, "malformed memory.numa_stat node count %q", kv[1])
			}
			if _, dup := counter.Nodes[level]; dup {
				return NumaStats{}, status.New(status.FailedPrecondition, "duplicate numa node %d in %q", level, line)
			}
			counter.Nodes[level] = count
		}

		name := nameTotal[0]
		if strings.HasPrefix(name, "hierarchical_") {
			stats.Hierarchical[strings.TrimPrefix(name, "hierarchical_")] = counter
		} else {
			stats.Container[name] = counter
		}
	}
	if lines.Err() != nil {
		return NumaStats{}, lines.Err()
	}
	return stats, nil
}

// GetIdlePageStats parses memory.idle_page_stats.
func (m *Memory) GetIdlePageStats() (IdlePageStats, *status.Status) {
	lines, err := m.GetParamLines(fileMemoryIdlePageStats)
	if err != nil {
		return IdlePageStats{}, err
	}
	defer lines.Close()

	stats := IdlePageStats{Idle: map[int]map[string]int64{}}
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
			return IdlePageStats{}, status.New(status.FailedPrecondition, "malformed memory.idle_page_stats value %q", line)
		}
		switch {
		case fields[0] == "scans":
			stats.Scans = n
		case fields[0] == "stale":
			stats.Stale = n
		case strings.HasPrefix(fields[0], "idle_"):
			rest := strings.TrimPrefix(fields[0], "idle_")
			age := 0
			if us := strings.IndexByte(rest, '_'); us >= 0 {
				if parsedAge, convErr := strconv.Atoi(rest[:us]); convErr == nil {
					age = parsedAge
					rest = rest[us+1:]
				}
			}
			if rest != "clean" && rest != "dirty_file" && rest != "dirty_swap" {
				return IdlePageStats{}, status.New(status.FailedPrecondition, "malformed memory.idle_page_stats key %q", fields[0])
			}
			if stats.Idle[age] == nil {
				stats.Idle[age] = map[string]int64{}
			}
			stats.Idle[age][rest] = n
		}
	}
	if lines.Err() != nil {
		return IdlePageStats{}, lines.Err()
	}
	return stats, nil
}

// GetCompressionSamplingStats parses memory.compression_sampling_stats.
func (m *Memory) GetCompressionSamplingStats() (CompressionSamplingStats, *status.Status) {
	lines, err := m.GetParamLines(fileMemoryCompressionSamplingStats)
	if err != nil {
		return CompressionSamplingStats{}, err
	}
	defer lines.Close()

	var stats CompressionSamplingStats
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
			return CompressionSamplingStats{}, status.New(status.FailedPrecondition, "malformed memory.compression_sampling_stats value %q", line)
		}
		switch fields[0] {
		case "raw_size":
			stats.RawSize = n
		case "compressed_size":
			stats.CompressedSize = n
		case "fifo_overflow":
			stats.FifoOverflow = n
		}
	}
	if lines.Err() != nil {
		return CompressionSamplingStats{}, lines.Err()
	}
	return stats, nil
}

// RegisterOomNotification registers cb against memory.oom_control.
func (m *Memory) RegisterOomNotification(cb EventCallback) (Handle, *status.Status) {
	return m.RegisterNotification(fileMemoryOomControl, "", cb)
}

// RegisterUsageThresholdNotification registers cb against
// memory.usage_in_bytes with threshold as the event_control argument.
func (m *Memory) RegisterUsageThresholdNotification(threshold int64, cb EventCallback) (Handle, *status.Status) {
	return m.RegisterNotification(fileMemoryUsageInBytes, strconv.FormatInt(threshold, 10), cb)
}

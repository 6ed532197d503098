// Package spec defines the ContainerSpec/ContainerStats/EventSpec data
// model resource handlers operate on, plus the per-domain FillDefaults
// methods a handler applies on a Replace-policy update.
package spec

import (
	"math"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/google/lmctfy-sub002/pkg/controller"
)

// UpdatePolicy selects whether Update treats the given spec as the
// complete desired state (Replace, triggering default-filling for every
// absent field) or as a delta layered onto the current configuration
// (Merge, leaving everything else untouched).
type UpdatePolicy int

const (
	Merge UpdatePolicy = iota
	Replace
)

// infiniteWire is the documented wire sentinel for "no limit".
const infiniteWire int64 = -1

func int64OrDefault(v *int64, def int64) *int64 {
	if v != nil {
		return v
	}
	d := def
	return &d
}

func boolOrDefault(v *bool, def bool) *bool {
	if v != nil {
		return v
	}
	d := def
	return &d
}

// CpuSpec is the CPU resource domain's sub-message.
type CpuSpec struct {
	MilliCpus          *int64
	MaxMilliCpus       *int64
	Latency            *controller.LatencyClass
	PlacementStrategy  *int64
}

// FillDefaults is a no-op: CpuSpec has no documented numeric defaults, so
// absent fields leave the cgroup at the kernel's own defaults.
func (s *CpuSpec) FillDefaults() {}

// Merge layers s onto base, field by field; any field set in s wins.
func (s *CpuSpec) Merge(base *CpuSpec) *CpuSpec {
	merged := *base
	if s.MilliCpus != nil {
		merged.MilliCpus = s.MilliCpus
	}
	if s.MaxMilliCpus != nil {
		merged.MaxMilliCpus = s.MaxMilliCpus
	}
	if s.Latency != nil {
		merged.Latency = s.Latency
	}
	if s.PlacementStrategy != nil {
		merged.PlacementStrategy = s.PlacementStrategy
	}
	return &merged
}

// MemorySpec is the Memory resource domain's sub-message.
type MemorySpec struct {
	LimitBytes                 *int64
	SoftLimitBytes              *int64
	SwapLimitBytes              *int64
	StalePageAgeCycles          *int64
	OomScore                    *int64
	EvictionPriority            *int64
	CompressionSamplingRatio    *int64
	DirtyRatio                  *int64
	DirtyBackgroundRatio        *int64
	DirtyLimitBytes             *int64
	DirtyBackgroundLimitBytes   *int64
	KmemChargeUsage             *bool
}

// FillDefaults applies the documented Replace-policy defaults.
func (s *MemorySpec) FillDefaults() {
	s.LimitBytes = int64OrDefault(s.LimitBytes, infiniteWire)
	s.SoftLimitBytes = int64OrDefault(s.SoftLimitBytes, infiniteWire)
	s.SwapLimitBytes = int64OrDefault(s.SwapLimitBytes, infiniteWire)
	s.OomScore = int64OrDefault(s.OomScore, 5000)
	s.DirtyRatio = int64OrDefault(s.DirtyRatio, 75)
	s.DirtyBackgroundRatio = int64OrDefault(s.DirtyBackgroundRatio, 10)
	s.KmemChargeUsage = boolOrDefault(s.KmemChargeUsage, false)
}

// Merge layers s onto base.
func (s *MemorySpec) Merge(base *MemorySpec) *MemorySpec {
	merged := *base
	if s.LimitBytes != nil {
		merged.LimitBytes = s.LimitBytes
	}
	if s.SoftLimitBytes != nil {
		merged.SoftLimitBytes = s.SoftLimitBytes
	}
	if s.SwapLimitBytes != nil {
		merged.SwapLimitBytes = s.SwapLimitBytes
	}
	if s.StalePageAgeCycles != nil {
		merged.StalePageAgeCycles = s.StalePageAgeCycles
	}
	if s.OomScore != nil {
		merged.OomScore = s.OomScore
	}
	if s.EvictionPriority != nil {
		merged.EvictionPriority = s.EvictionPriority
	}
	if s.CompressionSamplingRatio != nil {
		merged.CompressionSamplingRatio = s.CompressionSamplingRatio
	}
	if s.DirtyRatio != nil {
		merged.DirtyRatio = s.DirtyRatio
	}
	if s.DirtyBackgroundRatio != nil {
		merged.DirtyBackgroundRatio = s.DirtyBackgroundRatio
	}
	if s.DirtyLimitBytes != nil {
		merged.DirtyLimitBytes = s.DirtyLimitBytes
	}
	if s.DirtyBackgroundLimitBytes != nil {
		merged.DirtyBackgroundLimitBytes = s.DirtyBackgroundLimitBytes
	}
	if s.KmemChargeUsage != nil {
		merged.KmemChargeUsage = s.KmemChargeUsage
	}
	return &merged
}

// CpuSetSpec is the CpuSet resource domain's sub-message.
type CpuSetSpec struct {
	Cpus map[int]bool
	Mems map[int]bool
}

// FillDefaults is a no-op: an absent mask means "inherit the parent's",
// which is already the kernel's own cpuset semantics.
func (s *CpuSetSpec) FillDefaults() {}

// Merge layers s onto base.
func (s *CpuSetSpec) Merge(base *CpuSetSpec) *CpuSetSpec {
	merged := *base
	if s.Cpus != nil {
		merged.Cpus = s.Cpus
	}
	if s.Mems != nil {
		merged.Mems = s.Mems
	}
	return &merged
}

// BlockIoSpec is the BlockIo resource domain's sub-message.
type BlockIoSpec struct {
	DefaultLimit *int64
	PerDevice    []specs.LinuxWeightDevice
	ReadBps      []specs.LinuxThrottleDevice
	WriteBps     []specs.LinuxThrottleDevice
	ReadIops     []specs.LinuxThrottleDevice
	WriteIops    []specs.LinuxThrottleDevice
}

// FillDefaults has nothing to fill: an absent weight or per-device entry
// means "leave the kernel's own default untouched", not a documented
// numeric default.
func (s *BlockIoSpec) FillDefaults() {}

// Merge layers s onto base.
func (s *BlockIoSpec) Merge(base *BlockIoSpec) *BlockIoSpec {
	merged := *base
	if s.DefaultLimit != nil {
		merged.DefaultLimit = s.DefaultLimit
	}
	if s.PerDevice != nil {
		merged.PerDevice = s.PerDevice
	}
	if s.ReadBps != nil {
		merged.ReadBps = s.ReadBps
	}
	if s.WriteBps != nil {
		merged.WriteBps = s.WriteBps
	}
	if s.ReadIops != nil {
		merged.ReadIops = s.ReadIops
	}
	if s.WriteIops != nil {
		merged.WriteIops = s.WriteIops
	}
	return &merged
}

// DeviceSpec is the Device resource domain's sub-message.
type DeviceSpec struct {
	Rules []specs.LinuxDeviceCgroup
}

// FillDefaults is a no-op: an absent rule list means "don't change the
// current restrictions".
func (s *DeviceSpec) FillDefaults() {}

// Merge layers s onto base. Device rules replace wholesale rather than
// merging element-by-element, matching devices.allow/deny's own
// accumulate-by-write semantics.
func (s *DeviceSpec) Merge(base *DeviceSpec) *DeviceSpec {
	merged := *base
	if s.Rules != nil {
		merged.Rules = s.Rules
	}
	return &merged
}

// FilesystemSpec is the restored RLimit-backed filesystem resource
// domain's sub-message (open file descriptor ceiling).
type FilesystemSpec struct {
	FdLimit *int64
}

// FillDefaults applies the documented fd_limit default.
func (s *FilesystemSpec) FillDefaults() {
	s.FdLimit = int64OrDefault(s.FdLimit, math.MaxInt64)
}

// Merge layers s onto base.
func (s *FilesystemSpec) Merge(base *FilesystemSpec) *FilesystemSpec {
	merged := *base
	if s.FdLimit != nil {
		merged.FdLimit = s.FdLimit
	}
	return &merged
}

// ContainerSpec aggregates every resource domain's sub-message. A nil
// field means the caller did not address that domain at all.
type ContainerSpec struct {
	Cpu        *CpuSpec
	Memory     *MemorySpec
	CpuSet     *CpuSetSpec
	BlockIo    *BlockIoSpec
	Device     *DeviceSpec
	Filesystem *FilesystemSpec
}

// ContainerStats aggregates every resource domain's observed state. A
// nil field means no handler filled that domain (e.g. the hierarchy isn't
// managed). A handler whose getters all report NotFound still sets its
// field with every sub-field nil, except Device, which leaves it nil.
type ContainerStats struct {
	Cpu        *CpuStats
	CpuAcct    *CpuAcctStats
	Memory     *MemoryStats
	BlockIo    *BlockIoStats
	Device     *DeviceStats
	Filesystem *FilesystemStats
}

// CpuStats mirrors CpuSpec with observed rather than desired values.
type CpuStats struct {
	MilliCpus    *int64
	MaxMilliCpus *int64
	Throttling   *controller.ThrottlingStats
}

// CpuAcctStats is the usage-accounting counterpart to CpuStats.
type CpuAcctStats struct {
	UsageNs      *int64
	PerCpuUsageNs []int64
	CpuTime      *controller.CpuTime
}

// MemoryStats mirrors MemorySpec with observed rather than desired
// values, plus the derived/aggregate fields spec.md documents.
type MemoryStats struct {
	LimitBytes       *int64
	SoftLimitBytes   *int64
	SwapLimitBytes   *int64
	EffectiveLimit   *int64
	UsageBytes       *int64
	MaxUsageBytes    *int64
	SwapUsageBytes   *int64
	SwapMaxUsageBytes *int64
	FailCount        *int64
	WorkingSetBytes  *int64
	Detail           *controller.MemoryStats
}

// BlockIoStats mirrors BlockIoSpec with observed rather than desired
// values.
type BlockIoStats struct {
	DefaultLimit     *int64
	PerDevice        []specs.LinuxWeightDevice
	ServiceBytesTotal *int64
}

// DeviceStats reports the accumulated device rule set.
type DeviceStats struct {
	Rules []specs.LinuxDeviceCgroup
}

// FilesystemStats mirrors FilesystemSpec with observed rather than
// desired values.
type FilesystemStats struct {
	FdLimit       *int64
	FdUsage       *int64
	MaxFdUsage    *int64
	FdFailCount   *int64
}

// EventSpec describes a notification request. At most one subtype may be
// set; handlers reject both-set as InvalidArgument and neither-set as
// NotFound.
type EventSpec struct {
	Oom              bool
	MemoryThreshold  *int64
}

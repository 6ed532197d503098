package controller

import "math"

// LatencyClass is the four-way scheduling latency class CpuController
// exposes, mapped to fixed cpu.lat values.
type LatencyClass int

const (
	LatencyPremier LatencyClass = iota
	LatencyPriority
	LatencyNormal
	LatencyBestEffort
)

func (c LatencyClass) cpuLatValue() int64 {
	switch c {
	case LatencyPremier:
		return 25
	case LatencyPriority:
		return 50
	case LatencyNormal:
		return 100
	default:
		return -1
	}
}

// ThrottlingStats is the parsed contents of cpu.stat.
type ThrottlingStats struct {
	NrPeriods     int64
	NrThrottled   int64
	ThrottledTime int64
}

// CpuTime is the parsed, tick-converted contents of cpuacct.stat.
type CpuTime struct {
	UserNs   int64
	SystemNs int64
}

// FreezerState is the three externally observable freezer.state values,
// plus Unknown for a value this module does not recognize.
type FreezerState int

const (
	FreezerUnknown FreezerState = iota
	FreezerThawed
	FreezerFreezing
	FreezerFrozen
)

func parseFreezerState(s string) FreezerState {
	switch s {
	case "THAWED":
		return FreezerThawed
	case "FREEZING":
		return FreezerFreezing
	case "FROZEN":
		return FreezerFrozen
	default:
		return FreezerUnknown
	}
}

// DeviceLimit is one (major, minor) -> weight/rate entry. Major/Minor are
// nil when the entry applies to every device ("*:*"). The BlockIo
// controller does not use it: its weight and throttle files take
// specs.LinuxWeightDevice and specs.LinuxThrottleDevice.
type DeviceLimit struct {
	Major *int64
	Minor *int64
	Limit int64
}

// MaxLimitOp selects which pair of blkio.throttle files an update or
// read targets.
type MaxLimitOp int

const (
	OpRead MaxLimitOp = iota
	OpWrite
)

// MaxLimitType selects bytes-per-second vs IO-per-second throttling.
type MaxLimitType int

const (
	LimitBytesPerSecond MaxLimitType = iota
	LimitIOPerSecond
)

// maxInt64Wire clamps any effectively-infinite value to the wire
// representation the kernel and this module use for "no limit": -1.
func maxInt64Wire(v int64) int64 {
	if v >= math.MaxInt64 {
		return -1
	}
	return v
}

package controller

import (
	"fmt"
	"strconv"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// BlockIo wraps the blkio hierarchy: the default proportional weight,
// per-device weights, and the four throttle files. Per-device entries
// are represented with the OCI runtime-spec device-weight and
// device-throttle shapes rather than bespoke structs, since they already
// carry exactly the (major, minor, value) fields the kernel files need.
type BlockIo struct {
	Base
}

// NewBlockIo constructs a BlockIoController bound to absolutePath.
func NewBlockIo(hierarchyPath, absolutePath string, ownsCgroup bool, fs kernelfs.Interface, listener notify.Interface) *BlockIo {
	return &BlockIo{Base: NewBase(hierarchy.BlockIo, hierarchyPath, absolutePath, ownsCgroup, fs, listener)}
}

// UpdateDefaultLimit writes the proportional blkio.weight. w must be in
// [1, 100]; the kernel file itself stores weight*10.
func (b *BlockIo) UpdateDefaultLimit(w int64) *status.Status {
	if w < 1 || w > 100 {
		return status.New(status.InvalidArgument, "blkio weight %d out of range [1,100]", w)
	}
	return b.SetParamInt(fileBlkioWeight, w*10)
}

// GetDefaultLimit is the inverse of UpdateDefaultLimit.
func (b *BlockIo) GetDefaultLimit() (int64, *status.Status) {
	raw, err := b.GetParamInt(fileBlkioWeight)
	if err != nil {
		return 0, err
	}
	return (raw + 5) / 10, nil
}

// UpdatePerDeviceLimit writes one weight_device line per entry. Writes
// are independent: a failure partway through leaves the earlier writes
// committed, matching the kernel file's non-transactional nature — there
// is no rollback path for a partially applied device weight set.
func (b *BlockIo) UpdatePerDeviceLimit(devices []specs.LinuxWeightDevice) *status.Status {
	for _, d := range devices {
		if d.Weight == nil {
			return status.New(status.InvalidArgument, "device %d:%d missing weight", d.Major, d.Minor)
		}
		w := int64(*d.Weight)
		if w < 1 || w > 100 {
			return status.New(status.InvalidArgument, "device %d:%d weight %d out of range [1,100]", d.Major, d.Minor, w)
		}
		line := fmt.Sprintf("%d:%d %d", d.Major, d.Minor, w*10)
		if err := b.SetParamString(fileBlkioWeightDevice, line); err != nil {
			return err
		}
	}
	return nil
}

// GetDeviceLimits parses blkio.weight_device. Malformed lines are
// skipped; an empty file yields an empty slice.
func (b *BlockIo) GetDeviceLimits() ([]specs.LinuxWeightDevice, *status.Status) {
	lines, err := b.GetParamLines(fileBlkioWeightDevice)
	if err != nil {
		return nil, err
	}
	defer lines.Close()

	var out []specs.LinuxWeightDevice
	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		d, ok := parseDeviceWeightLine(line)
		if ok {
			out = append(out, d)
		}
	}
	if lines.Err() != nil {
		return nil, lines.Err()
	}
	return out, nil
}

func parseDeviceWeightLine(line string) (specs.LinuxWeightDevice, bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return specs.LinuxWeightDevice{}, false
	}
	majorMinor := strings.SplitN(fields[0], ":", 2)
	if len(majorMinor) != 2 {
		return specs.LinuxWeightDevice{}, false
	}
	major, err1 := strconv.ParseInt(majorMinor[0], 10, 64)
	minor, err2 := strconv.ParseInt(majorMinor[1], 10, 64)
	weight, err3 := strconv.ParseUint(fields[1], 10, 16)
	if err1 != nil || err2 != nil || err3 != nil {
		return specs.LinuxWeightDevice{}, false
	}
	w := uint16(weight)
	var d specs.LinuxWeightDevice
	d.Major = major
	d.Minor = minor
	d.Weight = &w
	return d, true
}

func maxLimitFile(op MaxLimitOp, limitType MaxLimitType) string {
	return MaxLimitFile(op, limitType)
}

// MaxLimitFile returns the kernel file GetMaxLimit's result map is keyed by
// for (op, limitType), so callers holding a GetMaxLimit result know which
// key to look up without hardcoding the kernel file names themselves.
func MaxLimitFile(op MaxLimitOp, limitType MaxLimitType) string {
	switch {
	case op == OpRead && limitType == LimitBytesPerSecond:
		return fileBlkioThrottleReadBps
	case op == OpWrite && limitType == LimitBytesPerSecond:
		return fileBlkioThrottleWriteBps
	case op == OpRead && limitType == LimitIOPerSecond:
		return fileBlkioThrottleReadIops
	default:
		return fileBlkioThrottleWriteIops
	}
}

// UpdateMaxLimit writes each throttle entry to the file selected by
// (op, limitType).
func (b *BlockIo) UpdateMaxLimit(op MaxLimitOp, limitType MaxLimitType, devices []specs.LinuxThrottleDevice) *status.Status {
	file := maxLimitFile(op, limitType)
	for _, d := range devices {
		line := fmt.Sprintf("%d:%d %d", d.Major, d.Minor, d.Rate)
		if err := b.SetParamString(file, line); err != nil {
			return err
		}
	}
	return nil
}

// GetMaxLimit reads all four throttle files. A missing file surfaces as
// NotFound for the whole call.
func (b *BlockIo) GetMaxLimit() (map[string][]specs.LinuxThrottleDevice, *status.Status) {
	out := make(map[string][]specs.LinuxThrottleDevice)
	for _, file := range []string{
		fileBlkioThrottleReadBps, fileBlkioThrottleWriteBps,
		fileBlkioThrottleReadIops, fileBlkioThrottleWriteIops,
	} {
		lines, err := b.GetParamLines(file)
		if err != nil {
			return nil, err
		}
		var devices []specs.LinuxThrottleDevice
		for {
			line, ok := lines.Next()
			if !ok {
				break
			}
			d, ok := parseThrottleLine(line)
			if ok {
				devices = append(devices, d)
			}
		}
		lines.Close()
		out[file] = devices
	}
	return out, nil
}

// GetServiceBytesTotal sums the per-device "Total" lines of
// blkio.throttle.io_service_bytes, giving the cumulative bytes the
// container has read or written. Per-device Read/Write breakdowns aren't
// surfaced; nothing in this implementation's data model needs them yet.
func (b *BlockIo) GetServiceBytesTotal() (int64, *status.Status) {
	lines, err := b.GetParamLines(fileBlkioThrottleIoServiceBytes)
	if err != nil {
		return 0, err
	}
	defer lines.Close()

	var total int64
	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		fields := strings.Fields(line)
		if len(fields) != 3 || fields[1] != "Total" {
			continue
		}
		v, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			continue
		}
		total += v
	}
	if lines.Err() != nil {
		return 0, lines.Err()
	}
	return total, nil
}

func parseThrottleLine(line string) (specs.LinuxThrottleDevice, bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return specs.LinuxThrottleDevice{}, false
	}
	majorMinor := strings.SplitN(fields[0], ":", 2)
	if len(majorMinor) != 2 {
		return specs.LinuxThrottleDevice{}, false
	}
	major, err1 := strconv.ParseInt(majorMinor[0], 10, 64)
	minor, err2 := strconv.ParseInt(majorMinor[1], 10, 64)
	rate, err3 := strconv.ParseUint(fields[1], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return specs.LinuxThrottleDevice{}, false
	}
	var d specs.LinuxThrottleDevice
	d.Major = major
	d.Minor = minor
	d.Rate = rate
	return d, true
}

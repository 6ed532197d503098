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

// Device wraps the devices hierarchy. Rules are represented with the OCI
// runtime-spec LinuxDeviceCgroup shape: Type is "a"/"b"/"c", Allow is the
// permission, Access is the ordered "rwm" permutation, Major/Minor are
// nil for the "*" wildcard.
type Device struct {
	Base
}

// NewDevice constructs a DeviceController bound to absolutePath.
func NewDevice(hierarchyPath, absolutePath string, ownsCgroup bool, fs kernelfs.Interface, listener notify.Interface) *Device {
	return &Device{Base: NewBase(hierarchy.Device, hierarchyPath, absolutePath, ownsCgroup, fs, listener)}
}

func validDeviceType(t string) bool {
	return t == "a" || t == "b" || t == "c"
}

// dedupAccess preserves the order access values were listed in while
// dropping duplicates, and rejects anything outside {r,w,m}.
func dedupAccess(access string) (string, bool) {
	seen := map[byte]bool{}
	var out strings.Builder
	for i := 0; i < len(access); i++ {
		c := access[i]
		if c != 'r' && c != 'w' && c != 'm' {
			return "", false
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out.WriteByte(c)
	}
	return out.String(), true
}

func majorMinorField(v *int64) string {
	if v == nil {
		return "*"
	}
	return strconv.FormatInt(*v, 10)
}

func serializeDeviceRule(rule specs.LinuxDeviceCgroup, access string) string {
	return fmt.Sprintf("%s %s:%s %s", rule.Type, majorMinorField(rule.Major), majorMinorField(rule.Minor), access)
}

// SetRestrictions validates and writes each rule to devices.allow or
// devices.deny depending on its Allow field. Major/Minor present or
// absent both mean exactly what they say here: unlike VerifyRestriction,
// this is the write path and requires Type and a non-empty Access.
func (d *Device) SetRestrictions(rules []specs.LinuxDeviceCgroup) *status.Status {
	for _, rule := range rules {
		if !validDeviceType(rule.Type) {
			return status.New(status.InvalidArgument, "device rule missing or invalid type %q", rule.Type)
		}
		access, ok := dedupAccess(rule.Access)
		if !ok || access == "" {
			return status.New(status.InvalidArgument, "device rule has empty or invalid access %q", rule.Access)
		}
		line := serializeDeviceRule(rule, access)
		file := fileDevicesDeny
		if rule.Allow {
			file = fileDevicesAllow
		}
		if err := d.SetParamString(file, line); err != nil {
			return err
		}
	}
	return nil
}

// VerifyRestriction applies the lighter-weight validation used to check
// a rule before accepting it into a spec, without writing anything.
// Missing major/minor is allowed here (it means "*:*"). At most three
// access values, no duplicates.
func (d *Device) VerifyRestriction(rule specs.LinuxDeviceCgroup) *status.Status {
	if !validDeviceType(rule.Type) {
		return status.New(status.InvalidArgument, "device rule missing or invalid type %q", rule.Type)
	}
	if len(rule.Access) == 0 || len(rule.Access) > 3 {
		return status.New(status.InvalidArgument, "device rule access %q must list 1-3 values", rule.Access)
	}
	access, ok := dedupAccess(rule.Access)
	if !ok || access != rule.Access {
		return status.New(status.InvalidArgument, "device rule access %q has duplicates or unknown values", rule.Access)
	}
	return nil
}

// GetState parses devices.list into the accumulated rule set. An empty
// file means "all denied", reported as a single ALL/DENY/rwm rule.
func (d *Device) GetState() ([]specs.LinuxDeviceCgroup, *status.Status) {
	lines, err := d.GetParamLines(fileDevicesList)
	if err != nil {
		return nil, err
	}
	defer lines.Close()

	var rules []specs.LinuxDeviceCgroup
	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rule, ok := parseDeviceListLine(line)
		if !ok {
			return nil, status.New(status.Internal, "malformed devices.list line %q", line)
		}
		rules = append(rules, rule)
	}
	if lines.Err() != nil {
		return nil, lines.Err()
	}
	if len(rules) == 0 {
		var denied specs.LinuxDeviceCgroup
		denied.Type = "a"
		denied.Allow = false
		denied.Access = "rwm"
		return []specs.LinuxDeviceCgroup{denied}, nil
	}
	return rules, nil
}

func parseDeviceListLine(line string) (specs.LinuxDeviceCgroup, bool) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return specs.LinuxDeviceCgroup{}, false
	}
	if !validDeviceType(fields[0]) {
		return specs.LinuxDeviceCgroup{}, false
	}
	majorMinor := strings.SplitN(fields[1], ":", 2)
	if len(majorMinor) != 2 {
		return specs.LinuxDeviceCgroup{}, false
	}
	access, ok := dedupAccess(fields[2])
	if !ok {
		return specs.LinuxDeviceCgroup{}, false
	}

	var rule specs.LinuxDeviceCgroup
	rule.Type = fields[0]
	rule.Allow = true
	rule.Access = access
	if majorMinor[0] != "*" {
		major, err := strconv.ParseInt(majorMinor[0], 10, 64)
		if err != nil {
			return specs.LinuxDeviceCgroup{}, false
		}
		rule.Major = &major
	}
	if majorMinor[1] != "*" {
		minor, err := strconv.ParseInt(majorMinor[1], 10, 64)
		if err != nil {
			return specs.LinuxDeviceCgroup{}, false
		}
		rule.Minor = &minor
	}
	return rule, true
}

package controller

import (
	"testing"

	"github.com/stretchr/testify/require"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/status"
)

func newTestDevice(t *testing.T, fs *kernelfs.Fake) *Device {
	t.Helper()
	fs.SetDir("/sys/fs/cgroup/devices/x")
	return NewDevice("/x", "/sys/fs/cgroup/devices/x", true, fs, notify.NewFake())
}

func TestSetRestrictionsAllAllowedRoundTrip(t *testing.T) {
	fs := kernelfs.NewFake()
	d := newTestDevice(t, fs)
	fs.SetFile("/sys/fs/cgroup/devices/x/devices.allow", "")
	fs.SetFile("/sys/fs/cgroup/devices/x/devices.list", "")

	var rule specs.LinuxDeviceCgroup
	rule.Type = "a"
	rule.Allow = true
	rule.Access = "rwm"

	require.Nil(t, d.SetRestrictions([]specs.LinuxDeviceCgroup{rule}))
	got, _ := fs.FileContents("/sys/fs/cgroup/devices/x/devices.allow")
	require.Equal(t, "a *:* rwm", got)
}

func TestSetRestrictionsWritesToDenyWhenNotAllowed(t *testing.T) {
	fs := kernelfs.NewFake()
	d := newTestDevice(t, fs)
	fs.SetFile("/sys/fs/cgroup/devices/x/devices.deny", "")

	var major, minor int64 = 8, 0
	var rule specs.LinuxDeviceCgroup
	rule.Type = "b"
	rule.Allow = false
	rule.Access = "rw"
	rule.Major = &major
	rule.Minor = &minor

	require.Nil(t, d.SetRestrictions([]specs.LinuxDeviceCgroup{rule}))
	got, _ := fs.FileContents("/sys/fs/cgroup/devices/x/devices.deny")
	require.Equal(t, "b 8:0 rw", got)
}

func TestSetRestrictionsRejectsEmptyAccess(t *testing.T) {
	fs := kernelfs.NewFake()
	d := newTestDevice(t, fs)

	var rule specs.LinuxDeviceCgroup
	rule.Type = "c"
	rule.Allow = true

	err := d.SetRestrictions([]specs.LinuxDeviceCgroup{rule})
	require.NotNil(t, err)
	require.Equal(t, status.InvalidArgument, err.Code())
}

func TestVerifyRestrictionAllowsMissingMajorMinor(t *testing.T) {
	fs := kernelfs.NewFake()
	d := newTestDevice(t, fs)

	var rule specs.LinuxDeviceCgroup
	rule.Type = "a"
	rule.Access = "rw"

	require.Nil(t, d.VerifyRestriction(rule))
}

func TestVerifyRestrictionRejectsDuplicateAccess(t *testing.T) {
	fs := kernelfs.NewFake()
	d := newTestDevice(t, fs)

	var rule specs.LinuxDeviceCgroup
	rule.Type = "a"
	rule.Access = "rr"

	err := d.VerifyRestriction(rule)
	require.NotNil(t, err)
	require.Equal(t, status.InvalidArgument, err.Code())
}

func TestGetStateEmptyFileMeansAllDenied(t *testing.T) {
	fs := kernelfs.NewFake()
	d := newTestDevice(t, fs)
	fs.SetFile("/sys/fs/cgroup/devices/x/devices.list", "")

	got, err := d.GetState()
	require.Nil(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].Type)
	require.False(t, got[0].Allow)
	require.Equal(t, "rwm", got[0].Access)
}

func TestGetStateParsesAllAllowedLine(t *testing.T) {
	fs := kernelfs.NewFake()
	d := newTestDevice(t, fs)
	fs.SetFile("/sys/fs/cgroup/devices/x/devices.list", "a *:* rwm\n")

	got, err := d.GetState()
	require.Nil(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].Type)
	require.True(t, got[0].Allow)
	require.Nil(t, got[0].Major)
}

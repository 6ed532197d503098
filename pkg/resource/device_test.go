package resource

import (
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/require"

	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/spec"
	"github.com/google/lmctfy-sub002/pkg/status"
)

func newTestDeviceHandler(t *testing.T, fs *kernelfs.Fake) *Device {
	t.Helper()
	fs.SetDir("/sys/fs/cgroup/devices/x")
	return NewDevice(controller.NewDevice("/x", "/sys/fs/cgroup/devices/x", true, fs, notify.NewFake()))
}

func TestDeviceUpdateWritesAllowedRule(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestDeviceHandler(t, fs)
	fs.SetFile("/sys/fs/cgroup/devices/x/devices.allow", "")

	rule := specs.LinuxDeviceCgroup{Type: "c", Allow: true, Access: "rwm"}
	require.Nil(t, h.Update(spec.ContainerSpec{Device: &spec.DeviceSpec{Rules: []specs.LinuxDeviceCgroup{rule}}}, spec.Merge))

	got, _ := fs.FileContents("/sys/fs/cgroup/devices/x/devices.allow")
	require.Equal(t, "c *:* rwm", got)
}

func TestDeviceUpdateRejectsInvalidType(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestDeviceHandler(t, fs)

	rule := specs.LinuxDeviceCgroup{Type: "x", Allow: true, Access: "rwm"}
	err := h.Update(spec.ContainerSpec{Device: &spec.DeviceSpec{Rules: []specs.LinuxDeviceCgroup{rule}}}, spec.Merge)
	require.NotNil(t, err)
	require.Equal(t, status.InvalidArgument, err.Code())
}

func TestDeviceSpecEmptyListMeansAllowAll(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestDeviceHandler(t, fs)
	fs.SetFile("/sys/fs/cgroup/devices/x/devices.list", "")

	out := &spec.ContainerSpec{}
	require.Nil(t, h.Spec(out))
	require.Len(t, out.Device.Rules, 1)
	require.Equal(t, "a", out.Device.Rules[0].Type)
}

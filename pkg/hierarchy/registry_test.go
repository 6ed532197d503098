package hierarchy

import (
	"testing"

	"github.com/containerd/cgroups"
	"github.com/stretchr/testify/require"

	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/status"
)

func withMounts(t *testing.T, mounts, cgroups string) *Registry {
	t.Helper()
	fs := kernelfs.NewFake()
	fs.SetFile("/proc/mounts", mounts)
	fs.SetFile("/proc/cgroups", cgroups)
	r, err := NewRegistry(fs)
	require.Nil(t, err)
	return r
}

const sampleCgroups = `#subsys_name	hierarchy	num_cgroups	enabled
cpu	1	10	1
cpuacct	1	10	1
cpuset	2	1	1
memory	3	5	1
blkio	4	1	1
devices	5	1	0
freezer	6	1	1
`

func TestCoMountedOwnershipPicksHighestPriority(t *testing.T) {
	// cpu and cpuacct co-mounted: Cpu outranks CpuAcct in OwnershipPriority.
	mounts := "cgroup /sys/fs/cgroup/cpu,cpuacct cgroup rw,nosuid,cpu,cpuacct 0 0\n"
	r := withMounts(t, mounts, sampleCgroups)

	require.True(t, r.OwnsCgroup(Cpu))
	require.False(t, r.OwnsCgroup(CpuAcct))

	cpuMp, err := r.MountPoint(Cpu)
	require.Nil(t, err)
	acctMp, err := r.MountPoint(CpuAcct)
	require.Nil(t, err)
	require.Equal(t, cpuMp.AbsolutePath, acctMp.AbsolutePath)
}

func TestUnmountedHierarchyIsNotFound(t *testing.T) {
	r := withMounts(t, "", sampleCgroups)
	_, err := r.MountPoint(Memory)
	require.True(t, status.Is(err, status.NotFound))
	require.False(t, r.Mounted(Memory))
}

func TestSupportedDropsDisabledSubsystems(t *testing.T) {
	r := withMounts(t, "", sampleCgroups)
	require.True(t, r.Supported(Cpu))
	require.False(t, r.Supported(Device))
}

func TestSeparatelyMountedHierarchyOwnsItself(t *testing.T) {
	mounts := "cgroup /sys/fs/cgroup/memory cgroup rw,memory 0 0\n" +
		"cgroup /sys/fs/cgroup/freezer cgroup rw,freezer 0 0\n"
	r := withMounts(t, mounts, sampleCgroups)
	require.True(t, r.OwnsCgroup(Memory))
	require.True(t, r.OwnsCgroup(Freezer))
}

func TestNonCgroupMountLinesAreIgnored(t *testing.T) {
	mounts := "tmpfs /tmp tmpfs rw,nosuid 0 0\n" +
		"cgroup /sys/fs/cgroup/cpu cgroup rw,cpu 0 0\n"
	r := withMounts(t, mounts, sampleCgroups)
	require.True(t, r.Mounted(Cpu))
	require.False(t, r.Mounted(Memory))
}

func TestModeReflectsHostDetection(t *testing.T) {
	r := withMounts(t, "", sampleCgroups)
	// cgroups.Mode() reads the real host's /sys/fs/cgroup, so the exact
	// value isn't fixed here; it must be one of the library's known modes
	// and Mode() must report back whatever NewRegistry recorded.
	switch r.Mode() {
	case cgroups.Unavailable, cgroups.Legacy, cgroups.Hybrid, cgroups.Unified:
	default:
		t.Fatalf("unexpected cgroup mode %v", r.Mode())
	}
}

func TestUnmountedHierarchyNotesUnifiedHost(t *testing.T) {
	r := withMounts(t, "", sampleCgroups)
	r.mode = cgroups.Unified

	_, err := r.MountPoint(Memory)
	require.True(t, status.Is(err, status.NotFound))
	require.Contains(t, err.Error(), "unified cgroup v2")
}

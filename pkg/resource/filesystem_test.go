package resource

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/spec"
	"github.com/google/lmctfy-sub002/pkg/status"
)

func newTestFilesystemHandler(t *testing.T, fs *kernelfs.Fake) *Filesystem {
	t.Helper()
	fs.SetDir("/sys/fs/cgroup/rlimit/x")
	return NewFilesystem(controller.NewRLimit("/x", "/sys/fs/cgroup/rlimit/x", true, fs, notify.NewFake()))
}

func TestFilesystemUpdateReplaceFillsUnlimitedDefault(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestFilesystemHandler(t, fs)
	fs.SetFile("/sys/fs/cgroup/rlimit/x/rlimit.fd_limit", "0")

	require.Nil(t, h.Update(spec.ContainerSpec{Filesystem: &spec.FilesystemSpec{}}, spec.Replace))
	got, _ := fs.FileContents("/sys/fs/cgroup/rlimit/x/rlimit.fd_limit")
	require.Equal(t, "-1", got)
}

func TestFilesystemMergeRejectsUnsetFdLimit(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestFilesystemHandler(t, fs)
	// rlimit.fd_limit was never written, so GetFdLimit reports NotFound and
	// the merged spec still has no fd_limit set.

	err := h.Update(spec.ContainerSpec{Filesystem: &spec.FilesystemSpec{}}, spec.Merge)
	require.True(t, status.Is(err, status.InvalidArgument))
}

func TestFilesystemMergeKeepsCurrentFdLimitWhenUnchanged(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestFilesystemHandler(t, fs)
	fs.SetFile("/sys/fs/cgroup/rlimit/x/rlimit.fd_limit", "256")

	require.Nil(t, h.Update(spec.ContainerSpec{Filesystem: &spec.FilesystemSpec{}}, spec.Merge))
	got, _ := fs.FileContents("/sys/fs/cgroup/rlimit/x/rlimit.fd_limit")
	require.Equal(t, "256", got)
}

func TestFilesystemStatsReportsUsageAndFailCount(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestFilesystemHandler(t, fs)
	fs.SetFile("/sys/fs/cgroup/rlimit/x/rlimit.fd_usage", "12")
	fs.SetFile("/sys/fs/cgroup/rlimit/x/rlimit.fd_fail_count", "0")

	out := &spec.ContainerStats{}
	require.Nil(t, h.Stats(out))
	require.Equal(t, int64(12), *out.Filesystem.FdUsage)
	require.Equal(t, int64(0), *out.Filesystem.FdFailCount)
}

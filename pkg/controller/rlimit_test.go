package controller

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
)

func TestSetFdLimitMapsInfiniteToWireSentinel(t *testing.T) {
	fs := kernelfs.NewFake()
	fs.SetDir("/sys/fs/cgroup/rlimit/x")
	fs.SetFile("/sys/fs/cgroup/rlimit/x/rlimit.fd_limit", "0")
	r := NewRLimit("/x", "/sys/fs/cgroup/rlimit/x", true, fs, notify.NewFake())

	require.Nil(t, r.SetFdLimit(1<<63-1))
	got, _ := fs.FileContents("/sys/fs/cgroup/rlimit/x/rlimit.fd_limit")
	require.Equal(t, "-1", got)
}

func TestGetFdUsageReadsFile(t *testing.T) {
	fs := kernelfs.NewFake()
	fs.SetDir("/sys/fs/cgroup/rlimit/x")
	fs.SetFile("/sys/fs/cgroup/rlimit/x/rlimit.fd_usage", "42")
	r := NewRLimit("/x", "/sys/fs/cgroup/rlimit/x", true, fs, notify.NewFake())

	got, err := r.GetFdUsage()
	require.Nil(t, err)
	require.Equal(t, int64(42), got)
}

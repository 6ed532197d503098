package kernelfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/lmctfy-sub002/pkg/status"
)

func TestFakeReadToStringNotFound(t *testing.T) {
	f := NewFake()
	_, err := f.ReadToString("/sys/fs/cgroup/memory/x/memory.limit_in_bytes")
	require.True(t, status.Is(err, status.NotFound))
}

func TestFakeWriteThenRead(t *testing.T) {
	f := NewFake()
	f.SetFile("/sys/fs/cgroup/cpu/x/cpu.shares", "1024")
	require.Nil(t, f.SafeWrite("/sys/fs/cgroup/cpu/x/cpu.shares", "2048"))
	v, err := f.ReadToString("/sys/fs/cgroup/cpu/x/cpu.shares")
	require.Nil(t, err)
	require.Equal(t, "2048", v)
}

func TestFakeSafeWriteMissingFile(t *testing.T) {
	f := NewFake()
	err := f.SafeWrite("/does/not/exist", "1")
	require.True(t, status.Is(err, status.NotFound))
}

func TestFakeMkdirAlreadyExists(t *testing.T) {
	f := NewFake()
	f.SetDir("/sys/fs/cgroup/cpu")
	require.Nil(t, f.Mkdir("/sys/fs/cgroup/cpu/x"))
	require.True(t, status.Is(f.Mkdir("/sys/fs/cgroup/cpu/x"), status.AlreadyExists))
}

func TestFakeRmdirNotEmpty(t *testing.T) {
	f := NewFake()
	f.SetDir("/sys/fs/cgroup/cpu/x")
	f.SetDir("/sys/fs/cgroup/cpu/x/child")
	require.True(t, status.Is(f.Rmdir("/sys/fs/cgroup/cpu/x"), status.FailedPrecondition))
}

func TestFakeReadDirListsImmediateChildrenOnly(t *testing.T) {
	f := NewFake()
	f.SetDir("/root")
	f.SetDir("/root/a")
	f.SetDir("/root/a/nested")
	f.SetFile("/root/tasks", "1\n2\n")
	names, err := f.ReadDir("/root")
	require.Nil(t, err)
	require.ElementsMatch(t, []string{"a", "tasks"}, names)
}

func TestFakeReadLinesIsRestartable(t *testing.T) {
	f := NewFake()
	f.SetFile("/x", "a\nb\nc\n")

	it, err := f.ReadLines("/x")
	require.Nil(t, err)
	var lines []string
	for {
		l, ok := it.Next()
		if !ok {
			break
		}
		lines = append(lines, l)
	}
	require.Equal(t, []string{"a", "b", "c"}, lines)

	// A fresh iterator re-reads from the start even if the file changed.
	f.SetFile("/x", "z\n")
	it2, _ := f.ReadLines("/x")
	l, ok := it2.Next()
	require.True(t, ok)
	require.Equal(t, "z", l)
}

func TestFakeEventFdFireAndDrain(t *testing.T) {
	f := NewFake()
	efd, err := f.EventFd()
	require.Nil(t, err)

	n, err := f.ReadFd(efd, make([]byte, 8))
	require.Nil(t, err)
	require.Equal(t, 0, n)

	f.Fire(efd)
	n, err = f.ReadFd(efd, make([]byte, 8))
	require.Nil(t, err)
	require.Equal(t, 8, n)

	// Draining consumes the counter.
	n, _ = f.ReadFd(efd, make([]byte, 8))
	require.Equal(t, 0, n)
}

func TestFakeEpollWaitReportsFiredCookies(t *testing.T) {
	f := NewFake()
	epfd, err := f.EpollCreate()
	require.Nil(t, err)
	efd, err := f.EventFd()
	require.Nil(t, err)
	require.Nil(t, f.EpollCtlAdd(epfd, efd, 42))

	cookies, err := f.EpollWait(epfd, 0)
	require.Nil(t, err)
	require.Empty(t, cookies)

	f.Fire(efd)
	cookies, err = f.EpollWait(epfd, 0)
	require.Nil(t, err)
	require.Equal(t, []uint64{42}, cookies)
}

func TestFakeAccessErrOverride(t *testing.T) {
	f := NewFake()
	f.SetFile("/x", "1")
	f.SetAccessErr("/x", status.New(status.FailedPrecondition, "simulated"))
	require.True(t, status.Is(f.Access("/x", F_OK), status.FailedPrecondition))
	// Override is consumed once.
	require.Nil(t, f.Access("/x", F_OK))
}

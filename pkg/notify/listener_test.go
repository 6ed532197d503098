package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/status"
)

type capturedCallback struct {
	mu    sync.Mutex
	calls []*status.Status
}

func (c *capturedCallback) cb(s *status.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s)
}

func (c *capturedCallback) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *capturedCallback) last() *status.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestListenerDeliversOKOnFire(t *testing.T) {
	fs := kernelfs.NewFake()
	fs.SetFile("/cg/memory.oom_control", "")
	fs.SetFile("/cg/cgroup.event_control", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := NewListener(ctx, fs)
	require.Nil(t, err)

	var cb capturedCallback
	handle, err := l.Register("/cg/cgroup.event_control", "/cg/memory.oom_control", "", cb.cb)
	require.Nil(t, err)

	contents, _ := fs.FileContents("/cg/cgroup.event_control")
	require.NotEmpty(t, contents)

	// Simulate the kernel firing the eventfd. The listener created it
	// internally, so take its number from the "<event_fd> <target_fd>"
	// line it wrote to the control file and fire that fd.
	var eventFdNum, targetFdNum int
	_, scanErr := fmt.Sscanf(contents, "%d %d", &eventFdNum, &targetFdNum)
	require.Nil(t, scanErr)
	fs.Fire(eventFdNum)

	waitFor(t, func() bool { return cb.count() > 0 })
	require.Nil(t, cb.last())

	l.Unregister(handle)
	waitFor(t, func() bool { return cb.count() == 2 })
	require.True(t, status.Is(cb.last(), status.Cancelled))
}

func TestListenerUnregisterBeforeFireDeliversCancelledOnce(t *testing.T) {
	fs := kernelfs.NewFake()
	fs.SetFile("/cg/memory.oom_control", "")
	fs.SetFile("/cg/cgroup.event_control", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := NewListener(ctx, fs)
	require.Nil(t, err)

	var cb capturedCallback
	handle, err := l.Register("/cg/cgroup.event_control", "/cg/memory.oom_control", "", cb.cb)
	require.Nil(t, err)

	l.Unregister(handle)
	require.Equal(t, 1, cb.count())
	require.True(t, status.Is(cb.last(), status.Cancelled))

	// A second Unregister is a no-op.
	l.Unregister(handle)
	require.Equal(t, 1, cb.count())
}

func TestListenerCancelsWhenTargetRemoved(t *testing.T) {
	fs := kernelfs.NewFake()
	fs.SetFile("/cg/memory.oom_control", "")
	fs.SetFile("/cg/cgroup.event_control", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := NewListener(ctx, fs)
	require.Nil(t, err)

	var cb capturedCallback
	_, err = l.Register("/cg/cgroup.event_control", "/cg/memory.oom_control", "", cb.cb)
	require.Nil(t, err)

	contents, _ := fs.FileContents("/cg/cgroup.event_control")
	var eventFdNum, targetFdNum int
	_, scanErr := fmt.Sscanf(contents, "%d %d", &eventFdNum, &targetFdNum)
	require.Nil(t, scanErr)

	fs.RemoveFile("/cg/memory.oom_control")
	fs.Fire(eventFdNum)

	waitFor(t, func() bool { return cb.count() > 0 })
	require.True(t, status.Is(cb.last(), status.Cancelled))
}

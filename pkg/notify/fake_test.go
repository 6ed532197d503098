package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/lmctfy-sub002/pkg/status"
)

func TestFakeFireDeliversOK(t *testing.T) {
	f := NewFake()
	var got []*status.Status
	h, err := f.Register("/cg/cgroup.event_control", "/cg/memory.oom_control", "", func(s *status.Status) {
		got = append(got, s)
	})
	require.Nil(t, err)

	f.Fire(h)
	require.Len(t, got, 1)
	require.Nil(t, got[0])
}

func TestFakeUnregisterDeliversCancelledOnce(t *testing.T) {
	f := NewFake()
	var got []*status.Status
	h, _ := f.Register("/cg/cgroup.event_control", "/cg/memory.oom_control", "", func(s *status.Status) {
		got = append(got, s)
	})

	f.Unregister(h)
	f.Unregister(h)
	require.Len(t, got, 1)
	require.True(t, status.Is(got[0], status.Cancelled))

	// Firing after unregister is a no-op.
	f.Fire(h)
	require.Len(t, got, 1)
}

func TestFakeRecordsRegistrationArguments(t *testing.T) {
	f := NewFake()
	_, err := f.Register("/cg/cgroup.event_control", "/cg/memory.usage_in_bytes", "1048576", func(*status.Status) {})
	require.Nil(t, err)
	require.Len(t, f.Registered, 1)
	require.Equal(t, "1048576", f.Registered[0].Arguments)
}

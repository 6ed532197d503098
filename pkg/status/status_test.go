package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCarriesCode(t *testing.T) {
	s := New(NotFound, "missing %s", "memory.limit_in_bytes")
	require.Equal(t, NotFound, s.Code())
	require.Contains(t, s.Error(), "memory.limit_in_bytes")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("open: no such file")
	s := Wrap(FailedPrecondition, cause, "mkdir %s", "/sys/fs/cgroup/x")
	require.Equal(t, FailedPrecondition, s.Code())
	require.ErrorIs(t, s, cause)
}

func TestAnnotatefPreservesOriginalCode(t *testing.T) {
	base := New(InvalidArgument, "bad weight")
	annotated := Annotatef(base, "update_per_device_limit")
	require.Equal(t, InvalidArgument, annotated.Code())
}

func TestAnnotatefDefaultsToInternal(t *testing.T) {
	annotated := Annotatef(errors.New("boom"), "parse")
	require.Equal(t, Internal, annotated.Code())
}

func TestIs(t *testing.T) {
	s := New(Cancelled, "unregistered")
	require.True(t, Is(s, Cancelled))
	require.False(t, Is(s, OK))
	require.False(t, Is(errors.New("plain"), Cancelled))
}

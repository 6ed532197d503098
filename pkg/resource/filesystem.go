package resource

import (
	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/spec"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// Filesystem is the restored RLimit-backed filesystem resource handler
// (open file descriptor ceiling).
type Filesystem struct {
	ctrl *controller.RLimit
}

// NewFilesystem builds a Filesystem handler atop ctrl.
func NewFilesystem(ctrl *controller.RLimit) *Filesystem {
	return &Filesystem{ctrl: ctrl}
}

// CreateResource has no one-time setup for Filesystem.
func (h *Filesystem) CreateResource(s spec.ContainerSpec) *status.Status { return nil }

func (h *Filesystem) specFromKernel() (*spec.FilesystemSpec, *status.Status) {
	out := &spec.FilesystemSpec{}
	v, err := h.ctrl.GetFdLimit()
	if err != nil {
		if status.Is(err, status.NotFound) {
			return out, nil
		}
		return nil, err
	}
	out.FdLimit = &v
	return out, nil
}

func verifyFilesystemSpec(f *spec.FilesystemSpec) *status.Status {
	if f.FdLimit == nil {
		return invalidArgf("filesystem requires fd_limit set")
	}
	return nil
}

// Update applies s.Filesystem to the kernel, following the same
// fill-defaults/merge/verify/write pipeline as Memory.Update: on Replace,
// FillDefaults supplies the documented unlimited default when the caller
// left fd_limit unset, but every policy must still end up with fd_limit
// set on the merged view, or the update is rejected.
func (h *Filesystem) Update(s spec.ContainerSpec, policy spec.UpdatePolicy) *status.Status {
	if s.Filesystem == nil {
		return nil
	}
	adjusted := *s.Filesystem
	if policy == spec.Replace {
		adjusted.FillDefaults()
	}

	current, err := h.specFromKernel()
	if err != nil {
		return err
	}
	merged := adjusted.Merge(current)
	if err := verifyFilesystemSpec(merged); err != nil {
		return err
	}

	if adjusted.FdLimit == nil {
		return nil
	}
	return h.ctrl.SetFdLimit(*adjusted.FdLimit)
}

// Stats fills out.Filesystem from the kernel.
func (h *Filesystem) Stats(out *spec.ContainerStats) *status.Status {
	stats := &spec.FilesystemStats{}
	type field struct {
		get func() (int64, *status.Status)
		set func(int64)
	}
	fields := []field{
		{h.ctrl.GetFdLimit, func(v int64) { stats.FdLimit = &v }},
		{h.ctrl.GetFdUsage, func(v int64) { stats.FdUsage = &v }},
		{h.ctrl.GetMaxFdUsage, func(v int64) { stats.MaxFdUsage = &v }},
		{h.ctrl.GetFdFailCount, func(v int64) { stats.FdFailCount = &v }},
	}
	for _, f := range fields {
		v, err := f.get()
		if err != nil {
			if status.Is(err, status.NotFound) {
				continue
			}
			return err
		}
		f.set(v)
	}
	out.Filesystem = stats
	return nil
}

// Spec fills out.Filesystem from the kernel.
func (h *Filesystem) Spec(out *spec.ContainerSpec) *status.Status {
	s, err := h.specFromKernel()
	if err != nil {
		return err
	}
	out.Filesystem = s
	return nil
}

// RegisterNotification: the filesystem domain has no notification
// subtypes.
func (h *Filesystem) RegisterNotification(ev spec.EventSpec, cb controller.EventCallback) (controller.Handle, *status.Status) {
	return 0, status.New(status.NotFound, "filesystem resource handler has no notification subtypes")
}

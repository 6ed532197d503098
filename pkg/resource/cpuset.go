package resource

import (
	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/spec"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// CpuSet is the resource handler for the cpuset hierarchy.
type CpuSet struct {
	ctrl *controller.CpuSet
}

// NewCpuSet builds a CpuSet handler atop ctrl.
func NewCpuSet(ctrl *controller.CpuSet) *CpuSet {
	return &CpuSet{ctrl: ctrl}
}

// CreateResource has no one-time setup for CpuSet.
func (h *CpuSet) CreateResource(s spec.ContainerSpec) *status.Status { return nil }

func (h *CpuSet) specFromKernel() (*spec.CpuSetSpec, *status.Status) {
	out := &spec.CpuSetSpec{}
	if cpus, err := h.ctrl.GetCpuMask(); err == nil {
		out.Cpus = cpus
	} else if !status.Is(err, status.NotFound) {
		return nil, err
	}
	if mems, err := h.ctrl.GetMemoryNodes(); err == nil {
		out.Mems = mems
	} else if !status.Is(err, status.NotFound) {
		return nil, err
	}
	return out, nil
}

// Update applies s.CpuSet to the kernel.
func (h *CpuSet) Update(s spec.ContainerSpec, policy spec.UpdatePolicy) *status.Status {
	if s.CpuSet == nil {
		return nil
	}
	adjusted := *s.CpuSet
	if policy == spec.Replace {
		adjusted.FillDefaults()
	}
	if adjusted.Cpus != nil {
		if err := h.ctrl.SetCpuMask(adjusted.Cpus); err != nil {
			return err
		}
	}
	if adjusted.Mems != nil {
		if err := h.ctrl.SetMemoryNodes(adjusted.Mems); err != nil {
			return err
		}
	}
	return nil
}

// Stats is a no-op: cpuset has no separate stats domain and
// ContainerStats has no CpuSet field; the configured masks are reported
// by Spec.
func (h *CpuSet) Stats(out *spec.ContainerStats) *status.Status { return nil }

// Spec fills out.CpuSet from the kernel.
func (h *CpuSet) Spec(out *spec.ContainerSpec) *status.Status {
	s, err := h.specFromKernel()
	if err != nil {
		return err
	}
	out.CpuSet = s
	return nil
}

// RegisterNotification: cpuset has no notification subtypes.
func (h *CpuSet) RegisterNotification(ev spec.EventSpec, cb controller.EventCallback) (controller.Handle, *status.Status) {
	return 0, status.New(status.NotFound, "cpuset resource handler has no notification subtypes")
}

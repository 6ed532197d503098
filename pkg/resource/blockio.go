package resource

import (
	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/spec"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// BlockIo is the resource handler for the blkio hierarchy.
type BlockIo struct {
	ctrl *controller.BlockIo
}

// NewBlockIo builds a BlockIo handler atop ctrl.
func NewBlockIo(ctrl *controller.BlockIo) *BlockIo {
	return &BlockIo{ctrl: ctrl}
}

// CreateResource has no one-time setup for BlockIo.
func (h *BlockIo) CreateResource(s spec.ContainerSpec) *status.Status { return nil }

func (h *BlockIo) specFromKernel() (*spec.BlockIoSpec, *status.Status) {
	out := &spec.BlockIoSpec{}
	if v, err := h.ctrl.GetDefaultLimit(); err == nil {
		out.DefaultLimit = &v
	} else if !status.Is(err, status.NotFound) {
		return nil, err
	}
	if devs, err := h.ctrl.GetDeviceLimits(); err == nil {
		out.PerDevice = devs
	} else if !status.Is(err, status.NotFound) {
		return nil, err
	}
	max, err := h.ctrl.GetMaxLimit()
	if err != nil && !status.Is(err, status.NotFound) {
		return nil, err
	}
	if max != nil {
		out.ReadBps = max[controller.MaxLimitFile(controller.OpRead, controller.LimitBytesPerSecond)]
		out.WriteBps = max[controller.MaxLimitFile(controller.OpWrite, controller.LimitBytesPerSecond)]
		out.ReadIops = max[controller.MaxLimitFile(controller.OpRead, controller.LimitIOPerSecond)]
		out.WriteIops = max[controller.MaxLimitFile(controller.OpWrite, controller.LimitIOPerSecond)]
	}
	return out, nil
}

// Update applies s.BlockIo to the kernel. Per-device weight and throttle
// writes are not transactional: a failure partway through a device list
// leaves the devices already written in place.
func (h *BlockIo) Update(s spec.ContainerSpec, policy spec.UpdatePolicy) *status.Status {
	if s.BlockIo == nil {
		return nil
	}
	adjusted := *s.BlockIo
	if policy == spec.Replace {
		adjusted.FillDefaults()
	}
	if adjusted.DefaultLimit != nil {
		if err := h.ctrl.UpdateDefaultLimit(*adjusted.DefaultLimit); err != nil {
			return err
		}
	}
	if adjusted.PerDevice != nil {
		if err := h.ctrl.UpdatePerDeviceLimit(adjusted.PerDevice); err != nil {
			return err
		}
	}
	if adjusted.ReadBps != nil {
		if err := h.ctrl.UpdateMaxLimit(controller.OpRead, controller.LimitBytesPerSecond, adjusted.ReadBps); err != nil {
			return err
		}
	}
	if adjusted.WriteBps != nil {
		if err := h.ctrl.UpdateMaxLimit(controller.OpWrite, controller.LimitBytesPerSecond, adjusted.WriteBps); err != nil {
			return err
		}
	}
	if adjusted.ReadIops != nil {
		if err := h.ctrl.UpdateMaxLimit(controller.OpRead, controller.LimitIOPerSecond, adjusted.ReadIops); err != nil {
			return err
		}
	}
	if adjusted.WriteIops != nil {
		if err := h.ctrl.UpdateMaxLimit(controller.OpWrite, controller.LimitIOPerSecond, adjusted.WriteIops); err != nil {
			return err
		}
	}
	return nil
}

// Stats fills out.BlockIo from the kernel.
func (h *BlockIo) Stats(out *spec.ContainerStats) *status.Status {
	stats := &spec.BlockIoStats{}
	if v, err := h.ctrl.GetDefaultLimit(); err == nil {
		stats.DefaultLimit = &v
	} else if !status.Is(err, status.NotFound) {
		return err
	}
	if devs, err := h.ctrl.GetDeviceLimits(); err == nil {
		stats.PerDevice = devs
	} else if !status.Is(err, status.NotFound) {
		return err
	}
	if v, err := h.ctrl.GetServiceBytesTotal(); err == nil {
		stats.ServiceBytesTotal = &v
	} else if !status.Is(err, status.NotFound) {
		return err
	}
	out.BlockIo = stats
	return nil
}

// Spec fills out.BlockIo from the kernel.
func (h *BlockIo) Spec(out *spec.ContainerSpec) *status.Status {
	s, err := h.specFromKernel()
	if err != nil {
		return err
	}
	out.BlockIo = s
	return nil
}

// RegisterNotification: blkio has no notification subtypes.
func (h *BlockIo) RegisterNotification(ev spec.EventSpec, cb controller.EventCallback) (controller.Handle, *status.Status) {
	return 0, status.New(status.NotFound, "blockio resource handler has no notification subtypes")
}

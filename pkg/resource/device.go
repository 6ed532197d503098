package resource

import (
	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/spec"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// Device is the resource handler for the devices hierarchy.
type Device struct {
	ctrl *controller.Device
}

// NewDevice builds a Device handler atop ctrl.
func NewDevice(ctrl *controller.Device) *Device {
	return &Device{ctrl: ctrl}
}

// CreateResource has no one-time setup for Device.
func (h *Device) CreateResource(s spec.ContainerSpec) *status.Status { return nil }

// Update applies s.Device to the kernel. Device rules replace wholesale:
// every rule in the adjusted spec is re-verified then written, matching
// devices.allow/deny's accumulate-by-write kernel semantics.
func (h *Device) Update(s spec.ContainerSpec, policy spec.UpdatePolicy) *status.Status {
	if s.Device == nil {
		return nil
	}
	adjusted := *s.Device
	if policy == spec.Replace {
		adjusted.FillDefaults()
	}
	if adjusted.Rules == nil {
		return nil
	}
	for _, rule := range adjusted.Rules {
		if err := h.ctrl.VerifyRestriction(rule); err != nil {
			return err
		}
	}
	return h.ctrl.SetRestrictions(adjusted.Rules)
}

// Stats fills out.Device from the kernel.
func (h *Device) Stats(out *spec.ContainerStats) *status.Status {
	rules, err := h.ctrl.GetState()
	if err != nil {
		if status.Is(err, status.NotFound) {
			return nil
		}
		return err
	}
	out.Device = &spec.DeviceStats{Rules: rules}
	return nil
}

// Spec fills out.Device from the kernel.
func (h *Device) Spec(out *spec.ContainerSpec) *status.Status {
	rules, err := h.ctrl.GetState()
	if err != nil {
		if status.Is(err, status.NotFound) {
			return nil
		}
		return err
	}
	out.Device = &spec.DeviceSpec{Rules: rules}
	return nil
}

// RegisterNotification: devices has no notification subtypes.
func (h *Device) RegisterNotification(ev spec.EventSpec, cb controller.EventCallback) (controller.Handle, *status.Status) {
	return 0, status.New(status.NotFound, "device resource handler has no notification subtypes")
}

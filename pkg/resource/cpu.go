package resource

import (
	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/spec"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// Cpu is the resource handler for the cpu and cpuacct hierarchies.
type Cpu struct {
	ctrl     *controller.Cpu
	acctCtrl *controller.CpuAcct
}

// NewCpu builds a Cpu handler atop ctrl and, optionally, acctCtrl (nil if
// cpuacct isn't mounted — Stats simply omits the usage-accounting
// fields).
func NewCpu(ctrl *controller.Cpu, acctCtrl *controller.CpuAcct) *Cpu {
	return &Cpu{ctrl: ctrl, acctCtrl: acctCtrl}
}

// CreateResource has no one-time setup for Cpu.
func (h *Cpu) CreateResource(s spec.ContainerSpec) *status.Status { return nil }

func (h *Cpu) specFromKernel() (*spec.CpuSpec, *status.Status) {
	out := &spec.CpuSpec{}
	if v, err := h.ctrl.GetMilliCpus(); err == nil {
		out.MilliCpus = &v
	} else if !status.Is(err, status.NotFound) {
		return nil, err
	}
	if v, err := h.ctrl.GetMaxMilliCpus(); err == nil {
		out.MaxMilliCpus = &v
	} else if !status.Is(err, status.NotFound) {
		return nil, err
	}
	return out, nil
}

// Update applies s.Cpu to the kernel.
func (h *Cpu) Update(s spec.ContainerSpec, policy spec.UpdatePolicy) *status.Status {
	if s.Cpu == nil {
		return nil
	}
	adjusted := *s.Cpu
	if policy == spec.Replace {
		adjusted.FillDefaults()
	}
	if adjusted.MilliCpus != nil {
		if err := h.ctrl.SetMilliCpus(*adjusted.MilliCpus); err != nil {
			return err
		}
	}
	if adjusted.MaxMilliCpus != nil {
		if err := h.ctrl.SetMaxMilliCpus(*adjusted.MaxMilliCpus); err != nil {
			return err
		}
	}
	if adjusted.Latency != nil {
		if err := h.ctrl.SetLatency(*adjusted.Latency); err != nil {
			return err
		}
	}
	if adjusted.PlacementStrategy != nil {
		if err := h.ctrl.SetPlacementStrategy(int(*adjusted.PlacementStrategy)); err != nil {
			return err
		}
	}
	return nil
}

// Stats fills out.Cpu and, if cpuacct is mounted, out.CpuAcct.
func (h *Cpu) Stats(out *spec.ContainerStats) *status.Status {
	stats := &spec.CpuStats{}
	if v, err := h.ctrl.GetMilliCpus(); err == nil {
		stats.MilliCpus = &v
	} else if !status.Is(err, status.NotFound) {
		return err
	}
	if v, err := h.ctrl.GetMaxMilliCpus(); err == nil {
		stats.MaxMilliCpus = &v
	} else if !status.Is(err, status.NotFound) {
		return err
	}
	if t, err := h.ctrl.GetThrottlingStats(); err == nil {
		stats.Throttling = &t
	} else if !status.Is(err, status.NotFound) {
		return err
	}
	out.Cpu = stats

	if h.acctCtrl == nil {
		return nil
	}
	acct := &spec.CpuAcctStats{}
	if v, err := h.acctCtrl.GetCpuUsageNs(); err == nil {
		acct.UsageNs = &v
	} else if !status.Is(err, status.NotFound) {
		return err
	}
	if v, err := h.acctCtrl.GetPerCpuUsageNs(); err == nil {
		acct.PerCpuUsageNs = v
	} else if !status.Is(err, status.NotFound) {
		return err
	}
	if t, err := h.acctCtrl.GetCpuTime(); err == nil {
		acct.CpuTime = &t
	} else if !status.Is(err, status.NotFound) {
		return err
	}
	out.CpuAcct = acct
	return nil
}

// Spec fills out.Cpu from the kernel.
func (h *Cpu) Spec(out *spec.ContainerSpec) *status.Status {
	s, err := h.specFromKernel()
	if err != nil {
		return err
	}
	out.Cpu = s
	return nil
}

// RegisterNotification: the cpu/cpuacct domain has no notification
// subtypes today.
func (h *Cpu) RegisterNotification(ev spec.EventSpec, cb controller.EventCallback) (controller.Handle, *status.Status) {
	return 0, status.New(status.NotFound, "cpu resource handler has no notification subtypes")
}

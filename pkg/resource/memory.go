package resource

import (
	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/spec"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// Memory is the resource handler for the memory hierarchy.
type Memory struct {
	ctrl *controller.Memory
}

// NewMemory builds a Memory handler atop ctrl.
func NewMemory(ctrl *controller.Memory) *Memory {
	return &Memory{ctrl: ctrl}
}

// CreateResource enables kstaled (stale-page scanning) if the kernel
// supports it; absence is not an error.
func (h *Memory) CreateResource(s spec.ContainerSpec) *status.Status {
	return downgradeOptional(h.ctrl.SetStalePageAge(1))
}

func (h *Memory) specFromKernel() (*spec.MemorySpec, *status.Status) {
	out := &spec.MemorySpec{}
	if err := h.fillSpec(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Memory) fillSpec(out *spec.MemorySpec) *status.Status {
	type field struct {
		get func() (int64, *status.Status)
		set func(int64)
	}
	fields := []field{
		{h.ctrl.GetLimit, func(v int64) { out.LimitBytes = &v }},
		{h.ctrl.GetSoftLimit, func(v int64) { out.SoftLimitBytes = &v }},
		{h.ctrl.GetSwapLimit, func(v int64) { out.SwapLimitBytes = &v }},
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
	return nil
}

func verifyMemorySpec(m *spec.MemorySpec) *status.Status {
	if m.EvictionPriority != nil && (*m.EvictionPriority < 0 || *m.EvictionPriority > 100) {
		return invalidArgf("memory eviction priority %d out of range [0,100]", *m.EvictionPriority)
	}
	dirtyRatioSet := m.DirtyRatio != nil
	dirtyLimitSet := m.DirtyLimitBytes != nil
	if dirtyRatioSet && dirtyLimitSet {
		return invalidArgf("memory dirty_ratio and dirty_limit are mutually exclusive")
	}
	bgRatioSet := m.DirtyBackgroundRatio != nil
	bgLimitSet := m.DirtyBackgroundLimitBytes != nil
	if bgRatioSet && bgLimitSet {
		return invalidArgf("memory dirty_background_ratio and dirty_background_limit are mutually exclusive")
	}
	return nil
}

// Update applies s.Memory to the kernel, following the documented
// fill-defaults/merge/verify/write pipeline.
func (h *Memory) Update(s spec.ContainerSpec, policy spec.UpdatePolicy) *status.Status {
	if s.Memory == nil {
		return nil
	}
	adjusted := *s.Memory
	if policy == spec.Replace {
		adjusted.FillDefaults()
	}

	current, err := h.specFromKernel()
	if err != nil {
		return err
	}
	merged := adjusted.Merge(current)
	if err := verifyMemorySpec(merged); err != nil {
		return err
	}

	return h.doUpdate(&adjusted)
}

func (h *Memory) doUpdate(adjusted *spec.MemorySpec) *status.Status {
	type setter struct {
		present bool
		apply   func() *status.Status
		optional bool
	}
	setters := []setter{
		{adjusted.LimitBytes != nil, func() *status.Status { return h.ctrl.SetLimit(*adjusted.LimitBytes) }, false},
		{adjusted.SoftLimitBytes != nil, func() *status.Status { return h.ctrl.SetSoftLimit(*adjusted.SoftLimitBytes) }, false},
		{adjusted.SwapLimitBytes != nil, func() *status.Status { return h.ctrl.SetSwapLimit(*adjusted.SwapLimitBytes) }, false},
		{adjusted.StalePageAgeCycles != nil, func() *status.Status { return h.ctrl.SetStalePageAge(*adjusted.StalePageAgeCycles) }, true},
		{adjusted.OomScore != nil, func() *status.Status { return h.ctrl.SetOomScore(*adjusted.OomScore) }, true},
		{adjusted.CompressionSamplingRatio != nil, func() *status.Status { return h.ctrl.SetCompressionSamplingRatio(*adjusted.CompressionSamplingRatio) }, true},
		{adjusted.DirtyRatio != nil, func() *status.Status { return h.ctrl.SetDirtyRatio(*adjusted.DirtyRatio) }, false},
		{adjusted.DirtyBackgroundRatio != nil, func() *status.Status { return h.ctrl.SetDirtyBackgroundRatio(*adjusted.DirtyBackgroundRatio) }, false},
		{adjusted.DirtyLimitBytes != nil, func() *status.Status { return h.ctrl.SetDirtyLimit(*adjusted.DirtyLimitBytes) }, false},
		{adjusted.DirtyBackgroundLimitBytes != nil, func() *status.Status { return h.ctrl.SetDirtyBackgroundLimit(*adjusted.DirtyBackgroundLimitBytes) }, false},
		{adjusted.KmemChargeUsage != nil, func() *status.Status { return h.ctrl.SetKmemChargeUsage(*adjusted.KmemChargeUsage) }, true},
	}
	for _, s := range setters {
		if !s.present {
			continue
		}
		if err := s.apply(); err != nil {
			if s.optional && status.Is(err, status.NotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

// Stats fills out.Memory from the kernel.
func (h *Memory) Stats(out *spec.ContainerStats) *status.Status {
	stats := &spec.MemoryStats{}

	type field struct {
		get func() (int64, *status.Status)
		set func(int64)
	}
	fields := []field{
		{h.ctrl.GetLimit, func(v int64) { stats.LimitBytes = &v }},
		{h.ctrl.GetSoftLimit, func(v int64) { stats.SoftLimitBytes = &v }},
		{h.ctrl.GetSwapLimit, func(v int64) { stats.SwapLimitBytes = &v }},
		{h.ctrl.GetEffectiveLimit, func(v int64) { stats.EffectiveLimit = &v }},
		{h.ctrl.GetUsage, func(v int64) { stats.UsageBytes = &v }},
		{h.ctrl.GetMaxUsage, func(v int64) { stats.MaxUsageBytes = &v }},
		{h.ctrl.GetSwapUsage, func(v int64) { stats.SwapUsageBytes = &v }},
		{h.ctrl.GetSwapMaxUsage, func(v int64) { stats.SwapMaxUsageBytes = &v }},
		{h.ctrl.GetFailCount, func(v int64) { stats.FailCount = &v }},
		{h.ctrl.GetWorkingSet, func(v int64) { stats.WorkingSetBytes = &v }},
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

	detail, err := h.ctrl.GetMemoryStats()
	if err == nil {
		stats.Detail = &detail
	} else if !status.Is(err, status.NotFound) {
		return err
	}

	out.Memory = stats
	return nil
}

// Spec fills out.Memory from the kernel.
func (h *Memory) Spec(out *spec.ContainerSpec) *status.Status {
	s, err := h.specFromKernel()
	if err != nil {
		return err
	}
	out.Memory = s
	return nil
}

// RegisterNotification wires Oom / MemoryThreshold subtypes of ev to the
// underlying memory.oom_control / memory.usage_in_bytes registrations.
func (h *Memory) RegisterNotification(ev spec.EventSpec, cb controller.EventCallback) (controller.Handle, *status.Status) {
	if ev.Oom && ev.MemoryThreshold != nil {
		return 0, invalidArgf("event spec sets both Oom and MemoryThreshold")
	}
	if ev.Oom {
		return h.ctrl.RegisterOomNotification(cb)
	}
	if ev.MemoryThreshold != nil {
		return h.ctrl.RegisterUsageThresholdNotification(*ev.MemoryThreshold, cb)
	}
	return 0, status.New(status.NotFound, "event spec sets no recognized memory subtype")
}

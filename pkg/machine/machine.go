// Package machine is the process-wide bootstrap: it is init_machine (see
// the Design Notes glossary) — the one legitimate place this module
// constructs its capabilities (KernelFs, HierarchyRegistry,
// EventListener, CgroupFactory) as concrete values instead of having
// every package reach for a global singleton. Everything downstream
// takes these as explicit arguments.
package machine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/google/lmctfy-sub002/pkg/cgroupfactory"
	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/resource"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// Machine holds the capabilities every resource handler and controller in
// this process is built from.
type Machine struct {
	Fs       kernelfs.Interface
	Registry *hierarchy.Registry
	Factory  *cgroupfactory.Factory
	Listener *notify.Listener

	managed []hierarchy.Kind
}

// Config selects which hierarchies Init manages. An empty Hierarchies
// list means every kind among Cpu, CpuAcct, CpuSet, Memory, BlockIo,
// Device, Freezer and RLimit that the registry finds mounted.
type Config struct {
	Hierarchies []hierarchy.Kind
}

// Init discovers the machine's cgroup mount table, starts the event
// listener goroutine, and returns a Machine ready to build per-container
// resource handlers from. ctx governs the listener's lifetime; callers
// should cancel it on shutdown.
func Init(ctx context.Context, cfg Config) (*Machine, *status.Status) {
	fs := kernelfs.NewLinux()

	registry, err := hierarchy.NewRegistry(fs)
	if err != nil {
		return nil, err
	}

	listener, err := notify.NewListener(ctx, fs)
	if err != nil {
		return nil, err
	}

	managed := cfg.Hierarchies
	if len(managed) == 0 {
		managed = defaultManagedKinds(registry)
	}
	for _, k := range managed {
		if !registry.Mounted(k) {
			logrus.Warnf("machine: hierarchy %s is not mounted, CreateContainer will fail on it", k)
		}
	}

	return &Machine{
		Fs:       fs,
		Registry: registry,
		Factory:  cgroupfactory.New(fs, registry),
		Listener: listener,
		managed:  managed,
	}, nil
}

func defaultManagedKinds(registry *hierarchy.Registry) []hierarchy.Kind {
	all := []hierarchy.Kind{
		hierarchy.Cpu, hierarchy.CpuAcct, hierarchy.CpuSet, hierarchy.Memory,
		hierarchy.BlockIo, hierarchy.Device, hierarchy.Freezer, hierarchy.RLimit,
	}
	var managed []hierarchy.Kind
	for _, k := range all {
		if registry.Mounted(k) {
			managed = append(managed, k)
		}
	}
	return managed
}

// ContainerControllers is the set of per-hierarchy controllers bound to
// one container's cgroup path, plus the resource.Composite sequencing
// Enter/Destroy across them.
type ContainerControllers struct {
	Composite  *resource.Composite
	Cpu        *controller.Cpu
	CpuAcct    *controller.CpuAcct
	CpuSet     *controller.CpuSet
	Memory     *controller.Memory
	BlockIo    *controller.BlockIo
	Device     *controller.Device
	Freezer    *controller.Freezer
	RLimit     *controller.RLimit
	Resources  map[hierarchy.Kind]resource.Handler
}

// CreateContainer creates the cgroup directory (where this process owns
// the mount) for every managed hierarchy at hierarchyPath and returns the
// bound controllers and resource handlers. A hierarchy this process does
// not manage is simply absent from the result; a managed hierarchy that
// isn't mounted makes CreateContainer fail with FailedPrecondition,
// wrapping the registry's NotFound.
func (m *Machine) CreateContainer(hierarchyPath string) (*ContainerControllers, *status.Status) {
	cc := &ContainerControllers{
		Composite: resource.NewComposite(),
		Resources: make(map[hierarchy.Kind]resource.Handler),
	}

	for _, kind := range m.managed {
		abs, err := m.Factory.Create(kind, hierarchyPath)
		if err != nil {
			return nil, status.Wrap(status.FailedPrecondition, err, "create cgroup for %s at %s", kind, hierarchyPath)
		}
		owns := m.Factory.OwnsCgroup(kind)

		switch kind {
		case hierarchy.Cpu:
			cc.Cpu = controller.NewCpu(hierarchyPath, abs, owns, m.Fs, m.Listener)
			cc.Composite.Add(kind, cc.Cpu)
		case hierarchy.CpuAcct:
			cc.CpuAcct = controller.NewCpuAcct(hierarchyPath, abs, owns, m.Fs, m.Listener)
			cc.Composite.Add(kind, cc.CpuAcct)
		case hierarchy.CpuSet:
			cc.CpuSet = controller.NewCpuSet(hierarchyPath, abs, owns, m.Fs, m.Listener)
			cc.Composite.Add(kind, cc.CpuSet)
			cc.Resources[kind] = resource.NewCpuSet(cc.CpuSet)
		case hierarchy.Memory:
			cc.Memory = controller.NewMemory(hierarchyPath, abs, owns, m.Fs, m.Listener)
			cc.Composite.Add(kind, cc.Memory)
			cc.Resources[kind] = resource.NewMemory(cc.Memory)
		case hierarchy.BlockIo:
			cc.BlockIo = controller.NewBlockIo(hierarchyPath, abs, owns, m.Fs, m.Listener)
			cc.Composite.Add(kind, cc.BlockIo)
			cc.Resources[kind] = resource.NewBlockIo(cc.BlockIo)
		case hierarchy.Device:
			cc.Device = controller.NewDevice(hierarchyPath, abs, owns, m.Fs, m.Listener)
			cc.Composite.Add(kind, cc.Device)
			cc.Resources[kind] = resource.NewDevice(cc.Device)
		case hierarchy.Freezer:
			cc.Freezer = controller.NewFreezer(hierarchyPath, abs, owns, m.Fs, m.Listener)
			cc.Composite.Add(kind, cc.Freezer)
		case hierarchy.RLimit:
			cc.RLimit = controller.NewRLimit(hierarchyPath, abs, owns, m.Fs, m.Listener)
			cc.Composite.Add(kind, cc.RLimit)
			cc.Resources[kind] = resource.NewFilesystem(cc.RLimit)
		}
	}

	if cc.Cpu != nil {
		cc.Resources[hierarchy.Cpu] = resource.NewCpu(cc.Cpu, cc.CpuAcct)
	}

	return cc, nil
}

// Package cgroupfactory resolves (hierarchy, relative path) pairs to
// absolute cgroup directories, creates and removes those directories
// respecting co-mount ownership, and detects which cgroup a thread
// belongs to.
package cgroupfactory

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// Factory maps cgroup hierarchy paths to absolute filesystem paths, atop
// a KernelFs capability and a hierarchy.Registry.
type Factory struct {
	fs       kernelfs.Interface
	registry *hierarchy.Registry
}

// New builds a Factory. Neither argument is owned by the Factory.
func New(fs kernelfs.Interface, registry *hierarchy.Registry) *Factory {
	return &Factory{fs: fs, registry: registry}
}

// CgroupMount describes a request to mount a set of co-located
// hierarchies at a single mount path.
type CgroupMount struct {
	MountPath   string
	Hierarchies []hierarchy.Kind
}

func normalize(hierarchyPath string) string {
	if hierarchyPath == "" {
		return "/"
	}
	return path.Clean("/" + hierarchyPath)
}

// AbsolutePath computes the absolute directory for kind's mount plus
// hierarchyPath, without checking whether it exists.
func (f *Factory) AbsolutePath(kind hierarchy.Kind, hierarchyPath string) (string, *status.Status) {
	mp, err := f.registry.MountPoint(kind)
	if err != nil {
		return "", err
	}
	rel := normalize(hierarchyPath)
	if rel == "/" {
		return mp.AbsolutePath, nil
	}
	return mp.AbsolutePath + rel, nil
}

// Get returns the absolute path for (kind, hierarchyPath) iff it already
// exists on disk.
func (f *Factory) Get(kind hierarchy.Kind, hierarchyPath string) (string, *status.Status) {
	abs, err := f.AbsolutePath(kind, hierarchyPath)
	if err != nil {
		return "", err
	}
	if f.fs.Access(abs, kernelfs.F_OK) != nil {
		return "", status.New(status.NotFound, "cgroup %s does not exist for %s", abs, kind)
	}
	return abs, nil
}

// Create creates the cgroup directory for (kind, hierarchyPath). If kind
// owns its mount, the directory must not already exist. If it does not
// own its mount, Create behaves like Get: the owning hierarchy is
// responsible for creating the shared directory.
func (f *Factory) Create(kind hierarchy.Kind, hierarchyPath string) (string, *status.Status) {
	abs, err := f.AbsolutePath(kind, hierarchyPath)
	if err != nil {
		return "", err
	}

	if !f.registry.OwnsCgroup(kind) {
		if f.fs.Access(abs, kernelfs.F_OK) != nil {
			return "", status.New(status.NotFound, "cgroup %s does not exist for %s", abs, kind)
		}
		return abs, nil
	}

	if f.fs.Access(abs, kernelfs.F_OK) == nil {
		return "", status.New(status.AlreadyExists, "cgroup %s already exists", abs)
	}
	if werr := f.fs.Mkdir(abs); werr != nil {
		return "", status.Wrap(status.FailedPrecondition, werr, "create cgroup %s", abs)
	}
	return abs, nil
}

// OwnsCgroup delegates to the registry.
func (f *Factory) OwnsCgroup(kind hierarchy.Kind) bool {
	return f.registry.OwnsCgroup(kind)
}

// GetHierarchyName returns the canonical subsystem name for kind.
func (f *Factory) GetHierarchyName(kind hierarchy.Kind) string {
	return kind.CanonicalName()
}

// Mount ensures the requested hierarchies are mounted at m.MountPath,
// creating the mount if none of them are mounted anywhere yet.
func (f *Factory) Mount(m CgroupMount) *status.Status {
	if len(m.Hierarchies) == 0 {
		return status.New(status.InvalidArgument, "no hierarchies requested")
	}

	mountedCount := 0
	for _, k := range m.Hierarchies {
		if f.registry.Mounted(k) {
			mountedCount++
		}
	}

	if mountedCount == 0 {
		if werr := f.fs.MkdirRecursive(m.MountPath); werr != nil {
			return status.Wrap(status.FailedPrecondition, werr, "mkdir -p %s", m.MountPath)
		}
		names := make([]string, 0, len(m.Hierarchies))
		for _, k := range m.Hierarchies {
			names = append(names, k.CanonicalName())
		}
		data := strings.Join(names, ",")
		if werr := f.fs.Mount("cgroup", m.MountPath, "cgroup", data); werr != nil {
			return status.Wrap(status.FailedPrecondition, werr, "mount cgroup %s at %s", data, m.MountPath)
		}
		f.registry.RecordMount(m.MountPath, m.Hierarchies)
		return nil
	}

	if mountedCount == len(m.Hierarchies) {
		for _, k := range m.Hierarchies {
			mp, err := f.registry.MountPoint(k)
			if err != nil || mp.AbsolutePath != m.MountPath {
				return status.New(status.InvalidArgument,
					"hierarchy %s is already mounted elsewhere", k)
			}
		}
		f.registry.RecordMount(m.MountPath, m.Hierarchies)
		return nil
	}

	return status.New(status.InvalidArgument,
		"requested hierarchies are partially mounted elsewhere or mount path is used by a disjoint set")
}

// DetectCgroupPath reads /proc/<tid>/cgroup (or /proc/self/cgroup when
// tid == 0) and returns the hierarchy path of the first line whose
// subsystem list contains kind's canonical name.
func (f *Factory) DetectCgroupPath(tid int, kind hierarchy.Kind) (string, *status.Status) {
	procPath := "/proc/self/cgroup"
	if tid != 0 {
		procPath = fmt.Sprintf("/proc/%d/cgroup", tid)
	}

	lines, err := f.fs.ReadLines(procPath)
	if err != nil {
		return "", err
	}
	defer lines.Close()

	name := kind.CanonicalName()
	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		if hPath, ok := matchCgroupLine(line, name); ok {
			return hPath, nil
		}
	}
	if lines.Err() != nil {
		return "", lines.Err()
	}
	return "", status.New(status.NotFound, "no cgroup line for %s in %s", kind, procPath)
}

// matchCgroupLine parses a "hierarchy_id:subsystems:path" line from a
// /proc/<tid>/cgroup file and reports the path iff subsystems contains
// name.
func matchCgroupLine(line, name string) (string, bool) {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 {
		return "", false
	}
	// hierarchy_id must be numeric for the line to be well-formed.
	if _, err := strconv.Atoi(parts[0]); err != nil {
		return "", false
	}
	for _, s := range strings.Split(parts[1], ",") {
		if s == name {
			return parts[2], true
		}
	}
	return "", false
}

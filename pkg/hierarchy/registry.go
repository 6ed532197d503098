package hierarchy

import (
	"strconv"
	"strings"

	"github.com/containerd/cgroups"

	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// MountPoint records where a hierarchy is mounted and whether this
// hierarchy owns the directory lifecycle of cgroups created under it.
type MountPoint struct {
	AbsolutePath string
	Owns         bool
}

// Registry is the discovered mapping from Kind to MountPoint, plus the set
// of hierarchies the running kernel has compiled in and enabled.
type Registry struct {
	fs        kernelfs.Interface
	mounts    map[Kind]MountPoint
	supported map[Kind]bool
	mode      cgroups.CGMode
}

// NewRegistry parses /proc/mounts and /proc/cgroups to discover the
// current mount table. Construction fails only when reading one of those
// files fails for a reason other than NotFound: a machine with no cgroup
// support at all simply yields an empty registry, and individual lookups
// report NotFound.
//
// It also records cgroups.Mode(), the same detection k3s itself runs
// before trusting its cgroup v1 code path (pkg/cgroups.Validate). This
// module only drives the v1 (Legacy/Hybrid) controller surface; on a
// Unified-only host the mount table below will simply come up empty, and
// Mode lets callers tell that apart from a host that merely has nothing
// mounted yet.
func NewRegistry(fs kernelfs.Interface) (*Registry, *status.Status) {
	r := &Registry{
		fs:        fs,
		mounts:    make(map[Kind]MountPoint),
		supported: make(map[Kind]bool),
		mode:      cgroups.Mode(),
	}
	if err := r.loadSupported(); err != nil {
		return nil, err
	}
	if err := r.loadMounts(); err != nil {
		return nil, err
	}
	return r, nil
}

// Mode reports which cgroup API containerd/cgroups detected on this host
// (Legacy, Hybrid, Unified, or Unavailable).
func (r *Registry) Mode() cgroups.CGMode {
	return r.mode
}

func (r *Registry) loadSupported() *status.Status {
	lines, err := r.fs.ReadLines("/proc/cgroups")
	if err != nil {
		if status.Is(err, status.NotFound) {
			return nil
		}
		return err
	}
	defer lines.Close()

	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		kind, ok := ParseName(fields[0])
		if !ok {
			continue
		}
		enabled, convErr := strconv.Atoi(fields[3])
		if convErr != nil {
			continue
		}
		if enabled != 0 {
			r.supported[kind] = true
		}
	}
	return lines.Err()
}

func (r *Registry) loadMounts() *status.Status {
	lines, err := r.fs.ReadLines("/proc/mounts")
	if err != nil {
		if status.Is(err, status.NotFound) {
			return nil
		}
		return err
	}
	defer lines.Close()

	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		mountPath, kinds, ok := parseCgroupMountLine(line)
		if !ok {
			continue
		}
		r.recordMount(mountPath, kinds)
	}
	return lines.Err()
}

// parseCgroupMountLine extracts the mount point and co-mounted hierarchy
// kinds from a single /proc/mounts line, if it describes a cgroup (v1)
// mount. The options field mixes generic mount flags (rw, nosuid, ...)
// with the subsystem names; only tokens recognized as canonical hierarchy
// names are kept.
func parseCgroupMountLine(line string) (string, []Kind, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 || fields[2] != "cgroup" {
		return "", nil, false
	}
	mountPath := fields[1]
	var kinds []Kind
	for _, opt := range strings.Split(fields[3], ",") {
		if k, ok := ParseName(opt); ok {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return "", nil, false
	}
	return mountPath, kinds, true
}

// recordMount assigns ownership among the kinds co-mounted at mountPath
// using OwnershipPriority: the first kind (by priority) present in this
// line's subsystem set owns the directory; the rest point at the same
// path with Owns = false.
func (r *Registry) recordMount(mountPath string, kinds []Kind) {
	present := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		present[k] = true
	}

	owner := kinds[0]
	for _, candidate := range OwnershipPriority {
		if present[candidate] {
			owner = candidate
			break
		}
	}

	for _, k := range kinds {
		r.mounts[k] = MountPoint{AbsolutePath: mountPath, Owns: k == owner}
	}
}

// MountPoint returns where kind is mounted. NotFound if it is not mounted.
func (r *Registry) MountPoint(kind Kind) (MountPoint, *status.Status) {
	mp, ok := r.mounts[kind]
	if !ok {
		if r.mode == cgroups.Unified {
			return MountPoint{}, status.New(status.NotFound,
				"hierarchy %s is not mounted (host is running unified cgroup v2, which this module does not drive)", kind)
		}
		return MountPoint{}, status.New(status.NotFound, "hierarchy %s is not mounted", kind)
	}
	return mp, nil
}

// Mounted reports whether kind currently has a mount point.
func (r *Registry) Mounted(kind Kind) bool {
	_, ok := r.mounts[kind]
	return ok
}

// OwnsCgroup reports whether kind is the owning hierarchy of its mount
// point, i.e. whether it may create/remove cgroup directories there. It
// is a pure function of kind given the current mount table, per spec.md
// section 3's MountPoint invariant.
func (r *Registry) OwnsCgroup(kind Kind) bool {
	mp, ok := r.mounts[kind]
	return ok && mp.Owns
}

// Supported reports whether the running kernel has kind compiled in and
// enabled, independent of whether it is currently mounted.
func (r *Registry) Supported(kind Kind) bool {
	return r.supported[kind]
}

// RecordMount updates the registry after a successful mount of the given
// kinds at mountPath. Used by cgroupfactory.Mount.
func (r *Registry) RecordMount(mountPath string, kinds []Kind) {
	r.recordMount(mountPath, kinds)
}

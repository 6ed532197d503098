// Package controller implements the typed, per-hierarchy wrappers over
// the kernel-file interface of a cgroup: one concrete type per
// hierarchy.Kind, all sharing the Base contract (enter, delegate,
// destroy, list tasks/processes/subcontainers, register notifications).
package controller

import (
	"path"
	"strconv"
	"strings"

	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// EventCallback is re-exported from notify so callers of controllers
// never need to import notify directly just to register a handler.
type EventCallback = notify.Callback

// Handle is re-exported from notify for the same reason.
type Handle = notify.Handle

// Base is embedded by every concrete controller. It is not meant to be
// used on its own — concrete controllers (Cpu, Memory, ...) add the
// resource-specific operations spec.md section 4.E describes.
type Base struct {
	kind          hierarchy.Kind
	hierarchyPath string
	absolutePath  string
	ownsCgroup    bool
	fs            kernelfs.Interface
	listener      notify.Interface
}

// NewBase constructs the shared controller state. Concrete controller
// constructors call this and embed the result.
func NewBase(kind hierarchy.Kind, hierarchyPath, absolutePath string, ownsCgroup bool, fs kernelfs.Interface, listener notify.Interface) Base {
	return Base{
		kind:          kind,
		hierarchyPath: hierarchyPath,
		absolutePath:  absolutePath,
		ownsCgroup:    ownsCgroup,
		fs:            fs,
		listener:      listener,
	}
}

func (b *Base) Kind() hierarchy.Kind     { return b.kind }
func (b *Base) HierarchyPath() string    { return b.hierarchyPath }
func (b *Base) AbsolutePath() string     { return b.absolutePath }
func (b *Base) OwnsCgroup() bool         { return b.ownsCgroup }

func (b *Base) filePath(cgroupFile string) string {
	return path.Join(b.absolutePath, cgroupFile)
}

// SetParamString writes value verbatim to cgroupFile.
func (b *Base) SetParamString(cgroupFile, value string) *status.Status {
	return b.fs.SafeWrite(b.filePath(cgroupFile), value)
}

// SetParamInt writes value as a base-10 integer to cgroupFile.
func (b *Base) SetParamInt(cgroupFile string, value int64) *status.Status {
	return b.SetParamString(cgroupFile, strconv.FormatInt(value, 10))
}

// SetParamBool writes "1" or "0" to cgroupFile.
func (b *Base) SetParamBool(cgroupFile string, value bool) *status.Status {
	if value {
		return b.SetParamString(cgroupFile, "1")
	}
	return b.SetParamString(cgroupFile, "0")
}

// GetParamString reads and trims the contents of cgroupFile.
func (b *Base) GetParamString(cgroupFile string) (string, *status.Status) {
	v, err := b.fs.ReadToString(b.filePath(cgroupFile))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(v, "\n"), nil
}

// GetParamInt reads cgroupFile and parses it as a base-10 integer.
func (b *Base) GetParamInt(cgroupFile string) (int64, *status.Status) {
	v, err := b.GetParamString(cgroupFile)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if convErr != nil {
		return 0, status.Wrap(status.Internal, convErr, "parse int from %s", cgroupFile)
	}
	return n, nil
}

// GetParamBool reads cgroupFile and interprets "0"/"1".
func (b *Base) GetParamBool(cgroupFile string) (bool, *status.Status) {
	n, err := b.GetParamInt(cgroupFile)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// GetParamLines returns a restartable line iterator over cgroupFile.
func (b *Base) GetParamLines(cgroupFile string) (*kernelfs.LineIterator, *status.Status) {
	return b.fs.ReadLines(b.filePath(cgroupFile))
}

// Enter adds tid to this cgroup by writing it to the tasks file.
func (b *Base) Enter(tid int) *status.Status {
	return b.SetParamInt(fileTasks, int64(tid))
}

// Delegate grants uid/gid the ability to enter this cgroup and create
// children, by chowning the cgroup directory and the files a delegatee
// needs write access to.
func (b *Base) Delegate(uid, gid int) *status.Status {
	if err := b.fs.Chown(b.absolutePath, uid, gid); err != nil {
		return err
	}
	for _, f := range []string{fileTasks, fileCgroupProcs} {
		// Not every hierarchy exposes cgroup.procs; tolerate its absence.
		if werr := b.fs.Chown(b.filePath(f), uid, gid); werr != nil && !status.Is(werr, status.NotFound) {
			return werr
		}
	}
	return nil
}

// GetThreads returns the TIDs currently in this cgroup's tasks file.
func (b *Base) GetThreads() ([]int, *status.Status) {
	return b.getPids(fileTasks)
}

// GetProcesses returns the PIDs currently in this cgroup's cgroup.procs
// file.
func (b *Base) GetProcesses() ([]int, *status.Status) {
	return b.getPids(fileCgroupProcs)
}

func (b *Base) getPids(cgroupFile string) ([]int, *status.Status) {
	lines, err := b.GetParamLines(cgroupFile)
	if err != nil {
		return nil, err
	}
	defer lines.Close()

	var pids []int
	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, convErr := strconv.Atoi(line)
		if convErr != nil {
			return nil, status.Wrap(status.FailedPrecondition, convErr, "parse pid from %s", cgroupFile)
		}
		pids = append(pids, pid)
	}
	if lines.Err() != nil {
		return nil, lines.Err()
	}
	return pids, nil
}

// GetSubcontainers returns the names of this cgroup's immediate
// subdirectories (not control files), relative to this container.
func (b *Base) GetSubcontainers() ([]string, *status.Status) {
	names, err := b.fs.ReadDir(b.absolutePath)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, n := range names {
		if b.fs.IsDir(path.Join(b.absolutePath, n)) {
			dirs = append(dirs, n)
		}
	}
	return dirs, nil
}

// SetChildrenLimit sets the maximum number of children this cgroup may
// have.
func (b *Base) SetChildrenLimit(limit int64) *status.Status {
	return b.SetParamInt(fileChildrenLimit, limit)
}

// GetChildrenLimit reads the maximum number of children this cgroup may
// have.
func (b *Base) GetChildrenLimit() (int64, *status.Status) {
	return b.GetParamInt(fileChildrenLimit)
}

// EnableCloneChildren turns on cgroup.clone_children.
func (b *Base) EnableCloneChildren() *status.Status {
	return b.SetParamBool(fileCloneChildren, true)
}

// DisableCloneChildren turns off cgroup.clone_children.
func (b *Base) DisableCloneChildren() *status.Status {
	return b.SetParamBool(fileCloneChildren, false)
}

// RegisterNotification registers callback against cgroupFile using the
// shared process-wide event listener, with the per-event arguments given.
func (b *Base) RegisterNotification(cgroupFile, arguments string, callback EventCallback) (Handle, *status.Status) {
	return b.listener.Register(b.filePath(fileEventControl), b.filePath(cgroupFile), arguments, callback)
}

// isCgroupControlFile reports whether name is a pseudo-file the kernel
// maintains for a cgroup directory (as opposed to a stray regular file a
// caller placed there). Destroy refuses to remove a directory containing
// the latter.
func isCgroupControlFile(name string) bool {
	switch name {
	case fileTasks, fileCgroupProcs, fileCloneChildren, fileEventControl,
		fileChildrenCount, fileChildrenLimit, "notify_on_release":
		return true
	}
	// Every subsystem control file is "<subsystem>.<name>".
	return strings.Contains(name, ".")
}

// Destroy recursively removes this cgroup's subdirectories (post-order)
// and then the cgroup directory itself, iff this controller owns the
// cgroup. A stray regular file the controller did not create fails the
// operation with FailedPrecondition rather than being silently removed.
func (b *Base) Destroy() *status.Status {
	if !b.ownsCgroup {
		return nil
	}
	return destroyRecursive(b.fs, b.absolutePath)
}

func destroyRecursive(fs kernelfs.Interface, dir string) *status.Status {
	names, err := fs.ReadDir(dir)
	if err != nil {
		if status.Is(err, status.NotFound) {
			return nil
		}
		return err
	}

	for _, n := range names {
		child := path.Join(dir, n)
		if fs.IsDir(child) {
			if derr := destroyRecursive(fs, child); derr != nil {
				return derr
			}
			continue
		}
		if !isCgroupControlFile(n) {
			return status.New(status.FailedPrecondition,
				"%s is not empty: unexpected file %s", dir, n)
		}
	}

	if err := fs.Rmdir(dir); err != nil {
		return status.Wrap(status.FailedPrecondition, err, "rmdir %s", dir)
	}
	return nil
}

// Package kernelfs is the narrow capability every other package in this
// module uses to touch the outside world: reading and writing cgroup
// control files, listing and creating cgroup directories, and the
// mount/eventfd/epoll primitives the notification path needs.
//
// Concentrating I/O here means every cgroup operation funnels through one
// seam: tests substitute Fake for Interface and never touch a real
// filesystem, and the set of syscalls this module performs is documented
// in one place.
package kernelfs

import (
	"github.com/google/lmctfy-sub002/pkg/status"
)

// AccessMode mirrors the access(2) mode bits relevant to cgroup files.
type AccessMode int

const (
	F_OK AccessMode = 0
	R_OK AccessMode = 1 << 2
	W_OK AccessMode = 1 << 1
	X_OK AccessMode = 1 << 0
)

// Interface is the capability this module threads through constructors.
// It is never a package-level singleton (see Design Notes on global
// state) — callers obtain one from kernelfs.NewLinux or kernelfs.NewFake
// and pass it explicitly.
type Interface interface {
	// ReadToString reads the entire contents of path. Returns NotFound if
	// path does not exist.
	ReadToString(path string) (string, *status.Status)

	// ReadLines returns a lazy, restartable iterator over the lines of
	// path. Restarting (calling ReadLines again) re-opens the file, since
	// cgroup stat files mutate underneath readers.
	ReadLines(path string) (*LineIterator, *status.Status)

	// SafeWrite opens path for writing and writes contents in a single
	// write(2) call, which the kernel treats atomically for cgroup
	// control files.
	SafeWrite(path, contents string) *status.Status

	// SafeWriteWithRetry retries SafeWrite up to retries times on
	// transient EAGAIN/EINTR. Not used for files where a repeated write
	// would violate semantics (e.g. one-shot event registrations).
	SafeWriteWithRetry(path, contents string, retries int) *status.Status

	// Exists reports whether path is present, ignoring any error.
	Exists(path string) bool

	// Access checks path against the given access mode bits.
	Access(path string, mode AccessMode) *status.Status

	// Mkdir creates path. AlreadyExists if it is already present.
	Mkdir(path string) *status.Status

	// MkdirRecursive creates path and any missing parents.
	MkdirRecursive(path string) *status.Status

	// Rmdir removes the (must be empty) directory at path.
	Rmdir(path string) *status.Status

	// ReadDir lists the immediate entries of path, names only.
	ReadDir(path string) ([]string, *status.Status)

	// IsDir reports whether path is a directory. Used by controllers to
	// tell cgroup subcontainers apart from control files when walking a
	// directory for recursive destroy or GetSubcontainers.
	IsDir(path string) bool

	// Chown changes ownership of path.
	Chown(path string, uid, gid int) *status.Status

	// Mount mounts a filesystem of the given type at target, using data
	// as the mount options / hierarchy list.
	Mount(source, target, fstype, data string) *status.Status

	// Unmount unmounts target.
	Unmount(target string) *status.Status

	// Open opens path read-only and returns its file descriptor.
	Open(path string) (int, *status.Status)

	// Close closes a file descriptor obtained from Open, EventFd or
	// EpollCreate.
	Close(fd int) *status.Status

	// EventFd creates a nonblocking eventfd(2) descriptor.
	EventFd() (int, *status.Status)

	// EpollCreate creates an epoll(7) set.
	EpollCreate() (int, *status.Status)

	// EpollCtlAdd registers fd with epfd, tagging the registration with
	// cookie so EpollWait can report back which registration fired.
	EpollCtlAdd(epfd, fd int, cookie uint64) *status.Status

	// EpollCtlDel removes fd's registration from epfd.
	EpollCtlDel(epfd, fd int) *status.Status

	// EpollWait blocks up to timeoutMs milliseconds and returns the
	// cookies of any descriptors that became ready.
	EpollWait(epfd int, timeoutMs int) ([]uint64, *status.Status)

	// ReadFd drains up to len(buf) bytes from fd, used to consume an
	// eventfd counter.
	ReadFd(fd int, buf []byte) (int, *status.Status)
}

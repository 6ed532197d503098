package kernelfs

import (
	"errors"
	"os"
	"sort"
	"time"

	"golang.org/x/sys/unix"

	"github.com/google/lmctfy-sub002/pkg/status"
)

// Linux is the production Interface implementation, backed by the os
// package and golang.org/x/sys/unix for the syscalls os does not expose
// (eventfd, epoll, mount).
type Linux struct{}

// NewLinux returns the real, syscall-backed KernelFs capability.
func NewLinux() *Linux {
	return &Linux{}
}

func mapOpenErr(path string, err error) *status.Status {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return status.Wrap(status.NotFound, err, "%s", path)
	}
	return status.Wrap(status.FailedPrecondition, err, "%s", path)
}

func (l *Linux) ReadToString(path string) (string, *status.Status) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", mapOpenErr(path, err)
	}
	return string(b), nil
}

func (l *Linux) ReadLines(path string) (*LineIterator, *status.Status) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mapOpenErr(path, err)
	}
	return newLineIterator(f, f), nil
}

func (l *Linux) SafeWrite(path, contents string) *status.Status {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return mapOpenErr(path, err)
	}
	defer f.Close()

	if _, err := f.Write([]byte(contents)); err != nil {
		return status.Wrap(status.FailedPrecondition, err, "write %s", path)
	}
	return nil
}

func (l *Linux) SafeWriteWithRetry(path, contents string, retries int) *status.Status {
	var last *status.Status
	for i := 0; i <= retries; i++ {
		last = l.SafeWrite(path, contents)
		if last == nil {
			return nil
		}
		if !errors.Is(last, unix.EAGAIN) && !errors.Is(last, unix.EINTR) {
			return last
		}
		time.Sleep(time.Millisecond * time.Duration(5*(i+1)))
	}
	return last
}

func (l *Linux) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (l *Linux) Access(path string, mode AccessMode) *status.Status {
	if err := unix.Access(path, uint32(mode)); err != nil {
		return mapOpenErr(path, err)
	}
	return nil
}

func (l *Linux) Mkdir(path string) *status.Status {
	if err := os.Mkdir(path, 0755); err != nil {
		if os.IsExist(err) {
			return status.Wrap(status.AlreadyExists, err, "mkdir %s", path)
		}
		return status.Wrap(status.FailedPrecondition, err, "mkdir %s", path)
	}
	return nil
}

func (l *Linux) MkdirRecursive(path string) *status.Status {
	if err := os.MkdirAll(path, 0755); err != nil {
		return status.Wrap(status.FailedPrecondition, err, "mkdir -p %s", path)
	}
	return nil
}

func (l *Linux) Rmdir(path string) *status.Status {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return status.Wrap(status.NotFound, err, "rmdir %s", path)
		}
		return status.Wrap(status.FailedPrecondition, err, "rmdir %s", path)
	}
	return nil
}

func (l *Linux) ReadDir(path string) ([]string, *status.Status) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, mapOpenErr(path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (l *Linux) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (l *Linux) Chown(path string, uid, gid int) *status.Status {
	if err := os.Chown(path, uid, gid); err != nil {
		return status.Wrap(status.FailedPrecondition, err, "chown %s", path)
	}
	return nil
}

func (l *Linux) Mount(source, target, fstype, data string) *status.Status {
	if err := unix.Mount(source, target, fstype, 0, data); err != nil {
		return status.Wrap(status.FailedPrecondition, err, "mount %s on %s", fstype, target)
	}
	return nil
}

func (l *Linux) Unmount(target string) *status.Status {
	if err := unix.Unmount(target, 0); err != nil {
		return status.Wrap(status.FailedPrecondition, err, "umount %s", target)
	}
	return nil
}

func (l *Linux) Open(path string) (int, *status.Status) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, mapOpenErr(path, err)
	}
	return fd, nil
}

func (l *Linux) Close(fd int) *status.Status {
	if err := unix.Close(fd); err != nil {
		return status.Wrap(status.Internal, err, "close fd %d", fd)
	}
	return nil
}

func (l *Linux) EventFd() (int, *status.Status) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, status.Wrap(status.Internal, err, "eventfd")
	}
	return fd, nil
}

func (l *Linux) EpollCreate() (int, *status.Status) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return -1, status.Wrap(status.Internal, err, "epoll_create1")
	}
	return fd, nil
}

func (l *Linux) EpollCtlAdd(epfd, fd int, cookie uint64) *status.Status {
	event := unix.EpollEvent{Events: unix.EPOLLIN}
	event.SetFd(int32(fd))
	// Stash the cookie in the Pad field, which EpollWait reads back. Pad
	// has only 32 bits, so only the low 32 bits of cookie survive.
	event.Pad = int32(cookie)
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return status.Wrap(status.Internal, err, "epoll_ctl add fd %d", fd)
	}
	return nil
}

func (l *Linux) EpollCtlDel(epfd, fd int) *status.Status {
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return status.Wrap(status.Internal, err, "epoll_ctl del fd %d", fd)
	}
	return nil
}

func (l *Linux) EpollWait(epfd int, timeoutMs int) ([]uint64, *status.Status) {
	events := make([]unix.EpollEvent, 16)
	n, err := unix.EpollWait(epfd, events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, status.Wrap(status.Internal, err, "epoll_wait")
	}
	cookies := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		cookies = append(cookies, uint64(uint32(events[i].Pad)))
	}
	return cookies, nil
}

func (l *Linux) ReadFd(fd int, buf []byte) (int, *status.Status) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, status.Wrap(status.Internal, err, "read fd %d", fd)
	}
	return n, nil
}

package kernelfs

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/lmctfy-sub002/pkg/status"
)

// Fake is an in-memory KernelFs used by every test in this module instead
// of touching a real filesystem. It is the "principal seam" referenced in
// Design Notes: tests build one, seed it with file contents, and assert on
// the writes the code under test performs.
type Fake struct {
	mu sync.Mutex

	files map[string]string
	dirs  map[string]bool

	// accessErr lets a test force Access/Exists to fail for a path even
	// though it exists in dirs/files, simulating permission or eventual
	// removal races.
	accessErr map[string]*status.Status

	nextFd    int
	openFds   map[int]string
	eventFds  map[int]*fakeEventFd
	epollSets map[int]map[int]uint64 // epfd -> (fd -> cookie)
}

type fakeEventFd struct {
	mu    sync.Mutex
	count uint64
}

// NewFake returns an empty Fake with just the root directory present.
func NewFake() *Fake {
	return &Fake{
		files:     make(map[string]string),
		dirs:      map[string]bool{"/": true},
		accessErr: make(map[string]*status.Status),
		openFds:   make(map[int]string),
		eventFds:  make(map[int]*fakeEventFd),
		epollSets: make(map[int]map[int]uint64),
	}
}

// SetFile seeds path with contents, creating parent directories as needed.
func (f *Fake) SetFile(path, contents string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = contents
	f.markDirsLocked(parentDir(path))
}

// SetDir marks path (and its parents) as an existing directory.
func (f *Fake) SetDir(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markDirsLocked(path)
}

// RemoveFile deletes a previously-seeded file, simulating a cgroup file
// disappearing (e.g. the cgroup was destroyed underneath a notification).
func (f *Fake) RemoveFile(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
}

// RemoveDir deletes a previously-seeded directory.
func (f *Fake) RemoveDir(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.dirs, path)
}

// SetAccessErr forces the next Access/Exists check on path to fail.
func (f *Fake) SetAccessErr(path string, err *status.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessErr[path] = err
}

// FileContents returns the currently recorded contents of path, for
// assertions. ok is false if nothing was ever written.
func (f *Fake) FileContents(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.files[path]
	return v, ok
}

func (f *Fake) markDirsLocked(path string) {
	for p := path; p != "" && p != "."; p = parentDir(p) {
		f.dirs[p] = true
		if p == "/" {
			break
		}
	}
}

func parentDir(path string) string {
	idx := strings.LastIndex(strings.TrimRight(path, "/"), "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

func (f *Fake) ReadToString(path string) (string, *status.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.files[path]
	if !ok {
		return "", status.New(status.NotFound, "%s", path)
	}
	return v, nil
}

func (f *Fake) ReadLines(path string) (*LineIterator, *status.Status) {
	contents, err := f.ReadToString(path)
	if err != nil {
		return nil, err
	}
	return newLineIteratorFromString(contents), nil
}

func (f *Fake) SafeWrite(path, contents string) *status.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[path]; !ok {
		return status.New(status.NotFound, "%s", path)
	}
	f.files[path] = contents
	return nil
}

func (f *Fake) SafeWriteWithRetry(path, contents string, retries int) *status.Status {
	return f.SafeWrite(path, contents)
}

func (f *Fake) Exists(path string) bool {
	return f.Access(path, F_OK) == nil
}

func (f *Fake) Access(path string, mode AccessMode) *status.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.accessErr[path]; ok {
		delete(f.accessErr, path)
		return err
	}
	if f.dirs[path] {
		return nil
	}
	if _, ok := f.files[path]; ok {
		return nil
	}
	return status.New(status.NotFound, "%s", path)
}

func (f *Fake) Mkdir(path string) *status.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirs[path] {
		return status.New(status.AlreadyExists, "%s", path)
	}
	if !f.dirs[parentDir(path)] {
		return status.New(status.FailedPrecondition, "parent of %s does not exist", path)
	}
	f.dirs[path] = true
	// Like the real cgroupfs, a new cgroup directory comes with an empty
	// tasks file.
	f.files[path+"/tasks"] = ""
	return nil
}

func (f *Fake) MkdirRecursive(path string) *status.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markDirsLocked(path)
	return nil
}

// Rmdir removes path. Like the real cgroupfs, pseudo control files left
// directly under path do not block removal — only a genuine
// subdirectory does. Any files nested under path are discarded along
// with the directory, mirroring the kernel making them disappear with
// their cgroup.
func (f *Fake) Rmdir(path string) *status.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirs[path] {
		return status.New(status.NotFound, "%s", path)
	}
	for p := range f.dirs {
		if p != path && parentDir(p) == path {
			return status.New(status.FailedPrecondition, "%s is not empty", path)
		}
	}
	for p := range f.files {
		if parentDir(p) == path {
			delete(f.files, p)
		}
	}
	delete(f.dirs, path)
	return nil
}

func (f *Fake) ReadDir(path string) ([]string, *status.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirs[path] {
		return nil, status.New(status.NotFound, "%s", path)
	}
	seen := make(map[string]bool)
	for p := range f.dirs {
		if p != path && parentDir(p) == path {
			seen[strings.TrimPrefix(p, strings.TrimSuffix(path, "/")+"/")] = true
		}
	}
	for p := range f.files {
		if parentDir(p) == path {
			seen[strings.TrimPrefix(p, strings.TrimSuffix(path, "/")+"/")] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (f *Fake) IsDir(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[path]
}

func (f *Fake) Chown(path string, uid, gid int) *status.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirs[path] {
		if _, ok := f.files[path]; !ok {
			return status.New(status.NotFound, "%s", path)
		}
	}
	return nil
}

func (f *Fake) Mount(source, target, fstype, data string) *status.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markDirsLocked(target)
	return nil
}

func (f *Fake) Unmount(target string) *status.Status {
	return f.Rmdir(target)
}

func (f *Fake) Open(path string) (int, *status.Status) {
	if err := f.Access(path, R_OK); err != nil {
		return -1, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextFd++
	fd := f.nextFd
	f.openFds[fd] = path
	return fd, nil
}

func (f *Fake) Close(fd int) *status.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.openFds, fd)
	delete(f.eventFds, fd)
	delete(f.epollSets, fd)
	return nil
}

func (f *Fake) EventFd() (int, *status.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextFd++
	fd := f.nextFd
	f.eventFds[fd] = &fakeEventFd{}
	return fd, nil
}

func (f *Fake) EpollCreate() (int, *status.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextFd++
	fd := f.nextFd
	f.epollSets[fd] = make(map[int]uint64)
	return fd, nil
}

func (f *Fake) EpollCtlAdd(epfd, fd int, cookie uint64) *status.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.epollSets[epfd]
	if !ok {
		return status.New(status.Internal, "unknown epoll set %d", epfd)
	}
	set[fd] = cookie
	return nil
}

func (f *Fake) EpollCtlDel(epfd, fd int) *status.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.epollSets[epfd]
	if !ok {
		return status.New(status.Internal, "unknown epoll set %d", epfd)
	}
	delete(set, fd)
	return nil
}

func (f *Fake) EpollWait(epfd int, timeoutMs int) ([]uint64, *status.Status) {
	f.mu.Lock()
	set, ok := f.epollSets[epfd]
	if !ok {
		f.mu.Unlock()
		return nil, status.New(status.Internal, "unknown epoll set %d", epfd)
	}
	type pending struct {
		fd     int
		cookie uint64
	}
	var ready []pending
	for fd, cookie := range set {
		if efd, ok := f.eventFds[fd]; ok {
			efd.mu.Lock()
			fired := efd.count > 0
			efd.mu.Unlock()
			if fired {
				ready = append(ready, pending{fd, cookie})
			}
		}
	}
	f.mu.Unlock()

	cookies := make([]uint64, 0, len(ready))
	for _, p := range ready {
		cookies = append(cookies, p.cookie)
	}
	return cookies, nil
}

func (f *Fake) ReadFd(fd int, buf []byte) (int, *status.Status) {
	f.mu.Lock()
	efd, ok := f.eventFds[fd]
	f.mu.Unlock()
	if !ok {
		return 0, status.New(status.Internal, "fd %d is not an eventfd", fd)
	}
	efd.mu.Lock()
	defer efd.mu.Unlock()
	if efd.count == 0 {
		return 0, nil
	}
	efd.count = 0
	return 8, nil
}

// Fire increments the counter of a fake eventfd, simulating the kernel
// delivering a notification. Tests obtain fd from their own EventFd call,
// or by parsing the eventfd number out of the line a Listener wrote to
// cgroup.event_control.
func (f *Fake) Fire(fd int) {
	f.mu.Lock()
	efd, ok := f.eventFds[fd]
	f.mu.Unlock()
	if !ok {
		return
	}
	efd.mu.Lock()
	efd.count++
	efd.mu.Unlock()
}

// Package notify bridges cgroup.event_control + eventfd + epoll to
// application callbacks. One Listener runs a single epoll loop for the
// whole process; every memory-notification registration shares it.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// Handle is an opaque registration identifier. Unregister(handle)
// atomically clears the registration's active flag so stale epoll fires
// racing with unregistration are dropped rather than delivered twice.
type Handle uint64

// Callback is invoked on the listener's goroutine, serialized one at a
// time, with a nil Status on a normal fire and a Cancelled *status.Status
// exactly once when the registration ends (explicit Unregister or the
// watched cgroup disappearing underneath it).
//
// Callbacks must not block on cgroup operations against the same cgroup:
// doing so would deadlock eventfd drainage. Long work should be handed to
// another goroutine.
type Callback func(*status.Status)

// Interface is implemented by Listener and by Fake, letting resource
// handlers and controllers be tested without a real epoll loop.
type Interface interface {
	Register(controlFile, targetFile, arguments string, cb Callback) (Handle, *status.Status)
	Unregister(h Handle)
}

type registration struct {
	mu        sync.Mutex
	active    bool
	delivered bool // Cancelled has already been sent exactly once.
	eventFd   int
	targetFd  int
	target    string
	callback  Callback
}

// Listener is the production Interface implementation: one epoll set per
// process, serviced by a dedicated goroutine.
type Listener struct {
	fs   kernelfs.Interface
	epfd int

	mu            sync.Mutex
	registrations map[Handle]*registration
	nextHandle    uint64
}

// NewListener creates the epoll set and starts the background goroutine
// that services it. The goroutine exits when ctx is cancelled.
func NewListener(ctx context.Context, fs kernelfs.Interface) (*Listener, *status.Status) {
	epfd, err := fs.EpollCreate()
	if err != nil {
		return nil, status.Wrap(status.Internal, err, "create epoll set")
	}

	l := &Listener{
		fs:            fs,
		epfd:          epfd,
		registrations: make(map[Handle]*registration),
	}
	go l.run(ctx)
	return l, nil
}

// Register opens targetFile, creates an eventfd, writes the registration
// line to controlFile, and adds the eventfd to the shared epoll set.
// Register only returns once the epoll registration is visible to the
// listener goroutine, so a fire cannot race ahead of the caller holding a
// usable handle.
func (l *Listener) Register(controlFile, targetFile, arguments string, cb Callback) (Handle, *status.Status) {
	targetFd, err := l.fs.Open(targetFile)
	if err != nil {
		return 0, err
	}

	eventFd, err := l.fs.EventFd()
	if err != nil {
		l.fs.Close(targetFd)
		return 0, err
	}

	l.mu.Lock()
	l.nextHandle++
	handle := Handle(l.nextHandle)
	reg := &registration{
		active:   true,
		eventFd:  eventFd,
		targetFd: targetFd,
		target:   targetFile,
		callback: cb,
	}
	l.registrations[handle] = reg
	l.mu.Unlock()

	line := fmt.Sprintf("%d %d %s", eventFd, targetFd, arguments)
	if werr := l.fs.SafeWrite(controlFile, line); werr != nil {
		l.mu.Lock()
		delete(l.registrations, handle)
		l.mu.Unlock()
		l.fs.Close(eventFd)
		l.fs.Close(targetFd)
		return 0, werr
	}

	if werr := l.fs.EpollCtlAdd(l.epfd, eventFd, uint64(handle)); werr != nil {
		l.mu.Lock()
		delete(l.registrations, handle)
		l.mu.Unlock()
		l.fs.Close(eventFd)
		l.fs.Close(targetFd)
		return 0, werr
	}

	return handle, nil
}

// Unregister marks handle inactive and tears it down without blocking on
// any in-flight callback; the in-flight call simply observes the inactive
// flag and becomes a no-op for subsequent fires. Exactly one Cancelled
// delivery is sent.
func (l *Listener) Unregister(h Handle) {
	l.mu.Lock()
	reg, ok := l.registrations[h]
	if ok {
		delete(l.registrations, h)
	}
	l.mu.Unlock()
	if !ok {
		return
	}

	l.fs.EpollCtlDel(l.epfd, reg.eventFd)
	l.cancel(reg)
	l.fs.Close(reg.eventFd)
	l.fs.Close(reg.targetFd)
}

func (l *Listener) cancel(reg *registration) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.active = false
	if reg.delivered {
		return
	}
	reg.delivered = true
	reg.callback(status.New(status.Cancelled, "notification unregistered"))
}

// run is the single process-wide epoll loop. It polls with a short
// timeout so it can notice ctx being cancelled promptly.
func (l *Listener) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cookies, err := l.fs.EpollWait(l.epfd, 100)
		if err != nil {
			logrus.Errorf("cgroup notification epoll_wait failed: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		for _, c := range cookies {
			l.handleFire(Handle(c))
		}
	}
}

func (l *Listener) handleFire(h Handle) {
	l.mu.Lock()
	reg, ok := l.registrations[h]
	l.mu.Unlock()
	if !ok {
		return
	}

	buf := make([]byte, 8)
	if _, err := l.fs.ReadFd(reg.eventFd, buf); err != nil {
		logrus.Errorf("failed to drain eventfd for notification: %v", err)
	}

	if l.fs.Access(reg.target, kernelfs.F_OK) != nil {
		// The watched cgroup file disappeared underneath us; treat this
		// exactly like an explicit Unregister.
		l.mu.Lock()
		delete(l.registrations, h)
		l.mu.Unlock()
		l.fs.EpollCtlDel(l.epfd, reg.eventFd)
		l.cancel(reg)
		l.fs.Close(reg.eventFd)
		l.fs.Close(reg.targetFd)
		return
	}

	reg.mu.Lock()
	active := reg.active
	reg.mu.Unlock()
	if active {
		reg.callback(nil)
	}
}

package notify

import (
	"sync"

	"github.com/google/lmctfy-sub002/pkg/status"
)

// Fake is the second testing seam Design Notes calls for: an injectable
// Interface that captures registrations without touching a real epoll
// set, and lets tests replay fires and cancellations deterministically.
type Fake struct {
	mu   sync.Mutex
	regs map[Handle]*fakeReg
	next uint64

	// Captured, in registration order, for assertions on what was
	// registered against which control file.
	Registered []FakeRegistration
}

type fakeReg struct {
	active    bool
	delivered bool
	callback  Callback
}

// FakeRegistration records the arguments passed to a Register call.
type FakeRegistration struct {
	Handle      Handle
	ControlFile string
	TargetFile  string
	Arguments   string
}

// NewFake returns an empty Fake listener.
func NewFake() *Fake {
	return &Fake{regs: make(map[Handle]*fakeReg)}
}

func (f *Fake) Register(controlFile, targetFile, arguments string, cb Callback) (Handle, *status.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	h := Handle(f.next)
	f.regs[h] = &fakeReg{active: true, callback: cb}
	f.Registered = append(f.Registered, FakeRegistration{
		Handle: h, ControlFile: controlFile, TargetFile: targetFile, Arguments: arguments,
	})
	return h, nil
}

func (f *Fake) Unregister(h Handle) {
	f.mu.Lock()
	reg, ok := f.regs[h]
	f.mu.Unlock()
	if !ok {
		return
	}
	f.deliverCancel(reg)
}

func (f *Fake) deliverCancel(reg *fakeReg) {
	f.mu.Lock()
	reg.active = false
	already := reg.delivered
	reg.delivered = true
	f.mu.Unlock()
	if !already {
		reg.callback(status.New(status.Cancelled, "notification unregistered"))
	}
}

// Fire invokes h's callback with OK, as if the kernel fired the
// underlying eventfd. It is a no-op if h is unknown or already cancelled.
func (f *Fake) Fire(h Handle) {
	f.mu.Lock()
	reg, ok := f.regs[h]
	f.mu.Unlock()
	if !ok {
		return
	}
	f.mu.Lock()
	active := reg.active
	f.mu.Unlock()
	if active {
		reg.callback(nil)
	}
}

// RemoveTarget simulates the watched cgroup file being removed: the
// handle is cancelled exactly as the real Listener would on the next
// epoll wake.
func (f *Fake) RemoveTarget(h Handle) {
	f.mu.Lock()
	reg, ok := f.regs[h]
	f.mu.Unlock()
	if !ok {
		return
	}
	f.deliverCancel(reg)
}

// Package resource implements the ResourceHandler layer: one handler per
// resource domain, translating a spec.ContainerSpec into controller
// operations, plus the Composite that sequences Enter/Destroy across a
// container's full set of controllers.
package resource

import (
	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/spec"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// Handler is implemented by every per-domain resource handler. Each
// method reads or writes only the slice of spec.ContainerSpec /
// spec.ContainerStats that belongs to the handler's own domain and
// leaves the rest untouched, so a caller can thread the same struct
// through every handler in turn.
type Handler interface {
	// CreateResource runs resource-specific one-time setup for a freshly
	// created cgroup. NotFound from an optional kernel feature is
	// tolerated rather than propagated.
	CreateResource(s spec.ContainerSpec) *status.Status

	// Update applies s to the kernel. On Replace, absent optional fields
	// are filled with their documented defaults before the merged spec is
	// verified against the handler's domain rules.
	Update(s spec.ContainerSpec, policy spec.UpdatePolicy) *status.Status

	// Stats fills the handler's domain field(s) of out from the kernel.
	// A controller getter returning NotFound simply leaves that field
	// unset; any other error propagates.
	Stats(out *spec.ContainerStats) *status.Status

	// Spec fills the handler's domain field(s) of out from the kernel,
	// the read-side counterpart to Update.
	Spec(out *spec.ContainerSpec) *status.Status

	// RegisterNotification registers a callback for ev if ev addresses
	// this handler's domain, or returns NotFound if it addresses no
	// subtype this handler recognizes.
	RegisterNotification(ev spec.EventSpec, cb controller.EventCallback) (controller.Handle, *status.Status)
}

// enterDestroyer is the subset of the controller.Base contract the
// Composite sequences. Every concrete controller in pkg/controller
// satisfies it by embedding Base.
type enterDestroyer interface {
	Enter(tid int) *status.Status
	Destroy() *status.Status
}

type ownedController struct {
	kind hierarchy.Kind
	ctrl enterDestroyer
}

// Composite sequences Enter and Destroy across an ordered set of
// controllers, implementing the CgroupResourceHandler contract.
type Composite struct {
	owned []ownedController
}

// NewComposite builds a Composite with no controllers. Add registers
// them in the order Enter/Destroy should apply them.
func NewComposite() *Composite {
	return &Composite{}
}

// Add appends a controller to the end of the ordered set.
func (c *Composite) Add(kind hierarchy.Kind, ctrl enterDestroyer) {
	c.owned = append(c.owned, ownedController{kind: kind, ctrl: ctrl})
}

// Enter adds tid to every owned controller's cgroup, in order. A failure
// partway through returns FailedPrecondition noting the TID is already
// tracked by the controllers that succeeded — callers must not assume
// Enter is all-or-nothing.
func (c *Composite) Enter(tid int) *status.Status {
	for i, oc := range c.owned {
		if err := oc.ctrl.Enter(tid); err != nil {
			return status.Wrap(status.FailedPrecondition, err,
				"enter tid %d failed on hierarchy %s after %d prior hierarchies already tracked it", tid, oc.kind, i)
		}
	}
	return nil
}

// Destroy destroys every owned controller's cgroup, in order. On
// failure, the controllers destroyed so far are dropped from the owned
// set before returning the error, so a subsequent Destroy call (after
// the caller fixes whatever blocked it) only retries what remains.
func (c *Composite) Destroy() *status.Status {
	for i, oc := range c.owned {
		if err := oc.ctrl.Destroy(); err != nil {
			c.owned = c.owned[i:]
			return status.Wrap(status.FailedPrecondition, err, "destroy failed on hierarchy %s", oc.kind)
		}
	}
	c.owned = nil
	return nil
}

// downgradeOptional turns a NotFound error into success, used for
// optional kernel features (kstaled, OOM score, kmem charge usage on
// kernels that lack them).
func downgradeOptional(err *status.Status) *status.Status {
	if err != nil && status.Is(err, status.NotFound) {
		return nil
	}
	return err
}

func invalidArgf(format string, args ...interface{}) *status.Status {
	return status.New(status.InvalidArgument, format, args...)
}

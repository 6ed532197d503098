package controller

import (
	"strings"

	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// Freezer wraps the freezer hierarchy.
type Freezer struct {
	Base
}

// NewFreezer constructs a FreezerController bound to absolutePath.
func NewFreezer(hierarchyPath, absolutePath string, ownsCgroup bool, fs kernelfs.Interface, listener notify.Interface) *Freezer {
	return &Freezer{Base: NewBase(hierarchy.Freezer, hierarchyPath, absolutePath, ownsCgroup, fs, listener)}
}

// supportsHierarchicalFreezing reports whether this kernel tracks
// freezer.parent_freezing, which makes freezing a subtree safe.
func (f *Freezer) supportsHierarchicalFreezing() (bool, *status.Status) {
	_, err := f.GetParamString(fileFreezerParentFreezing)
	if err != nil {
		if status.Is(err, status.NotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (f *Freezer) checkCanFreeze() *status.Status {
	supported, err := f.supportsHierarchicalFreezing()
	if err != nil {
		return err
	}
	if supported {
		return nil
	}
	children, err := f.GetSubcontainers()
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return status.New(status.FailedPrecondition,
			"cannot freeze %s: flat freezer with subcontainers", f.AbsolutePath())
	}
	return nil
}

// Freeze writes FROZEN to freezer.state, after confirming this is safe
// on a kernel without hierarchical freezing support.
func (f *Freezer) Freeze() *status.Status {
	if err := f.checkCanFreeze(); err != nil {
		return err
	}
	return f.SetParamString(fileFreezerState, "FROZEN")
}

// Unfreeze writes THAWED to freezer.state, under the same precondition
// as Freeze.
func (f *Freezer) Unfreeze() *status.Status {
	if err := f.checkCanFreeze(); err != nil {
		return err
	}
	return f.SetParamString(fileFreezerState, "THAWED")
}

// State reads and parses freezer.state.
func (f *Freezer) State() (FreezerState, *status.Status) {
	v, err := f.GetParamString(fileFreezerState)
	if err != nil {
		return FreezerUnknown, err
	}
	state := parseFreezerState(strings.TrimSpace(v))
	if state == FreezerUnknown {
		return FreezerUnknown, status.New(status.Internal, "unrecognized freezer.state value %q", v)
	}
	return state, nil
}

package controller

import (
	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// RLimit wraps the out-of-tree rlimit hierarchy this module uses to
// enforce a per-container open-file-descriptor ceiling.
type RLimit struct {
	Base
}

// NewRLimit constructs an RLimitController bound to absolutePath.
func NewRLimit(hierarchyPath, absolutePath string, ownsCgroup bool, fs kernelfs.Interface, listener notify.Interface) *RLimit {
	return &RLimit{Base: NewBase(hierarchy.RLimit, hierarchyPath, absolutePath, ownsCgroup, fs, listener)}
}

// SetFdLimit writes the open-fd ceiling to rlimit.fd_limit.
func (r *RLimit) SetFdLimit(n int64) *status.Status {
	return r.SetParamInt(fileRLimitFdLimit, maxInt64Wire(n))
}

// GetFdLimit reads the current open-fd ceiling.
func (r *RLimit) GetFdLimit() (int64, *status.Status) {
	return r.GetParamInt(fileRLimitFdLimit)
}

// GetFdUsage reads the current open-fd count.
func (r *RLimit) GetFdUsage() (int64, *status.Status) {
	return r.GetParamInt(fileRLimitFdUsage)
}

// GetMaxFdUsage reads the historical peak open-fd count.
func (r *RLimit) GetMaxFdUsage() (int64, *status.Status) {
	return r.GetParamInt(fileRLimitFdMaxUsage)
}

// GetFdFailCount reads the number of times an fd allocation was denied.
func (r *RLimit) GetFdFailCount() (int64, *status.Status) {
	return r.GetParamInt(fileRLimitFdFailCnt)
}

package controller

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/status"
)

// CpuSet wraps the cpuset hierarchy: the CPU and memory-node masks,
// represented as sets of non-negative ints and serialized in the
// kernel's canonical "0-7,14,16-19" range-list form.
type CpuSet struct {
	Base
}

// NewCpuSet constructs a CpuSetController bound to absolutePath.
func NewCpuSet(hierarchyPath, absolutePath string, ownsCgroup bool, fs kernelfs.Interface, listener notify.Interface) *CpuSet {
	return &CpuSet{Base: NewBase(hierarchy.CpuSet, hierarchyPath, absolutePath, ownsCgroup, fs, listener)}
}

// SetCpuMask writes cpus in canonical range-list form to cpuset.cpus.
func (c *CpuSet) SetCpuMask(cpus map[int]bool) *status.Status {
	return c.SetParamString(fileCpuSetCpus, formatMask(cpus))
}

// GetCpuMask reads and parses cpuset.cpus.
func (c *CpuSet) GetCpuMask() (map[int]bool, *status.Status) {
	v, err := c.GetParamString(fileCpuSetCpus)
	if err != nil {
		return nil, err
	}
	return parseMask(v)
}

// SetMemoryNodes writes nodes in canonical range-list form to cpuset.mems.
func (c *CpuSet) SetMemoryNodes(nodes map[int]bool) *status.Status {
	return c.SetParamString(fileCpuSetMems, formatMask(nodes))
}

// GetMemoryNodes reads and parses cpuset.mems.
func (c *CpuSet) GetMemoryNodes() (map[int]bool, *status.Status) {
	v, err := c.GetParamString(fileCpuSetMems)
	if err != nil {
		return nil, err
	}
	return parseMask(v)
}

// formatMask renders a set of non-negative ints as the minimal
// comma-separated range list the kernel writes back, e.g. {0,1,2,3,7,14}
// -> "0-3,7,14".
func formatMask(set map[int]bool) string {
	if len(set) == 0 {
		return ""
	}
	values := make([]int, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Ints(values)

	var ranges []string
	start := values[0]
	prev := values[0]
	flush := func(end int) {
		if start == end {
			ranges = append(ranges, strconv.Itoa(start))
		} else {
			ranges = append(ranges, strconv.Itoa(start)+"-"+strconv.Itoa(end))
		}
	}
	for _, v := range values[1:] {
		if v == prev+1 {
			prev = v
			continue
		}
		flush(prev)
		start, prev = v, v
	}
	flush(prev)
	return strings.Join(ranges, ",")
}

// parseMask is the inverse of formatMask.
func parseMask(s string) (map[int]bool, *status.Status) {
	set := make(map[int]bool)
	s = strings.TrimSpace(s)
	if s == "" {
		return set, nil
	}
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		if dash := strings.IndexByte(part, '-'); dash >= 0 {
			lo, err1 := strconv.Atoi(part[:dash])
			hi, err2 := strconv.Atoi(part[dash+1:])
			if err1 != nil || err2 != nil || hi < lo {
				return nil, status.New(status.FailedPrecondition, "malformed cpuset range %q", part)
			}
			for v := lo; v <= hi; v++ {
				set[v] = true
			}
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, status.New(status.FailedPrecondition, "malformed cpuset entry %q", part)
		}
		set[v] = true
	}
	return set, nil
}

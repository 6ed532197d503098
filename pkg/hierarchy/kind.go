// Package hierarchy enumerates the cgroup v1 hierarchy kinds this module
// manages and discovers which of them are mounted on the running machine.
package hierarchy

// Kind is a closed tagged set of cgroup v1 hierarchies. Rather than the
// source's templated factories, this is a plain enum: pkg/machine
// switches on it to pick which concrete controller to build, and each
// controller in pkg/controller records its own Kind.
type Kind int

const (
	Cpu Kind = iota
	CpuAcct
	CpuSet
	Memory
	BlockIo
	Freezer
	Device
	RLimit
	PerfEvent
	Net
	Job
)

// canonicalNames maps each Kind to the subsystem name used in
// /proc/mounts, /proc/cgroups, and /proc/<tid>/cgroup.
var canonicalNames = map[Kind]string{
	Cpu:       "cpu",
	CpuAcct:   "cpuacct",
	CpuSet:    "cpuset",
	Memory:    "memory",
	BlockIo:   "blkio",
	Freezer:   "freezer",
	Device:    "devices",
	RLimit:    "rlimit",
	PerfEvent: "perf_event",
	Net:       "net_cls",
	Job:       "job",
}

var byName = func() map[string]Kind {
	m := make(map[string]Kind, len(canonicalNames))
	for k, v := range canonicalNames {
		m[v] = k
	}
	return m
}()

// CanonicalName returns the subsystem name used by the kernel for k.
func (k Kind) CanonicalName() string {
	return canonicalNames[k]
}

func (k Kind) String() string {
	if n, ok := canonicalNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseName resolves a canonical subsystem name back to a Kind.
func ParseName(name string) (Kind, bool) {
	k, ok := byName[name]
	return k, ok
}

// OwnershipPriority is the fixed, documented precedence used to decide
// which co-mounted hierarchy owns a shared mount point's directory
// lifecycle. This resolves the Open Question in spec.md section 9: the
// source does not fully document the order, so this implementation fixes
// it to the order spec.md section 4.B itself proposes as an example,
// which keeps Job and the most commonly-enforced resources (Cpu, Memory)
// as owners ahead of accounting-only or rarer hierarchies.
var OwnershipPriority = []Kind{
	Job, Cpu, Memory, BlockIo, Device, Freezer, RLimit, CpuSet, CpuAcct, PerfEvent, Net,
}

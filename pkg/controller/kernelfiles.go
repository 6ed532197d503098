package controller

// Kernel file names this module reads or writes, grouped the way
// kernel_files.h groups them. Keeping them as named constants in one
// place documents exactly which cgroup v1 files this module touches.
const (
	fileTasks              = "tasks"
	fileCgroupProcs         = "cgroup.procs"
	fileChildrenCount      = "cgroup.children_count"
	fileChildrenLimit      = "cgroup.children_limit"
	fileCloneChildren      = "cgroup.clone_children"
	fileEventControl       = "cgroup.event_control"

	fileCpuShares            = "cpu.shares"
	fileCpuLatency           = "cpu.lat"
	fileCpuPlacementStrategy = "cpu.placement_strategy"
	fileCpuCfsPeriodUs       = "cpu.cfs_period_us"
	fileCpuCfsQuotaUs        = "cpu.cfs_quota_us"
	fileCpuStat              = "cpu.stat"

	fileCpuAcctUsage       = "cpuacct.usage"
	fileCpuAcctUsagePerCpu = "cpuacct.usage_percpu"
	fileCpuAcctStat        = "cpuacct.stat"
	fileCpuAcctHistogram   = "cpuacct.histogram"

	fileCpuSetCpus = "cpuset.cpus"
	fileCpuSetMems = "cpuset.mems"

	fileMemoryLimitInBytes              = "memory.limit_in_bytes"
	fileMemorySoftLimitInBytes          = "memory.soft_limit_in_bytes"
	fileMemswLimitInBytes               = "memory.memsw.limit_in_bytes"
	fileMemswUsageInBytes               = "memory.memsw.usage_in_bytes"
	fileMemswMaxUsageInBytes            = "memory.memsw.max_usage_in_bytes"
	fileMemoryUsageInBytes              = "memory.usage_in_bytes"
	fileMemoryMaxUsageInBytes           = "memory.max_usage_in_bytes"
	fileMemoryFailCount                 = "memory.failcnt"
	fileMemoryStalePageAge              = "memory.stale_page_age"
	fileMemoryOomScoreBadness           = "memory.oom_score_badness"
	fileMemoryCompressionSamplingRatio  = "memory.compression_sampling_ratio"
	fileMemoryCompressionSamplingStats  = "memory.compression_sampling_stats"
	fileMemoryDirtyRatio                = "memory.dirty_ratio"
	fileMemoryDirtyBackgroundRatio      = "memory.dirty_background_ratio"
	fileMemoryDirtyLimitInBytes         = "memory.dirty_limit_in_bytes"
	fileMemoryDirtyBackgroundLimitBytes = "memory.dirty_background_limit_in_bytes"
	fileMemoryKMemChargeUsage           = "memory.kmem_charge_usage"
	fileMemoryOomControl                = "memory.oom_control"
	fileMemoryStat                      = "memory.stat"
	fileMemoryNumaStat                  = "memory.numa_stat"
	fileMemoryIdlePageStats             = "memory.idle_page_stats"

	fileBlkioWeight              = "blkio.weight"
	fileBlkioWeightDevice        = "blkio.weight_device"
	fileBlkioThrottleReadBps     = "blkio.throttle.read_bps_device"
	fileBlkioThrottleWriteBps    = "blkio.throttle.write_bps_device"
	fileBlkioThrottleReadIops    = "blkio.throttle.read_iops_device"
	fileBlkioThrottleWriteIops   = "blkio.throttle.write_iops_device"
	fileBlkioThrottleIoServiceBytes = "blkio.throttle.io_service_bytes"

	fileFreezerState          = "freezer.state"
	fileFreezerParentFreezing = "freezer.parent_freezing"

	fileDevicesAllow = "devices.allow"
	fileDevicesDeny  = "devices.deny"
	fileDevicesList  = "devices.list"

	fileRLimitFdLimit    = "rlimit.fd_limit"
	fileRLimitFdUsage    = "rlimit.fd_usage"
	fileRLimitFdMaxUsage = "rlimit.fd_maxusage"
	fileRLimitFdFailCnt  = "rlimit.fd_failcnt"
)

package metapb

// PartitionStat is one partition's leader/term snapshot as carried by a
// storage daemon's heartbeat.
type PartitionStat struct {
	Space  SpaceID
	Part   PartID
	Leader HostAddr
	Term   uint64
}

// NodeSysStats is the host-level resource snapshot a storage daemon
// attaches to its heartbeat, gathered from the local machine rather
// than derived from any partition state.
type NodeSysStats struct {
	CPUCount    uint32
	CPUProcRate float64

	MemoryTotal uint64
	MemoryUsed  uint64
	MemoryFree  uint64

	DiskTotal uint64
	DiskUsed  uint64
	DiskFree  uint64
}

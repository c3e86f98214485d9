package server

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"

	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/util/log"
	"github.com/baudgraph/graphd/util/timeutil"
)

// SysStatsCollector gathers the local host's resource usage for the
// heartbeat. Collection is throttled to minInterval: a heartbeat tick
// that lands inside the window reuses the previous sample instead of
// re-querying the OS.
type SysStatsCollector struct {
	diskPath    string
	minInterval time.Duration

	mu       sync.Mutex
	lastTime time.Time
	last     metapb.NodeSysStats
}

func NewSysStatsCollector(diskPath string) *SysStatsCollector {
	return &SysStatsCollector{
		diskPath:    diskPath,
		minInterval: 10 * time.Second,
		last:        metapb.NodeSysStats{CPUCount: uint32(runtime.NumCPU())},
	}
}

func (c *SysStatsCollector) Collect() metapb.NodeSysStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastTime.IsZero() && timeutil.Since(c.lastTime) < c.minInterval {
		return c.last
	}

	stats := c.last
	stats.CPUCount = uint32(runtime.NumCPU())

	if loads, err := cpu.Percent(0, false); err != nil {
		log.Error("server: gather cpu stats: %v", err)
	} else if len(loads) > 0 {
		var sum float64
		for _, l := range loads {
			sum += l
		}
		stats.CPUProcRate = sum / float64(len(loads))
	}

	if m, err := mem.VirtualMemory(); err != nil {
		log.Error("server: gather memory stats: %v", err)
	} else {
		stats.MemoryTotal = m.Total
		stats.MemoryUsed = m.Used
		stats.MemoryFree = m.Free
	}

	if d, err := disk.Usage(c.diskPath); err != nil {
		log.Error("server: gather disk stats for %s: %v", c.diskPath, err)
	} else {
		stats.DiskTotal = d.Total
		stats.DiskUsed = d.Used
		stats.DiskFree = d.Free
	}

	c.last = stats
	c.lastTime = time.Now()
	return stats
}

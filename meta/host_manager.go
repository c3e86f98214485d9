package meta

import (
	"sync"
	"time"

	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/util/timeutil"
)

// hostRecord is one storage daemon's last reported heartbeat.
type hostRecord struct {
	lastSeen time.Time
	stats    metapb.NodeSysStats
	parts    []metapb.PartitionStat
}

// HostManager tracks storage-host liveness from heartbeat RPCs. It is
// in-memory only: liveness is derived from who has recently reported
// in, not from anything durable, so it is rebuilt from scratch by
// whichever replica becomes leader next.
type HostManager struct {
	deadAfter time.Duration

	mu    sync.RWMutex
	hosts map[string]*hostRecord
}

func NewHostManager(deadAfter time.Duration) *HostManager {
	return &HostManager{deadAfter: deadAfter, hosts: make(map[string]*hostRecord)}
}

// Touch records a heartbeat from addr.
func (m *HostManager) Touch(addr metapb.HostAddr, stats metapb.NodeSysStats, parts []metapb.PartitionStat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hosts[addr.String()] = &hostRecord{lastSeen: time.Now(), stats: stats, parts: parts}
}

// IsLive reports whether addr has heartbeated within deadAfter.
func (m *HostManager) IsLive(addr metapb.HostAddr) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.hosts[addr.String()]
	if !ok {
		return false
	}
	return timeutil.Since(r.lastSeen) <= m.deadAfter
}

// LiveHosts returns every host that has heartbeated within deadAfter.
func (m *HostManager) LiveHosts() []metapb.HostAddr {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var live []metapb.HostAddr
	for key, r := range m.hosts {
		if now.Sub(r.lastSeen) > m.deadAfter {
			continue
		}
		addr, err := metapb.ParseHostAddr(key)
		if err != nil {
			continue
		}
		live = append(live, addr)
	}
	return live
}

// Stats returns the last reported NodeSysStats for addr, if it is known.
func (m *HostManager) Stats(addr metapb.HostAddr) (metapb.NodeSysStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.hosts[addr.String()]
	if !ok {
		return metapb.NodeSysStats{}, false
	}
	return r.stats, true
}

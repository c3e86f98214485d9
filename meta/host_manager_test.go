package meta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baudgraph/graphd/proto/metapb"
)

func TestHostManagerTouchAndIsLive(t *testing.T) {
	m := NewHostManager(50 * time.Millisecond)
	addr := metapb.HostAddr{Host: "10.0.0.1", Port: 6000}

	require.False(t, m.IsLive(addr))

	m.Touch(addr, metapb.NodeSysStats{CPUCount: 4}, nil)
	require.True(t, m.IsLive(addr))

	stats, ok := m.Stats(addr)
	require.True(t, ok)
	require.Equal(t, uint32(4), stats.CPUCount)
}

func TestHostManagerExpiresDeadHosts(t *testing.T) {
	m := NewHostManager(10 * time.Millisecond)
	addr := metapb.HostAddr{Host: "10.0.0.2", Port: 6000}

	m.Touch(addr, metapb.NodeSysStats{}, nil)
	require.True(t, m.IsLive(addr))

	time.Sleep(30 * time.Millisecond)
	require.False(t, m.IsLive(addr))
}

func TestHostManagerLiveHosts(t *testing.T) {
	m := NewHostManager(50 * time.Millisecond)
	a := metapb.HostAddr{Host: "10.0.0.1", Port: 6000}
	b := metapb.HostAddr{Host: "10.0.0.2", Port: 6000}

	m.Touch(a, metapb.NodeSysStats{}, nil)
	m.Touch(b, metapb.NodeSysStats{}, nil)

	live := m.LiveHosts()
	require.Len(t, live, 2)
}

func TestHostManagerStatsUnknownHost(t *testing.T) {
	m := NewHostManager(time.Second)
	_, ok := m.Stats(metapb.HostAddr{Host: "unknown", Port: 1})
	require.False(t, ok)
}

package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	grpclib "google.golang.org/grpc"

	"github.com/baudgraph/graphd/meta"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/util/grpc"
	"github.com/baudgraph/graphd/util/log"
)

// HeartbeatWork periodically reports this daemon's host stats and the
// leader of each hosted partition to the meta daemon (PartitionStat.Term
// is not filled in and stays zero), so meta's
// HostManager can track liveness without storage daemons needing to be
// polled.
type HeartbeatWork struct {
	self     metapb.HostAddr
	clusterID uint64
	interval time.Duration

	store   *Store
	stats   *SysStatsCollector
	dial    func() (meta.MetaClient, func(), error)
}

func NewHeartbeatWork(self metapb.HostAddr, clusterID uint64, interval time.Duration, store *Store, stats *SysStatsCollector, metaAddr metapb.HostAddr) *HeartbeatWork {
	return &HeartbeatWork{
		self:      self,
		clusterID: clusterID,
		interval:  interval,
		store:     store,
		stats:     stats,
		dial: func() (meta.MetaClient, func(), error) {
			cc, err := grpclib.Dial(metaAddr.String(), grpclib.WithInsecure(), grpc.DialCodecOption())
			if err != nil {
				return nil, nil, err
			}
			return meta.NewMetaClient(cc), func() { cc.Close() }, nil
		},
	}
}

// Run blocks, sending a heartbeat every interval until ctx is done.
func (h *HeartbeatWork) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.send(ctx); err != nil {
				log.Error("server: heartbeat failed request_id=%s: %v", uuid.New().String(), err)
			}
		}
	}
}

func (h *HeartbeatWork) send(ctx context.Context) error {
	client, closeFn, err := h.dial()
	if err != nil {
		return err
	}
	defer closeFn()

	var parts []metapb.PartitionStat
	for space, ids := range h.localParts() {
		for _, part := range ids {
			leader, err := h.store.PartLeader(space, part)
			if err != nil {
				continue
			}
			parts = append(parts, metapb.PartitionStat{Space: space, Part: part, Leader: leader})
		}
	}

	req := &meta.HeartbeatRequest{
		ClusterID: h.clusterID,
		Addr:      h.self,
		Stats:     h.stats.Collect(),
		Parts:     parts,
	}

	ctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()
	_, err = client.Heartbeat(ctx, req)
	return err
}

// localParts groups every partition this daemon holds a local replica
// of, by space, so send() doesn't need the caller to track that
// separately from the partition manager it already owns.
func (h *HeartbeatWork) localParts() map[metapb.SpaceID][]metapb.PartID {
	out := make(map[metapb.SpaceID][]metapb.PartID)
	for _, space := range h.store.pm.spaces() {
		out[space] = h.store.Parts(space)
	}
	return out
}

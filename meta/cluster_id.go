package meta

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/util"
	"github.com/baudgraph/graphd/util/log"
)

// followerPollInterval is the initial backoff a follower waits before
// re-reading the cluster-id key while it is still absent (§4.3); it
// backs off exponentially (capped at followerPollMaxBackoff) on
// successive re-reads.
var followerPollInterval = time.Second
var followerPollMaxBackoff = 10 * time.Second

// ClusterIdentity bootstraps and remembers the cluster's 64-bit id. A
// follower never writes the key; a leader never rewrites it once
// present.
type ClusterIdentity struct {
	store kv.AsyncStore
	self  metapb.HostAddr

	mu sync.RWMutex
	id uint64
}

func NewClusterIdentity(store kv.AsyncStore, self metapb.HostAddr) *ClusterIdentity {
	return &ClusterIdentity{store: store, self: self}
}

// ID returns the bootstrapped cluster id, or 0 before Bootstrap has
// completed.
func (c *ClusterIdentity) ID() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Bootstrap implements the §4.3 protocol. It blocks until the meta
// partition has a leader, then reads or seeds the cluster id. Peers is
// the configured meta host:port list, used to derive the id when this
// replica is the leader and must seed it for the first time.
func (c *ClusterIdentity) Bootstrap(ctx context.Context, peers []string) error {
	isLeader, err := c.waitForLeader(ctx)
	if err != nil {
		return err
	}

	retry := util.NewRetry(&util.RetryOption{
		Context:     ctx,
		InitBackoff: followerPollInterval,
		MaxBackoff:  followerPollMaxBackoff,
	})
	for ok, _ := retry.Next(); ok; ok, _ = retry.Next() {
		val, found, err := c.store.Get(ctx, metapb.MetaSpaceID, metapb.MetaPartID, []byte(metapb.ReservedClusterIDKey))
		if err != nil {
			return err
		}
		if found {
			id := binary.BigEndian.Uint64(val)
			c.setID(id)
			log.Info("meta: adopted existing cluster id %d", id)
			return nil
		}

		if isLeader {
			id := DeriveClusterID(peers)
			if err := c.writeID(ctx, id); err != nil {
				return err
			}
			c.setID(id)
			log.Info("meta: seeded cluster id %d as leader", id)
			return nil
		}
	}
	return ctx.Err()
}

// writeID puts the cluster id and blocks until the put's callback
// fires, so Bootstrap never returns success before the write is
// durable. A non-Succeeded result aborts the process, per §4.3's
// "refuse to start on write failure".
func (c *ClusterIdentity) writeID(ctx context.Context, id uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)

	done := make(chan storagepb.ResultCode, 1)
	c.store.AsyncMultiPut(ctx, metapb.MetaSpaceID, metapb.MetaPartID,
		[]kv.KVPair{{Key: []byte(metapb.ReservedClusterIDKey), Value: buf[:]}},
		func(code storagepb.ResultCode) { done <- code },
	)

	select {
	case code := <-done:
		if code != storagepb.ResultSucceeded {
			return &clusterIDWriteError{code: code}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitForLeader blocks until the meta partition has a non-zero leader,
// returning whether that leader is this replica.
func (c *ClusterIdentity) waitForLeader(ctx context.Context) (isSelf bool, err error) {
	retry := util.NewRetry(&util.RetryOption{
		Context:     ctx,
		InitBackoff: 100 * time.Millisecond,
		MaxBackoff:  time.Second,
	})
	for ok, _ := retry.Next(); ok; ok, _ = retry.Next() {
		leader, err := c.store.PartLeader(metapb.MetaSpaceID, metapb.MetaPartID)
		if err != nil {
			return false, err
		}
		if !leader.IsZero() {
			return leader == c.self, nil
		}
	}
	return false, ctx.Err()
}

func (c *ClusterIdentity) setID(id uint64) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

// DeriveClusterID derives a non-zero 64-bit id from the canonical,
// sorted form of the configured meta-peer list.
func DeriveClusterID(peers []string) uint64 {
	sorted := append([]string{}, peers...)
	sort.Strings(sorted)
	h := sha256.Sum256([]byte("graphd-cluster-id-v1|" + strings.Join(sorted, ",")))
	id := binary.BigEndian.Uint64(h[:8])
	if id == 0 {
		id = 1
	}
	return id
}

type clusterIDWriteError struct {
	code storagepb.ResultCode
}

func (e *clusterIDWriteError) Error() string {
	return "meta: cluster id write failed: " + e.code.String()
}

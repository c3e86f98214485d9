package meta

import (
	"context"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/util/log"
)

// Service stores schemas, indexes, host liveness, and users in
// well-known key prefixes of the meta partition (0,0). It is the C4
// meta service: ordinary replicated KV writes, plus two one-time
// behaviors that only the leader performs.
type Service struct {
	store    kv.AsyncStore
	identity *ClusterIdentity
}

func NewService(store kv.AsyncStore, identity *ClusterIdentity) *Service {
	return &Service{store: store, identity: identity}
}

// BootstrapRootUser installs the default root user if it is absent.
// Followers do nothing: on a replica that is not the current leader of
// the meta partition it returns nil without reading or writing.
func (s *Service) BootstrapRootUser(ctx context.Context) error {
	leader, err := s.store.PartLeader(metapb.MetaSpaceID, metapb.MetaPartID)
	if err != nil {
		return err
	}
	if leader != s.identity.self {
		return nil
	}

	_, found, err := s.store.Get(ctx, metapb.MetaSpaceID, metapb.MetaPartID, []byte(metapb.RootUserPrefix))
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	encoded := encodeUser(metapb.DefaultRootUser)
	done := make(chan storagepb.ResultCode, 1)
	s.store.AsyncMultiPut(ctx, metapb.MetaSpaceID, metapb.MetaPartID,
		[]kv.KVPair{{Key: []byte(metapb.RootUserPrefix), Value: encoded}},
		func(code storagepb.ResultCode) { done <- code },
	)
	select {
	case code := <-done:
		if code != storagepb.ResultSucceeded {
			return &clusterIDWriteError{code: code}
		}
		log.Info("meta: installed default root user")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const schemaV1Prefix = "__meta_schema_v1_"
const schemaV2Prefix = "__meta_schema_v2_"

// UpgradeSchemaV1ToV2 rewrites every legacy (v1) schema record into the
// current (v2) format. The transformation is idempotent: a v1 record
// already migrated (its v2 counterpart already present) is left alone,
// so running this twice is a no-op.
func (s *Service) UpgradeSchemaV1ToV2(ctx context.Context, it kv.Iterator) error {
	if it == nil {
		return nil
	}
	defer it.Close()

	var puts []kv.KVPair
	for it.Next() {
		key := it.Key()
		name := key[len(schemaV1Prefix):]
		v2Key := append([]byte(schemaV2Prefix), name...)

		_, found, err := s.store.Get(ctx, metapb.MetaSpaceID, metapb.MetaPartID, v2Key)
		if err != nil {
			return err
		}
		if found {
			continue // already migrated
		}
		puts = append(puts, kv.KVPair{Key: v2Key, Value: migrateSchemaRecord(it.Value())})
	}
	if err := it.Err(); err != nil {
		return err
	}
	if len(puts) == 0 {
		return nil
	}

	done := make(chan storagepb.ResultCode, 1)
	s.store.AsyncMultiPut(ctx, metapb.MetaSpaceID, metapb.MetaPartID, puts,
		func(code storagepb.ResultCode) { done <- code })
	select {
	case code := <-done:
		if code != storagepb.ResultSucceeded {
			return &clusterIDWriteError{code: code}
		}
		log.Info("meta: migrated %d legacy schema records to v2", len(puts))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// migrateSchemaRecord is the v1->v2 record transform. The legacy format
// carried no explicit version byte; v2 prepends one so multiple schema
// versions can coexist under the same key prefix.
func migrateSchemaRecord(v1 []byte) []byte {
	return append([]byte{1}, v1...)
}

func encodeUser(u metapb.User) []byte {
	b := []byte(u.Name)
	if u.IsRoot {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	return b
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net"

	"github.com/tiglabs/raft/logger"
	raftlog "github.com/tiglabs/raft/util/log"

	"github.com/baudgraph/graphd/meta"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/util/build"
	"github.com/baudgraph/graphd/util/grpc"
	"github.com/baudgraph/graphd/util/grpc/heartbeat"
	"github.com/baudgraph/graphd/util/log"
	"github.com/baudgraph/graphd/util/netutil"
	"github.com/baudgraph/graphd/util/routine"
	"github.com/baudgraph/graphd/util/server"

	grpclib "google.golang.org/grpc"
)

func listen(port int) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf(":%d", port))
}

var configFile = flag.String("c", "", "config file path")

func main() {
	server.SupressGlogWarnings()
	flag.Parse()
	fmt.Printf("configfile=[%v]\n", *configFile)

	cfg := meta.LoadConfig(*configFile)

	log.InitFileLog(cfg.LogCfg.LogPath, "graphd-metad", cfg.LogCfg.Level)
	if raftLog, err := raftlog.NewLog(cfg.LogCfg.LogPath, "raft", cfg.LogCfg.RaftLevel); err == nil {
		logger.SetLogger(raftLog)
	}

	self := cfg.Addr()
	peerAddrs := cfg.ClusterCfg.Peers()
	peers := make([]metapb.HostAddr, 0, len(peerAddrs))
	for _, p := range peerAddrs {
		addr, err := metapb.ParseHostAddr(p)
		if err != nil {
			log.Fatal("metad: invalid meta_server_addrs entry %q: %v", p, err)
		}
		peers = append(peers, addr)
	}

	store, err := meta.OpenStore(self, cfg.ModuleCfg.DataPath, peers)
	if err != nil {
		log.Fatal("metad: failed to open meta store: %v", err)
	}

	identity := meta.NewClusterIdentity(store, self)
	bootstrapCtx, cancelBootstrap := context.WithCancel(context.Background())
	if err := identity.Bootstrap(bootstrapCtx, peerAddrs); err != nil {
		log.Fatal("metad: cluster identity bootstrap failed: %v", err)
	}
	cancelBootstrap()

	svc := meta.NewService(store, identity)
	if err := svc.BootstrapRootUser(context.Background()); err != nil {
		log.Fatal("metad: root user bootstrap failed: %v", err)
	}

	srv := meta.NewServer(store, identity, svc, cfg.ClusterCfg.HostDeadAfter.Duration)

	workerPool := routine.NewPool(cfg.PoolCfg.NumWorkerThreads)
	grpcServer := grpclib.NewServer(
		grpc.ServerCodecOption(),
		grpclib.UnaryInterceptor(grpc.ChainUnary(
			heartbeat.VerifyClusterID(identity.ID()),
			grpc.BoundedConcurrency(workerPool),
		)),
	)
	meta.RegisterServer(grpcServer, srv)

	ln, err := listen(cfg.ModuleCfg.Port)
	if err != nil {
		log.Fatal("metad: failed to listen on port %d: %v", cfg.ModuleCfg.Port, err)
	}
	go func() {
		if err := grpcServer.Serve(ln); err != nil {
			log.Error("metad: grpc serve exited: %v", err)
		}
	}()

	debugSrv := netutil.NewServer(&netutil.ServerConfig{
		Name:    "graphd-metad",
		Addr:    cfg.HTTPAddr(),
		Version: build.AppVersion,
	})
	go func() {
		if err := debugSrv.Run(); err != nil {
			log.Error("metad: debug http server exited: %v", err)
		}
	}()

	log.Info("metad listening on %s, cluster id %d", self.String(), identity.ID())
	server.WaitShutdown(
		func() error {
			grpcServer.GracefulStop()
			return nil
		},
		func() error {
			debugSrv.Close()
			return nil
		},
		func() error {
			workerPool.Close()
			return nil
		},
	)
	log.Info("metad shut down")
}

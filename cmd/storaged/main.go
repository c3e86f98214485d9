package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/urfave/cli.v2"

	"github.com/tiglabs/raft/logger"
	raftlog "github.com/tiglabs/raft/util/log"
	grpclib "google.golang.org/grpc"

	"github.com/baudgraph/graphd/meta"
	serverpkg "github.com/baudgraph/graphd/storage/server"
	"github.com/baudgraph/graphd/txn"
	"github.com/baudgraph/graphd/util/build"
	"github.com/baudgraph/graphd/util/config"
	"github.com/baudgraph/graphd/util/grpc"
	"github.com/baudgraph/graphd/util/grpc/heartbeat"
	"github.com/baudgraph/graphd/util/log"
	"github.com/baudgraph/graphd/util/netutil"
	"github.com/baudgraph/graphd/util/routine"
	"github.com/baudgraph/graphd/util/server"
)

const flagConfig = "config"

var (
	app = &cli.App{
		Name:        "graphd-storaged",
		Usage:       "graphd-storaged [command]",
		Description: "graphd storage daemon.",
	}
	startCmd = &cli.Command{
		Name:        "start",
		Usage:       "graphd-storaged start",
		Description: "Start the storage daemon",
		Action:      start,
	}
)

func init() {
	server.AppendFlags(startCmd, &cli.StringFlag{
		Name:    flagConfig,
		Aliases: []string{"c"},
		Usage:   "storage daemon config file path",
	})
	server.AddGoFlags(startCmd)
	app.Commands = append(app.Commands, startCmd)
	app.Commands = append(app.Commands, server.VersionCommand())
}

func start(cmdCtx *cli.Context) error {
	server.SetGoFlagVals(cmdCtx)

	raw := config.LoadConfigFile(cmdCtx.String(flagConfig))
	cfg := serverpkg.LoadConfig(raw)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("storaged: %w", err)
	}

	log.InitFileLog(cfg.LogDir, "graphd-storaged", cfg.LogLevel)
	if raftLog, err := raftlog.NewLog(cfg.LogDir, "raft", cfg.LogLevel); err == nil {
		logger.SetLogger(raftLog)
	}

	store, err := serverpkg.NewStore(cfg.Addr(), cfg.DataPath)
	if err != nil {
		return fmt.Errorf("storaged: failed to open store: %w", err)
	}

	catalog := serverpkg.NewCatalog()

	txnMgr := serverpkg.NewChainTransactionManager(store)
	indexWriter := serverpkg.NewIndexWriter(store, catalog)
	writer := txn.NewWriter(
		store,
		txnMgr,
		serverpkg.NewVidLenResolver(catalog),
		serverpkg.NewPartResolver(store),
		serverpkg.NewEncoder(catalog),
		indexWriter,
	)

	clusterID, err := fetchClusterID(cfg)
	if err != nil {
		log.Error("storaged: could not reach meta for cluster id, starting unverified: %v", err)
	}

	srv := serverpkg.NewServer(clusterID, store, catalog, writer)

	workerPool := routine.NewPool(cfg.NumWorkerThreads)
	grpcServer := grpclib.NewServer(
		grpc.ServerCodecOption(),
		grpclib.UnaryInterceptor(grpc.ChainUnary(
			heartbeat.VerifyClusterID(clusterID),
			grpc.BoundedConcurrency(workerPool),
		)),
	)
	serverpkg.RegisterServer(grpcServer, srv)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("storaged: failed to listen on port %d: %w", cfg.Port, err)
	}
	go func() {
		if err := grpcServer.Serve(ln); err != nil {
			log.Error("storaged: grpc serve exited: %v", err)
		}
	}()

	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	if peers, perr := cfg.MetaPeers(); perr == nil && len(peers) > 0 {
		stats := serverpkg.NewSysStatsCollector(cfg.DataPath)
		hb := serverpkg.NewHeartbeatWork(cfg.Addr(), clusterID, 5*time.Second, store, stats, peers[0])
		go hb.Run(heartbeatCtx)
	}

	debugSrv := netutil.NewServer(&netutil.ServerConfig{
		Name:    "graphd-storaged",
		Addr:    cfg.HTTPAddr(),
		Version: build.AppVersion,
	})
	go func() {
		if err := debugSrv.Run(); err != nil {
			log.Error("storaged: debug http server exited: %v", err)
		}
	}()

	log.Info("storaged listening on %s", cfg.Addr().String())
	server.WaitShutdown(
		func() error {
			grpcServer.GracefulStop()
			return nil
		},
		func() error {
			stopHeartbeat()
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
		store.Close,
	)
	log.Info("storaged shut down")
	return nil
}

// fetchClusterID dials the first configured meta peer and asks it for
// the cluster id this daemon's heartbeat handshake will enforce.
func fetchClusterID(cfg *serverpkg.Config) (uint64, error) {
	peers, err := cfg.MetaPeers()
	if err != nil {
		return 0, err
	}
	if len(peers) == 0 {
		return 0, fmt.Errorf("storaged: meta_server_addrs is empty")
	}

	cc, err := grpclib.Dial(peers[0].String(), grpclib.WithInsecure(), grpc.DialCodecOption())
	if err != nil {
		return 0, err
	}
	defer cc.Close()

	resp, err := meta.NewMetaClient(cc).GetClusterID(context.Background(), &meta.ClusterIDRequest{})
	if err != nil {
		return 0, err
	}
	return resp.ClusterID, nil
}

func main() {
	server.SupressGlogWarnings()
	if err := app.Run(os.Args); err != nil {
		fmt.Printf("graphd-storaged error: %s\n", err)
		os.Exit(1)
	}
}

// Package meta implements the meta daemon: cluster identity bootstrap,
// the well-known (space=0, part=0) meta service, and the RPC surface
// the storage daemons and clients dial into it through.
package meta

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/util"
	"github.com/baudgraph/graphd/util/log"
	"github.com/baudgraph/graphd/util/netutil"
)

const defaultConfig = `
[module]
data-path = ""
local-ip = ""
port = 45500
http-port = 45501
reuse-port = true
pid-file = "pids/graphd-metad.pid"
daemonize = true
upgrade-meta-data = false

[cluster]
meta-server-addrs = ""
host-dead-after = "30s"

[pool]
num-io-threads = 16
num-worker-threads = 32
http-thread-num = 3

[log]
log-path = ""
level = "info"
raft-level = "warn"
`

// Config is the meta daemon's full configuration, decoded from the
// built-in defaults above and then overlaid with an operator-supplied
// TOML file.
type Config struct {
	ModuleCfg  ModuleConfig  `toml:"module"`
	ClusterCfg ClusterConfig `toml:"cluster"`
	PoolCfg    PoolConfig    `toml:"pool"`
	LogCfg     LogConfig     `toml:"log"`
}

// ModuleConfig mirrors the meta daemon's CLI flags (§6): local_ip,
// port, reuse_port, data_path, pid_file, daemonize, upgrade_meta_data.
type ModuleConfig struct {
	DataPath        string `toml:"data-path"`
	LocalIP         string `toml:"local-ip"`
	Port            int    `toml:"port"`
	HTTPPort        int    `toml:"http-port"`
	ReusePort       bool   `toml:"reuse-port"`
	PidFile         string `toml:"pid-file"`
	Daemonize       bool   `toml:"daemonize"`
	UpgradeMetaData bool   `toml:"upgrade-meta-data"`
}

// ClusterConfig carries the comma-separated meta peer list; an empty
// list means single-node.
type ClusterConfig struct {
	MetaServerAddrs string        `toml:"meta-server-addrs"`
	HostDeadAfter   util.Duration `toml:"host-dead-after"`
}

// Peers splits MetaServerAddrs into individual host:port strings.
func (c *ClusterConfig) Peers() []string {
	if c.MetaServerAddrs == "" {
		return nil
	}
	parts := strings.Split(c.MetaServerAddrs, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PoolConfig names the three fixed-size thread pools described in §5.
type PoolConfig struct {
	NumIOThreads     int `toml:"num-io-threads"`
	NumWorkerThreads int `toml:"num-worker-threads"`
	HTTPThreadNum    int `toml:"http-thread-num"`
}

type LogConfig struct {
	LogPath   string `toml:"log-path"`
	Level     string `toml:"level"`
	RaftLevel string `toml:"raft-level"`
}

// LoadConfig decodes the built-in defaults, then overlays path if
// non-empty. data_path must end up non-empty; everything else falls
// back to its documented default.
func LoadConfig(path string) *Config {
	c := new(Config)
	if _, err := toml.Decode(defaultConfig, c); err != nil {
		log.Panic("meta: failed to decode built-in default config: %v", err)
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			log.Panic("meta: failed to decode config file %s: %v", path, err)
		}
	}
	c.adjust()
	return c
}

func (c *Config) adjust() {
	if c.ModuleCfg.DataPath == "" {
		log.Panic("meta: data-path is required")
	}
	if err := os.MkdirAll(c.ModuleCfg.DataPath, os.ModePerm); err != nil {
		log.Panic("meta: failed to create data path %s: %v", c.ModuleCfg.DataPath, err)
	}
	if c.ModuleCfg.LocalIP == "" {
		c.ModuleCfg.LocalIP = detectLocalIP()
	}
	if c.ModuleCfg.HTTPPort <= 0 {
		c.ModuleCfg.HTTPPort = c.ModuleCfg.Port + 1
	}
	if c.PoolCfg.NumIOThreads <= 0 {
		c.PoolCfg.NumIOThreads = 16
	}
	if c.PoolCfg.NumWorkerThreads <= 0 {
		c.PoolCfg.NumWorkerThreads = 32
	}
	if c.PoolCfg.HTTPThreadNum <= 0 {
		c.PoolCfg.HTTPThreadNum = 3
	}
	if c.LogCfg.LogPath == "" {
		c.LogCfg.LogPath = c.ModuleCfg.DataPath + "/logs"
	}
}

// Addr returns this daemon's HostAddr as configured.
func (c *Config) Addr() metapb.HostAddr {
	return metapb.HostAddr{Host: c.ModuleCfg.LocalIP, Port: uint16(c.ModuleCfg.Port)}
}

// HTTPAddr returns the listen address of the debug HTTP server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.ModuleCfg.LocalIP, c.ModuleCfg.HTTPPort)
}

// detectLocalIP prefers a real outbound-facing private IP, the same
// signal peers dial back on, and only falls back to the bare hostname
// when no such interface exists (e.g. a sandboxed test run).
func detectLocalIP() string {
	if ip := privateIPOrEmpty(); ip != "" {
		return ip
	}
	host, _ := os.Hostname()
	return host
}

func privateIPOrEmpty() (ip string) {
	defer func() {
		if recover() != nil {
			ip = ""
		}
	}()
	return netutil.GetPrivateIP().String()
}

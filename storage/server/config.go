package server

import (
	"fmt"
	"os"

	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/util/config"
	"github.com/baudgraph/graphd/util/netutil"
)

// Config is the storage daemon's configuration, decoded from the JSON
// document util/config reads and overridable per-key by environment
// variable.
type Config struct {
	DataPath         string
	LocalIP          string
	Port             int
	HTTPPort         int
	MetaServerAddrs  string
	NumWorkerThreads int

	LogDir   string
	LogLevel string
}

// LoadConfig reads cfg's known keys and fills in defaults for the ones
// left unset: port 45600, http_port port+1, 32 worker threads,
// log_dir data_path/logs and log_level info.
func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		DataPath:         cfg.GetString("data_path"),
		LocalIP:          cfg.GetString("local_ip"),
		Port:             cfg.GetInt("port", 45600),
		HTTPPort:         cfg.GetInt("http_port", 0),
		MetaServerAddrs:  cfg.GetString("meta_server_addrs"),
		NumWorkerThreads: cfg.GetInt("num_worker_threads", 32),
		LogDir:           cfg.GetString("log_dir"),
		LogLevel:         cfg.GetString("log_level"),
	}
	if c.LocalIP == "" {
		c.LocalIP = detectLocalIP()
	}
	if c.HTTPPort <= 0 {
		c.HTTPPort = c.Port + 1
	}
	if c.NumWorkerThreads <= 0 {
		c.NumWorkerThreads = 32
	}
	if c.LogDir == "" {
		c.LogDir = c.DataPath + "/logs"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// Validate checks the required fields a daemon cannot safely start
// without.
func (c *Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("server: data_path is required")
	}
	return os.MkdirAll(c.DataPath, os.ModePerm)
}

// Addr returns this daemon's HostAddr as configured.
func (c *Config) Addr() metapb.HostAddr {
	return metapb.HostAddr{Host: c.LocalIP, Port: uint16(c.Port)}
}

// HTTPAddr returns the listen address of the debug HTTP server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.LocalIP, c.HTTPPort)
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

// MetaPeers parses the comma-separated meta_server_addrs list the
// storage daemon dials the meta partition through.
func (c *Config) MetaPeers() ([]metapb.HostAddr, error) {
	if c.MetaServerAddrs == "" {
		return nil, nil
	}
	var out []metapb.HostAddr
	start := 0
	for i := 0; i <= len(c.MetaServerAddrs); i++ {
		if i == len(c.MetaServerAddrs) || c.MetaServerAddrs[i] == ',' {
			if i > start {
				addr, err := metapb.ParseHostAddr(c.MetaServerAddrs[start:i])
				if err != nil {
					return nil, err
				}
				out = append(out, addr)
			}
			start = i + 1
		}
	}
	return out, nil
}

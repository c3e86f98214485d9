// Package config is a small JSON configuration reader used by storaged.
package config

import (
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/baudgraph/graphd/util/json"
)

// Config wraps a flat-ish JSON document, with environment-variable
// override support on every getter (env wins when set).
type Config struct {
	data map[string]interface{}
	Raw  []byte
}

func newConfig() *Config {
	return &Config{data: make(map[string]interface{})}
}

// LoadConfigFile loads configuration from a JSON file. A missing path
// yields an empty (all-default) config rather than failing, so a daemon
// can run from flags/env alone.
func LoadConfigFile(filename string) *Config {
	result := newConfig()
	if filename == "" {
		return result
	}
	if err := result.parse(filename); err != nil {
		log.Fatalf("error loading config file %s: %s", filename, err)
	}
	return result
}

// LoadConfigString loads configuration from a JSON string, for tests.
func LoadConfigString(s string) *Config {
	result := newConfig()
	if err := json.Unmarshal([]byte(s), &result.data); err != nil {
		log.Fatalf("error parsing config string %s: %s", s, err)
	}
	return result
}

func (c *Config) parse(fileName string) error {
	raw, err := ioutil.ReadFile(fileName)
	c.Raw = raw
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, &c.data)
}

// GetString returns a string config value, or "" if absent.
func (c *Config) GetString(key string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	if v, ok := c.data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt returns an int config value, or def if absent/invalid.
func (c *Config) GetInt(key string, def int) int {
	if env := os.Getenv(key); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			return n
		}
	}
	if v, ok := c.data[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return def
}

// GetBool returns a bool config value.
func (c *Config) GetBool(key string) bool {
	if env := os.Getenv(key); env != "" {
		return strings.EqualFold(env, "true")
	}
	if v, ok := c.data[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// GetArray returns a []interface{} config value.
func (c *Config) GetArray(key string) []interface{} {
	if v, ok := c.data[key]; ok {
		if a, ok := v.([]interface{}); ok {
			return a
		}
	}
	return nil
}

// Package config loads the INI-like key=value configuration file (§6)
// via gopkg.in/ini.v1 and validates it before anything downstream is
// constructed.
package config

import (
	"strings"

	"gopkg.in/ini.v1"

	"github.com/suprax/dramsim/internal/simerr"
)

// Config mirrors the key set of §6's "Config file" section. Keys not
// recognized by ini struct tags are silently ignored, matching "unknown
// keys ignored".
type Config struct {
	Standard      string `ini:"standard"`
	Channel       int    `ini:"channel"`
	Rank          int    `ini:"rank"`
	Cache         string `ini:"cache"`
	EarlyExit     bool   `ini:"early_exit"`
	Speed         string `ini:"speed"`
	Org           string `ini:"org"`
	RecordCmdTrace bool  `ini:"record_cmd_trace"`
	PrintCmdTrace bool   `ini:"print_cmd_trace"`
	Translation   string `ini:"translation"`
	InflightLimit int    `ini:"inflight_limit"`
	Scheduler     string `ini:"scheduler"`
	RowPolicy     string `ini:"row_policy"`
	ReadLatency   int64  `ini:"read_latency"`
	QueueCap      int    `ini:"queue_cap"`
}

// Default returns a Config with the spec's stated defaults (§6:
// "early_exit (default on)").
func Default() *Config {
	return &Config{
		Channel:       1,
		Rank:          1,
		Cache:         "all",
		EarlyExit:     true,
		Translation:   "None",
		InflightLimit: 128,
		Scheduler:     "frfcfs",
		RowPolicy:     "closed",
		ReadLatency:   100,
		QueueCap:      32,
	}
}

var standards = map[string]bool{"DDR3": true, "DDR4": true}
var caches = map[string]bool{"all": true, "L3": true, "L1L2": true, "none": true}
var translations = map[string]bool{"None": true, "Random": true, "Swizzle": true}

// Load reads path with ini.v1, overlays it onto Default(), and validates
// the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	f, err := ini.Load(path)
	if err != nil {
		return nil, simerr.Config("config.Load", "cannot read config file", err)
	}
	if err := f.Section("").MapTo(cfg); err != nil {
		return nil, simerr.Config("config.Load", "cannot decode config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown standard names and inconsistent
// organization/speed pairings (§7, "Configuration error").
func (c *Config) Validate() error {
	if c.Standard == "" {
		return simerr.Config("Config.Validate", "standard is required", nil)
	}
	if !standards[strings.ToUpper(c.Standard)] {
		return simerr.Config("Config.Validate", "unsupported standard: "+c.Standard, nil)
	}
	if c.Cache != "" && !caches[c.Cache] {
		return simerr.Config("Config.Validate", "unsupported cache mode: "+c.Cache, nil)
	}
	if c.Translation != "" && !translations[c.Translation] {
		return simerr.Config("Config.Validate", "unsupported translation mode: "+c.Translation, nil)
	}
	if c.Channel <= 0 || c.Rank <= 0 {
		return simerr.Config("Config.Validate", "channel and rank counts must be positive", nil)
	}
	switch strings.ToUpper(c.Standard) {
	case "DDR3":
		if c.Speed != "" && c.Speed != "DDR3_1600K" && c.Speed != "DDR3_2133K" {
			return simerr.Config("Config.Validate", "speed bin "+c.Speed+" is not a DDR3 bin", nil)
		}
	case "DDR4":
		if c.Speed != "" && c.Speed != "DDR4_2400R" {
			return simerr.Config("Config.Validate", "speed bin "+c.Speed+" is not a DDR4 bin", nil)
		}
	}
	return nil
}

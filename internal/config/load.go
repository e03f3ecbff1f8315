// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/tickbridge/tickbridge/internal/xdg"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"host":               "server.host",
	"port":               "server.port",
	"max-requests":       "server.max_requests_per_tick",
	"heartbeat-interval": "sse.heartbeat_interval_ticks",
	"tick-rate":          "sim.tick_rate",
	"metrics-addr":       "metrics.addr",
	"log-format":         "log.format",
	"log-level":          "log.level",
	"extensions-dir":     "extensions.dir",
}

// BindFlags registers the overridable settings on fs with their defaults.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("host", d.Server.Host, "HTTP listen host")
	fs.Int("port", d.Server.Port, "HTTP listen port")
	fs.Int("max-requests", d.Server.MaxRequestsPerTick, "requests drained per tick")
	fs.Uint64("heartbeat-interval", d.SSE.HeartbeatIntervalTicks, "ticks of silence before a heartbeat event")
	fs.Int("tick-rate", d.Sim.TickRate, "simulation ticks per second")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("extensions-dir", d.Extensions.Dir, "directory to discover extensions in (empty = disabled)")
}

// Load builds the configuration. Later sources win: defaults, then the YAML
// file at path, then flags that were set explicitly. An empty path uses the
// XDG config file if one exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := loadFile(k, path, explicit); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(CodeInvalidConfig).Wrapf(err, "load flags")
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code(CodeInvalidConfig).Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile merges a YAML file into k. A missing file is only an error when
// the path was given explicitly.
func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return oops.Code(CodeInvalidConfig).With("path", path).Wrapf(err, "config file")
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code(CodeInvalidConfig).With("path", path).Wrapf(err, "parse config file")
	}
	return nil
}

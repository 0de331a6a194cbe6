// Package config loads and validates sinkholed's configuration.
//
// Priority (highest to lowest):
//  1. Command-line flags (not handled here — see cmd/sinkholed/main.go)
//  2. Environment variables (SINKHOLE_* prefix)
//  3. YAML config file (if --config is given)
//  4. Hardcoded defaults
//
// All configuration is validated during Load() so startup fails fast on
// a bad config: a config parse failure is a fatal startup error with a
// non-zero exit code.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SINKHOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "127.0.0.1")
	v.SetDefault("listen_port", 53)

	v.SetDefault("upstream_dns", []string{"8.8.8.8:53"})
	v.SetDefault("upstream_timeout", "5s")

	v.SetDefault("blocked_response", "refused")

	v.SetDefault("blocklist.custom_list", "")
	v.SetDefault("blocklist.local_lists", []string{})
	v.SetDefault("blocklist.remote_lists", []string{})
	v.SetDefault("blocklist.enable_wildcards", true)
	v.SetDefault("blocklist.refresh_cron", "")

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.log_blocked", true)

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.api_key", "")

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", "sinkhole.db")
}

// Load reads configuration from path (may be empty, meaning file-less:
// defaults plus environment only) and returns a fully validated Config.
func Load(path string) (*Config, error) {
	v, err := initConfig(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.Server.ListenAddr = v.GetString("listen_addr")
	cfg.Server.ListenPort = v.GetInt("listen_port")

	cfg.Upstream.Servers = nonEmpty(v.GetStringSlice("upstream_dns"))
	cfg.Upstream.Timeout = v.GetString("upstream_timeout")

	cfg.BlockedResponse = v.GetString("blocked_response")

	cfg.Blocklist.CustomList = v.GetString("blocklist.custom_list")
	cfg.Blocklist.LocalLists = nonEmpty(v.GetStringSlice("blocklist.local_lists"))
	cfg.Blocklist.RemoteLists = nonEmpty(v.GetStringSlice("blocklist.remote_lists"))
	cfg.Blocklist.EnableWildcards = v.GetBool("blocklist.enable_wildcards")
	cfg.Blocklist.RefreshCron = v.GetString("blocklist.refresh_cron")

	cfg.Logging.Level = strings.ToUpper(v.GetString("logging.level"))
	cfg.Logging.Structured = v.GetBool("logging.structured")
	cfg.Logging.LogBlocked = v.GetBool("logging.log_blocked")

	cfg.API.Enabled = v.GetBool("api.enabled")
	cfg.API.Host = v.GetString("api.host")
	cfg.API.Port = v.GetInt("api.port")
	cfg.API.APIKey = v.GetString("api.api_key")

	cfg.Store.Enabled = v.GetBool("store.enabled")
	cfg.Store.Path = v.GetString("store.path")

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalize(cfg *Config) error {
	if cfg.Server.ListenPort <= 0 || cfg.Server.ListenPort > 65535 {
		return errors.New("listen_port must be 1..65535")
	}
	if len(cfg.Upstream.Servers) == 0 {
		return errors.New("upstream_dns must name at least one host:port")
	}
	if cfg.Upstream.Timeout == "" {
		cfg.Upstream.Timeout = "5s"
	}
	if cfg.BlockedResponse == "" {
		cfg.BlockedResponse = "refused"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.API.Enabled {
		if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
			return errors.New("api.port must be 1..65535 when api.enabled")
		}
		if cfg.API.Host == "" {
			cfg.API.Host = "127.0.0.1"
		}
	}
	if cfg.Store.Enabled && cfg.Store.Path == "" {
		return errors.New("store.path must be set when store.enabled")
	}
	return nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

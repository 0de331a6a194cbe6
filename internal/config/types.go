// Package config provides configuration loading for sinkholed using
// Viper. Configuration is loaded from YAML files with automatic
// environment variable binding: flags (handled in cmd/sinkholed)
// override environment variables, which override file values, which
// override hardcoded defaults.
//
// Environment variables use the SINKHOLE_ prefix and underscore-separated
// keys, e.g. SINKHOLE_LISTEN_PORT -> listen_port,
// SINKHOLE_BLOCKLIST_ENABLE_WILDCARDS -> blocklist.enable_wildcards.
package config

// ServerConfig is the wire-protocol listen surface.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
	ListenPort int    `yaml:"listen_port" mapstructure:"listen_port"`
}

// UpstreamConfig is the ordered list of upstream resolvers; the core
// only ever uses the first entry — no failover across the rest.
type UpstreamConfig struct {
	Servers []string      `yaml:"upstream_dns" mapstructure:"upstream_dns"`
	Timeout string        `yaml:"timeout"      mapstructure:"timeout"` // e.g. "5s"; parsed by internal/server.NewRunner
}

// BlocklistConfig is the Loader's external-reader configuration surface.
type BlocklistConfig struct {
	CustomList      string   `yaml:"custom_list"      mapstructure:"custom_list"`
	LocalLists      []string `yaml:"local_lists"      mapstructure:"local_lists"`
	RemoteLists     []string `yaml:"remote_lists"     mapstructure:"remote_lists"`
	EnableWildcards bool     `yaml:"enable_wildcards" mapstructure:"enable_wildcards"`
	// RefreshCron optionally schedules a supplementary reload in
	// standard 5-field cron syntax. Empty disables scheduling.
	RefreshCron string `yaml:"refresh_cron" mapstructure:"refresh_cron"`
}

// LoggingConfig controls structured log output and the single
// blocked-query logging toggle.
type LoggingConfig struct {
	Level      string `yaml:"level"       mapstructure:"level"`
	Structured bool   `yaml:"structured"  mapstructure:"structured"`
	LogBlocked bool   `yaml:"log_blocked" mapstructure:"log_blocked"`
}

// APIConfig controls the read-only admin surface (internal/api), off
// by default.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host"    mapstructure:"host"`
	Port    int    `yaml:"port"    mapstructure:"port"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// StoreConfig controls the persisted custom-entries store
// (internal/store) — off by default; blocklist.custom_list alone is
// enough for a static deployment.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path"    mapstructure:"path"`
}

// Config is the root configuration tree. BlockedResponse holds the raw
// `blocked_response: refused | nxdomain | ip(<literal>)` string;
// internal/synth.ParseDenialPolicy does the parsing so config stays a
// thin, synth-agnostic layer.
type Config struct {
	Server          ServerConfig
	Upstream        UpstreamConfig
	BlockedResponse string `yaml:"blocked_response" mapstructure:"blocked_response"`
	Blocklist       BlocklistConfig `yaml:"blocklist" mapstructure:"blocklist"`
	Logging         LoggingConfig   `yaml:"logging"   mapstructure:"logging"`
	API             APIConfig       `yaml:"api"       mapstructure:"api"`
	Store           StoreConfig     `yaml:"store"     mapstructure:"store"`
}

package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the uplink switcher.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging  LoggingConfig   `yaml:"logging"`
	Database DatabaseConfig  `yaml:"database"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
	InfluxDB InfluxDBConfig  `yaml:"influxdb"`
	API      APIConfig       `yaml:"api"`
	Sessions []SessionConfig `yaml:"sessions"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite settings for the switch history store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetentionDays prunes switch history older than this at startup.
	// Zero keeps everything.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// StatusInterval is how often each session publishes its retained state (seconds).
	StatusInterval int `yaml:"status_interval"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for switcher telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains settings for the read-only status API.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// SessionConfig describes one streamer: their switcher, the stream servers
// polled on their behalf and the broadcasting software being driven.
type SessionConfig struct {
	User            string                `yaml:"user"`
	Switcher        SwitcherConfig        `yaml:"switcher"`
	Software        SoftwareConfig        `yaml:"software"`
	OptionalScenes  OptionalScenesConfig  `yaml:"optional_scenes"`
	OptionalOptions OptionalOptionsConfig `yaml:"optional_options"`
}

// SwitcherConfig holds the decision loop settings.
type SwitcherConfig struct {
	Enabled                  bool                 `yaml:"enabled"`
	RequestInterval          time.Duration        `yaml:"request_interval"`
	RetryAttempts            int                  `yaml:"retry_attempts"`
	OnlySwitchWhenStreaming  bool                 `yaml:"only_switch_when_streaming"`
	InstantlySwitchOnRecover bool                 `yaml:"instantly_switch_on_recover"`
	AutoSwitchNotification   bool                 `yaml:"auto_switch_notification"`
	Triggers                 TriggersConfig       `yaml:"triggers"`
	SwitchingScenes          ScenesConfig         `yaml:"switching_scenes"`
	StreamServers            []StreamServerConfig `yaml:"stream_servers"`
}

// TriggersConfig holds optional thresholds. Bitrates are in Kbps, RTT in ms.
type TriggersConfig struct {
	Low        *uint32 `yaml:"low"`
	RTT        *uint32 `yaml:"rtt"`
	Offline    *uint32 `yaml:"offline"`
	RTTOffline *uint32 `yaml:"rtt_offline"`
}

// ScenesConfig names the scenes used for each classification.
type ScenesConfig struct {
	Normal  string `yaml:"normal"`
	Low     string `yaml:"low"`
	Offline string `yaml:"offline"`
}

// StreamServerConfig describes one ingest endpoint to probe.
type StreamServerConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Priority int    `yaml:"priority"`
	Enabled  bool   `yaml:"enabled"`

	StatsURL    string        `yaml:"stats_url"`
	Application string        `yaml:"application"`
	Key         string        `yaml:"key"`
	Publisher   string        `yaml:"publisher"`
	Timeout     time.Duration `yaml:"timeout"`

	OverrideScenes *ScenesConfig    `yaml:"override_scenes"`
	DependsOn      *DependsOnConfig `yaml:"depends_on"`
}

// DependsOnConfig names the server another server relies on and the scenes
// used while that server reports no signal.
type DependsOnConfig struct {
	Name         string       `yaml:"name"`
	BackupScenes ScenesConfig `yaml:"backup_scenes"`
}

// SoftwareConfig describes the broadcasting software connection.
type SoftwareConfig struct {
	Type                string  `yaml:"type"`
	Host                string  `yaml:"host"`
	Port                int     `yaml:"port"`
	Password            string  `yaml:"password"`
	SceneMatchThreshold float64 `yaml:"scene_match_threshold"`
}

// OptionalScenesConfig names scenes with special handling.
type OptionalScenesConfig struct {
	Starting string `yaml:"starting"`
	Ending   string `yaml:"ending"`
	Privacy  string `yaml:"privacy"`
	Refresh  string `yaml:"refresh"`
}

// OptionalOptionsConfig holds opt-in behaviours.
type OptionalOptionsConfig struct {
	// OfflineTimeoutMinutes stops the stream after this long offline.
	OfflineTimeoutMinutes *uint32 `yaml:"offline_timeout"`

	// RecordWhileStreaming also stops recording when the offline timeout fires.
	RecordWhileStreaming bool `yaml:"record_while_streaming"`
}

// Supported stream server and software types.
var (
	streamServerTypes = map[string]bool{"nginx": true, "sls": true, "belabox": true, "mediamtx": true}
	softwareTypes     = map[string]bool{"obs": true}
)

// UnmarshalYAML decodes a session on top of the switcher and software
// defaults so that omitted booleans keep their enabled-by-default values.
func (s *SessionConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain SessionConfig
	p := plain{
		Switcher: defaultSwitcherConfig(),
		Software: defaultSoftwareConfig(),
	}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = SessionConfig(p)
	return nil
}

// UnmarshalYAML decodes a stream server entry with Enabled defaulting to true.
func (s *StreamServerConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain StreamServerConfig
	p := plain{Enabled: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = StreamServerConfig(p)
	return nil
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: UPLINK_SECTION_KEY
// For example: UPLINK_DATABASE_PATH, UPLINK_MQTT_HOST
//
// Stream servers of every session are sorted by ascending priority once
// validation passes.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	for i := range cfg.Sessions {
		servers := cfg.Sessions[i].Switcher.StreamServers
		sort.SliceStable(servers, func(a, b int) bool {
			return servers[a].Priority < servers[b].Priority
		})
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Path:                 "./data/uplink.db",
			WALMode:              true,
			BusyTimeout:          5,
			HistoryRetentionDays: 90,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "uplink-switcher",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			StatusInterval: 30,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
	}
}

// defaultSwitcherConfig returns the switcher defaults applied under every session.
func defaultSwitcherConfig() SwitcherConfig {
	return SwitcherConfig{
		Enabled:                  true,
		RequestInterval:          2 * time.Second,
		RetryAttempts:            5,
		OnlySwitchWhenStreaming:  true,
		InstantlySwitchOnRecover: true,
		AutoSwitchNotification:   true,
		SwitchingScenes: ScenesConfig{
			Normal:  "live",
			Low:     "low",
			Offline: "offline",
		},
	}
}

// defaultSoftwareConfig returns the defaults for an OBS WebSocket v5 connection.
func defaultSoftwareConfig() SoftwareConfig {
	return SoftwareConfig{
		Type:                "obs",
		Host:                "localhost",
		Port:                4455,
		SceneMatchThreshold: 0.6,
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: UPLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("UPLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("UPLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("UPLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("UPLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("UPLINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("UPLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Only fills sessions that left the password out of the file.
	if v := os.Getenv("UPLINK_OBS_PASSWORD"); v != "" {
		for i := range cfg.Sessions {
			if cfg.Sessions[i].Software.Password == "" {
				cfg.Sessions[i].Software.Password = v
			}
		}
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected so a broken file can be fixed in one pass.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.HistoryRetentionDays < 0 {
		errs = append(errs, "database.history_retention_days must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(c.Sessions) == 0 {
		errs = append(errs, "at least one session is required")
	}

	users := make(map[string]bool, len(c.Sessions))
	for i := range c.Sessions {
		s := &c.Sessions[i]
		if s.User == "" {
			errs = append(errs, fmt.Sprintf("sessions[%d].user is required", i))
		} else if users[s.User] {
			errs = append(errs, fmt.Sprintf("sessions[%d].user %q is duplicated", i, s.User))
		}
		users[s.User] = true

		errs = append(errs, s.validate(fmt.Sprintf("sessions[%d]", i))...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate returns the problems found in one session, prefixed with its path.
func (s *SessionConfig) validate(prefix string) []string {
	var errs []string

	sw := s.Switcher
	if sw.RequestInterval <= 0 {
		errs = append(errs, prefix+".switcher.request_interval must be positive")
	}
	if sw.RetryAttempts < 0 {
		errs = append(errs, prefix+".switcher.retry_attempts must not be negative")
	}
	errs = append(errs, sw.SwitchingScenes.validate(prefix+".switcher.switching_scenes")...)

	if len(sw.StreamServers) == 0 {
		errs = append(errs, prefix+".switcher.stream_servers must not be empty")
	}

	names := make(map[string]bool, len(sw.StreamServers))
	for _, srv := range sw.StreamServers {
		if names[srv.Name] {
			errs = append(errs, fmt.Sprintf("%s.switcher.stream_servers %q is duplicated", prefix, srv.Name))
		}
		names[srv.Name] = true
	}

	for i, srv := range sw.StreamServers {
		p := fmt.Sprintf("%s.switcher.stream_servers[%d]", prefix, i)
		if srv.Name == "" {
			errs = append(errs, p+".name is required")
		}
		if !streamServerTypes[srv.Type] {
			errs = append(errs, fmt.Sprintf("%s.type %q is not supported", p, srv.Type))
		}
		if srv.StatsURL == "" {
			errs = append(errs, p+".stats_url is required")
		}
		if srv.Type == "sls" && srv.Publisher == "" {
			errs = append(errs, p+".publisher is required for sls")
		}
		if srv.OverrideScenes != nil {
			errs = append(errs, srv.OverrideScenes.validate(p+".override_scenes")...)
		}
		if srv.DependsOn != nil {
			switch {
			case srv.DependsOn.Name == srv.Name:
				errs = append(errs, p+".depends_on cannot reference itself")
			case !names[srv.DependsOn.Name]:
				errs = append(errs, fmt.Sprintf("%s.depends_on references unknown server %q", p, srv.DependsOn.Name))
			}
			errs = append(errs, srv.DependsOn.BackupScenes.validate(p+".depends_on.backup_scenes")...)
		}
	}

	if !softwareTypes[s.Software.Type] {
		errs = append(errs, fmt.Sprintf("%s.software.type %q is not supported", prefix, s.Software.Type))
	}
	if s.Software.Port < 1 || s.Software.Port > 65535 {
		errs = append(errs, prefix+".software.port must be between 1 and 65535")
	}
	if s.Software.SceneMatchThreshold < 0 || s.Software.SceneMatchThreshold > 1 {
		errs = append(errs, prefix+".software.scene_match_threshold must be between 0 and 1")
	}

	return errs
}

// validate reports empty scene names.
func (sc ScenesConfig) validate(prefix string) []string {
	var errs []string
	if sc.Normal == "" {
		errs = append(errs, prefix+".normal is required")
	}
	if sc.Low == "" {
		errs = append(errs, prefix+".low is required")
	}
	if sc.Offline == "" {
		errs = append(errs, prefix+".offline is required")
	}
	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// HistoryRetention returns the switch history retention, zero when disabled.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.Database.HistoryRetentionDays) * 24 * time.Hour
}

// OfflineTimeout returns the configured offline timeout, or zero when unset.
func (o OptionalOptionsConfig) OfflineTimeout() time.Duration {
	if o.OfflineTimeoutMinutes == nil {
		return 0
	}
	return time.Duration(*o.OfflineTimeoutMinutes) * time.Minute
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validSessionYAML = `
database:
  path: "/tmp/test.db"
sessions:
  - user: "streamer"
    switcher:
      retry_attempts: 3
      triggers:
        low: 800
        offline: 300
      stream_servers:
        - name: "backup"
          type: "nginx"
          priority: 5
          stats_url: "http://localhost/stat"
          application: "publish"
          key: "live"
        - name: "primary"
          type: "sls"
          priority: 1
          stats_url: "http://localhost:8181/stats"
          publisher: "publish/live/feed1"
          depends_on:
            name: "backup"
            backup_scenes:
              normal: "b-live"
              low: "b-low"
              offline: "b-offline"
    software:
      password: "from-file"
`

// writeConfig writes content to a temp config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validSessionYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if len(cfg.Sessions) != 1 {
		t.Fatalf("len(Sessions) = %d, want 1", len(cfg.Sessions))
	}

	s := cfg.Sessions[0]
	if s.User != "streamer" {
		t.Errorf("User = %q, want %q", s.User, "streamer")
	}
	if s.Switcher.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", s.Switcher.RetryAttempts)
	}
	if s.Switcher.Triggers.Low == nil || *s.Switcher.Triggers.Low != 800 {
		t.Errorf("Triggers.Low = %v, want 800", s.Switcher.Triggers.Low)
	}
	if s.Switcher.Triggers.RTT != nil {
		t.Errorf("Triggers.RTT = %v, want nil", *s.Switcher.Triggers.RTT)
	}
}

func TestLoad_SessionDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validSessionYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sw := cfg.Sessions[0].Switcher
	if !sw.Enabled {
		t.Error("Switcher.Enabled = false, want default true")
	}
	if !sw.OnlySwitchWhenStreaming {
		t.Error("OnlySwitchWhenStreaming = false, want default true")
	}
	if !sw.AutoSwitchNotification {
		t.Error("AutoSwitchNotification = false, want default true")
	}
	if sw.RequestInterval != 2*time.Second {
		t.Errorf("RequestInterval = %v, want 2s", sw.RequestInterval)
	}
	if sw.SwitchingScenes.Normal != "live" || sw.SwitchingScenes.Low != "low" || sw.SwitchingScenes.Offline != "offline" {
		t.Errorf("SwitchingScenes = %+v, want live/low/offline", sw.SwitchingScenes)
	}

	sw0 := cfg.Sessions[0].Software
	if sw0.Type != "obs" || sw0.Port != 4455 {
		t.Errorf("Software = %+v, want obs on 4455", sw0)
	}
	if sw0.SceneMatchThreshold != 0.6 {
		t.Errorf("SceneMatchThreshold = %v, want 0.6", sw0.SceneMatchThreshold)
	}

	for _, srv := range sw.StreamServers {
		if !srv.Enabled {
			t.Errorf("server %q Enabled = false, want default true", srv.Name)
		}
	}
}

func TestLoad_SortsServersByPriority(t *testing.T) {
	cfg, err := Load(writeConfig(t, validSessionYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	servers := cfg.Sessions[0].Switcher.StreamServers
	if servers[0].Name != "primary" || servers[1].Name != "backup" {
		t.Errorf("server order = [%s %s], want [primary backup]", servers[0].Name, servers[1].Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
sessions: []
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for no sessions, got nil")
	}
}

// validSession returns a session that passes validation.
func validSession() SessionConfig {
	return SessionConfig{
		User:     "streamer",
		Switcher: withServers(defaultSwitcherConfig(), StreamServerConfig{Name: "a", Type: "nginx", StatsURL: "http://x", Enabled: true}),
		Software: defaultSoftwareConfig(),
	}
}

func withServers(sw SwitcherConfig, servers ...StreamServerConfig) SwitcherConfig {
	sw.StreamServers = servers
	return sw
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "negative history retention",
			mutate:  func(c *Config) { c.Database.HistoryRetentionDays = -1 },
			wantErr: "history_retention_days",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name: "invalid api port when enabled",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 70000
			},
			wantErr: "api.port",
		},
		{
			name:    "duplicate user",
			mutate:  func(c *Config) { c.Sessions = append(c.Sessions, validSession()) },
			wantErr: "duplicated",
		},
		{
			name:    "unknown server type",
			mutate:  func(c *Config) { c.Sessions[0].Switcher.StreamServers[0].Type = "rtsp" },
			wantErr: "not supported",
		},
		{
			name: "depends_on unknown server",
			mutate: func(c *Config) {
				c.Sessions[0].Switcher.StreamServers[0].DependsOn = &DependsOnConfig{
					Name:         "ghost",
					BackupScenes: ScenesConfig{Normal: "n", Low: "l", Offline: "o"},
				}
			},
			wantErr: "unknown server",
		},
		{
			name: "depends_on itself",
			mutate: func(c *Config) {
				c.Sessions[0].Switcher.StreamServers[0].DependsOn = &DependsOnConfig{
					Name:         "a",
					BackupScenes: ScenesConfig{Normal: "n", Low: "l", Offline: "o"},
				}
			},
			wantErr: "itself",
		},
		{
			name:    "empty override scene",
			mutate:  func(c *Config) { c.Sessions[0].Switcher.StreamServers[0].OverrideScenes = &ScenesConfig{Normal: "x"} },
			wantErr: "override_scenes.low",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Sessions[0].Software.SceneMatchThreshold = 1.5 },
			wantErr: "scene_match_threshold",
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Sessions[0].Switcher.RequestInterval = 0 },
			wantErr: "request_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Sessions = []SessionConfig{validSession()}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}

	cfg.Database.HistoryRetentionDays = 2
	if got := cfg.HistoryRetention(); got != 48*time.Hour {
		t.Errorf("HistoryRetention() = %v, want 48h", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()
	cfg.Sessions = []SessionConfig{validSession(), validSession()}
	cfg.Sessions[1].Software.Password = "kept"

	t.Setenv("UPLINK_DATABASE_PATH", "/custom/path.db")
	t.Setenv("UPLINK_MQTT_HOST", "mqtt.example.com")
	t.Setenv("UPLINK_MQTT_USERNAME", "testuser")
	t.Setenv("UPLINK_MQTT_PASSWORD", "testpass")
	t.Setenv("UPLINK_API_HOST", "192.168.1.1")
	t.Setenv("UPLINK_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("UPLINK_OBS_PASSWORD", "obs-secret")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Sessions[0].Software.Password != "obs-secret" {
		t.Errorf("Sessions[0].Software.Password = %q, want %q", cfg.Sessions[0].Software.Password, "obs-secret")
	}
	if cfg.Sessions[1].Software.Password != "kept" {
		t.Errorf("Sessions[1].Software.Password = %q, want %q", cfg.Sessions[1].Software.Password, "kept")
	}
}

func TestOptionalOptions_OfflineTimeout(t *testing.T) {
	if got := (OptionalOptionsConfig{}).OfflineTimeout(); got != 0 {
		t.Errorf("OfflineTimeout() unset = %v, want 0", got)
	}

	minutes := uint32(3)
	if got := (OptionalOptionsConfig{OfflineTimeoutMinutes: &minutes}).OfflineTimeout(); got != 3*time.Minute {
		t.Errorf("OfflineTimeout() = %v, want 3m", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8090 {
		t.Errorf("defaultConfig API.Port = %d, want 8090", cfg.API.Port)
	}
}

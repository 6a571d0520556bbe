package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// validJWTSecret meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8090
protocols:
  roku:
    enabled: true
    config_file: "/etc/graylogic/roku-bridge.yaml"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.ClientID != "test-client" {
		t.Errorf("MQTT.Broker.ClientID = %q, want %q", cfg.MQTT.Broker.ClientID, "test-client")
	}
	if cfg.Protocols.Roku.ConfigFile != "/etc/graylogic/roku-bridge.yaml" {
		t.Errorf("Protocols.Roku.ConfigFile = %q", cfg.Protocols.Roku.ConfigFile)
	}
	// Unset sections keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: ""
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "site.id") {
		t.Errorf("Load() error = %v, want site.id validation error", err)
	}
}

func TestLoad_SecretFromEnvironment(t *testing.T) {
	configPath := writeConfig(t, "site:\n  id: \"env-site\"\n")
	t.Setenv("GRAYLOGIC_ROKU_JWT_SECRET", validJWTSecret)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Security.JWT.Secret != validJWTSecret {
		t.Error("JWT secret should come from the environment")
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = validJWTSecret
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, "site.id"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"negative history retention", func(c *Config) { c.Database.HistoryRetentionDays = -1 }, "database.history_retention_days"},
		{"history retention disabled", func(c *Config) { c.Database.HistoryRetentionDays = 0 }, ""},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"influxdb without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"roku without config file", func(c *Config) { c.Protocols.Roku.ConfigFile = "" }, "protocols.roku.config_file"},
		{"roku disabled without config file", func(c *Config) {
			c.Protocols.Roku.Enabled = false
			c.Protocols.Roku.ConfigFile = ""
		}, ""},
		{"missing JWT secret", func(c *Config) { c.Security.JWT.Secret = "" }, "security.jwt.secret is required"},
		{"JWT secret too short", func(c *Config) { c.Security.JWT.Secret = "short" }, "at least 32 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Site.ID = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if !strings.Contains(err.Error(), "site.id") || !strings.Contains(err.Error(), "api.port") {
		t.Errorf("Validate() error = %q, want both problems reported", err)
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
		WebSocket: WebSocketConfig{
			PingInterval: 20,
			PongTimeout:  5,
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
	if got := cfg.GetPingInterval().Seconds(); got != 20 {
		t.Errorf("GetPingInterval() = %v, want 20", got)
	}
	if got := cfg.GetPongTimeout().Seconds(); got != 5 {
		t.Errorf("GetPongTimeout() = %v, want 5", got)
	}
	if got := cfg.GetHistoryRetention(); got != 0 {
		t.Errorf("GetHistoryRetention() = %v, want 0", got)
	}

	cfg.Database.HistoryRetentionDays = 7
	if got := cfg.GetHistoryRetention().Hours(); got != 7*24 {
		t.Errorf("GetHistoryRetention() = %vh, want 168h", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_ROKU_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_ROKU_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_ROKU_MQTT_PORT", "8883")
	t.Setenv("GRAYLOGIC_ROKU_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_ROKU_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_ROKU_API_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_ROKU_API_PORT", "9000")
	t.Setenv("GRAYLOGIC_ROKU_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYLOGIC_ROKU_LOGGING_LEVEL", "debug")
	t.Setenv("GRAYLOGIC_ROKU_BRIDGE_CONFIG", "/etc/roku.yaml")
	t.Setenv("GRAYLOGIC_ROKU_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Broker.Port", cfg.MQTT.Broker.Port, 8883},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"API.Port", cfg.API.Port, 9000},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"Protocols.Roku.ConfigFile", cfg.Protocols.Roku.ConfigFile, "/etc/roku.yaml"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAYLOGIC_ROKU_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want default 8090", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.MQTT.Broker.ClientID != "graylogic-roku" {
		t.Errorf("defaultConfig MQTT.Broker.ClientID = %q, want graylogic-roku", cfg.MQTT.Broker.ClientID)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("defaultConfig API.Port = %d, want 8090", cfg.API.Port)
	}
	if !cfg.Protocols.Roku.Enabled || cfg.Protocols.Roku.ConfigFile == "" {
		t.Errorf("defaultConfig Protocols.Roku = %+v", cfg.Protocols.Roku)
	}
	if cfg.Security.JWT.Secret != "" {
		t.Error("defaultConfig must not ship a JWT secret")
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func baseConfig() AppConfig {
	cfg := Default()
	cfg.Monitor.Dir = "/srv/allsky"
	cfg.Model.Path = "/srv/roof-model.cbor"
	return cfg
}

func TestValidateAcceptsBase(t *testing.T) {
	if err := baseConfig().Validate(); err != nil {
		t.Fatalf("base config should validate, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{
			name:    "missing monitor dir",
			mutate:  func(c *AppConfig) { c.Monitor.Dir = "" },
			wantErr: "monitor.dir",
		},
		{
			name:    "no extensions",
			mutate:  func(c *AppConfig) { c.Monitor.Extensions = nil },
			wantErr: "monitor.extensions",
		},
		{
			name:    "extension without dot",
			mutate:  func(c *AppConfig) { c.Monitor.Extensions = []string{"png"} },
			wantErr: "must start with a dot",
		},
		{
			name:    "zero interval",
			mutate:  func(c *AppConfig) { c.Monitor.Interval = 0 },
			wantErr: "monitor.interval",
		},
		{
			name:    "missing model path",
			mutate:  func(c *AppConfig) { c.Model.Path = "" },
			wantErr: "model.path",
		},
		{
			name:    "threshold at zero",
			mutate:  func(c *AppConfig) { c.Model.Threshold = 0 },
			wantErr: "model.threshold",
		},
		{
			name:    "threshold at one",
			mutate:  func(c *AppConfig) { c.Model.Threshold = 1 },
			wantErr: "model.threshold",
		},
		{
			name:    "missing status file",
			mutate:  func(c *AppConfig) { c.StatusFile.Path = "" },
			wantErr: "status_file.path",
		},
		{
			name: "latitude out of range",
			mutate: func(c *AppConfig) {
				c.Sun.Enabled = true
				c.Sun.Latitude = 91
			},
			wantErr: "sun.latitude",
		},
		{
			name: "bad modbus input type",
			mutate: func(c *AppConfig) {
				c.Secondary.Modbus.Endpoint = "plc:502"
				c.Secondary.Modbus.InputType = "holding"
			},
			wantErr: "input_type",
		},
		{
			name: "modbus slave id zero",
			mutate: func(c *AppConfig) {
				c.Secondary.Modbus.Endpoint = "plc:502"
				c.Secondary.Modbus.SlaveID = 0
			},
			wantErr: "slave_id",
		},
		{
			name:    "port out of range",
			mutate:  func(c *AppConfig) { c.Alpaca.Port = 70000 },
			wantErr: "alpaca.port",
		},
		{
			name:    "negative device number",
			mutate:  func(c *AppConfig) { c.Alpaca.DeviceNumber = -1 },
			wantErr: "alpaca.device_number",
		},
		{
			name:    "bad safe_when",
			mutate:  func(c *AppConfig) { c.Alpaca.SafeWhen = "always" },
			wantErr: "alpaca.safe_when",
		},
		{
			name:    "telegram token without chat id",
			mutate:  func(c *AppConfig) { c.Notify.Telegram.Token = "123:abc" },
			wantErr: "chat_id",
		},
		{
			name: "bridge enabled without endpoint",
			mutate: func(c *AppConfig) {
				c.Bridge.Enabled = true
				c.Bridge.Endpoint = ""
			},
			wantErr: "bridge.endpoint",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *AppConfig) { c.Log.Level = "trace" },
			wantErr: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roofmon.yaml")
	doc := `
monitor:
  dir: /data/allsky
  interval: 90s
model:
  path: /data/model.cbor
  threshold: 0.65
secondary:
  modbus:
    endpoint: plc.lan:502
    timeout: 5
alpaca:
  port: 4567
  safe_when: open
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitor.Dir != "/data/allsky" {
		t.Errorf("monitor.dir = %q", cfg.Monitor.Dir)
	}
	if got := cfg.Monitor.Interval.Std(); got != 90*time.Second {
		t.Errorf("interval = %s, want 90s", got)
	}
	if got := cfg.Secondary.Modbus.Timeout.Std(); got != 5*time.Second {
		t.Errorf("bare-integer timeout = %s, want 5s", got)
	}
	if cfg.Model.Threshold != 0.65 {
		t.Errorf("threshold = %g", cfg.Model.Threshold)
	}
	if cfg.Alpaca.Port != 4567 || cfg.Alpaca.SafeWhen != "open" {
		t.Errorf("alpaca = %+v", cfg.Alpaca)
	}
	// Untouched fields keep their defaults.
	if cfg.StatusFile.Path != "RoofStatusFile.txt" {
		t.Errorf("status_file.path = %q, want default", cfg.StatusFile.Path)
	}
	if !cfg.Monitor.LogUnchanged {
		t.Error("log_unchanged default lost")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("monitor: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ROOFMON_MONITOR_DIR", "/env/frames")
	t.Setenv("ROOFMON_LOG_LEVEL", "debug")
	t.Setenv("ROOFMON_TELEGRAM_TOKEN", "42:token")
	t.Setenv("ROOFMON_TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("ROOFMON_MQTT_PASSWORD", "hunter2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitor.Dir != "/env/frames" {
		t.Errorf("monitor.dir = %q", cfg.Monitor.Dir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if cfg.Notify.Telegram.Token != "42:token" || cfg.Notify.Telegram.ChatID != -100123 {
		t.Errorf("telegram = %+v", cfg.Notify.Telegram)
	}
	if cfg.Notify.MQTT.Password != "hunter2" {
		t.Errorf("mqtt password not applied")
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML config at path on top of the defaults and then
// applies ROOFMON_* environment overrides. An empty path skips the file
// and yields defaults plus environment.
func Load(path string) (AppConfig, error) {
	// Secrets commonly live in a .env next to the binary.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides the fields that deployments prefer to keep out of
// the config file, secrets above all.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("ROOFMON_MONITOR_DIR"); v != "" {
		cfg.Monitor.Dir = v
	}
	if v := os.Getenv("ROOFMON_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("ROOFMON_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ROOFMON_MQTT_USERNAME"); v != "" {
		cfg.Notify.MQTT.Username = v
	}
	if v := os.Getenv("ROOFMON_MQTT_PASSWORD"); v != "" {
		cfg.Notify.MQTT.Password = v
	}
	if v := os.Getenv("ROOFMON_TELEGRAM_TOKEN"); v != "" {
		cfg.Notify.Telegram.Token = v
	}
	if v := os.Getenv("ROOFMON_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Notify.Telegram.ChatID = id
		}
	}
}

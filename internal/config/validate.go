package config

import (
	"fmt"
	"strings"
)

// Validate checks the loaded configuration for values the daemon cannot
// run with. It never mutates the config.
func (c AppConfig) Validate() error {
	if c.Monitor.Dir == "" {
		return fmt.Errorf("monitor.dir is required")
	}
	if len(c.Monitor.Extensions) == 0 {
		return fmt.Errorf("monitor.extensions must list at least one extension")
	}
	for _, ext := range c.Monitor.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("monitor.extensions entry %q must start with a dot", ext)
		}
	}
	if c.Monitor.Interval.Std() <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %s", c.Monitor.Interval)
	}

	if c.Model.Path == "" {
		return fmt.Errorf("model.path is required")
	}
	if c.Model.Threshold <= 0 || c.Model.Threshold >= 1 {
		return fmt.Errorf("model.threshold must be in (0, 1), got %g", c.Model.Threshold)
	}

	if c.StatusFile.Path == "" {
		return fmt.Errorf("status_file.path is required")
	}

	if c.Sun.Enabled {
		if c.Sun.Latitude < -90 || c.Sun.Latitude > 90 {
			return fmt.Errorf("sun.latitude must be in [-90, 90], got %g", c.Sun.Latitude)
		}
		if c.Sun.Longitude < -180 || c.Sun.Longitude > 180 {
			return fmt.Errorf("sun.longitude must be in [-180, 180], got %g", c.Sun.Longitude)
		}
		if c.Sun.ThresholdDeg < -90 || c.Sun.ThresholdDeg > 90 {
			return fmt.Errorf("sun.threshold_deg must be in [-90, 90], got %g", c.Sun.ThresholdDeg)
		}
	}

	if c.Secondary.Modbus.Endpoint != "" {
		m := c.Secondary.Modbus
		switch m.InputType {
		case "discrete", "coil":
		default:
			return fmt.Errorf("secondary.modbus.input_type must be %q or %q, got %q", "discrete", "coil", m.InputType)
		}
		if m.SlaveID < 1 || m.SlaveID > 247 {
			return fmt.Errorf("secondary.modbus.slave_id must be in [1, 247], got %d", m.SlaveID)
		}
		if m.Timeout.Std() <= 0 {
			return fmt.Errorf("secondary.modbus.timeout must be positive, got %s", m.Timeout)
		}
	}

	if c.Alpaca.Port < 1 || c.Alpaca.Port > 65535 {
		return fmt.Errorf("alpaca.port must be in [1, 65535], got %d", c.Alpaca.Port)
	}
	if c.Alpaca.DeviceNumber < 0 {
		return fmt.Errorf("alpaca.device_number must be non-negative, got %d", c.Alpaca.DeviceNumber)
	}
	switch c.Alpaca.SafeWhen {
	case "open", "closed":
	default:
		return fmt.Errorf("alpaca.safe_when must be %q or %q, got %q", "open", "closed", c.Alpaca.SafeWhen)
	}
	if c.Alpaca.StaleAfter.Std() < 0 {
		return fmt.Errorf("alpaca.stale_after must be non-negative, got %s", c.Alpaca.StaleAfter)
	}

	if c.Notify.Telegram.Token != "" && c.Notify.Telegram.ChatID == 0 {
		return fmt.Errorf("notify.telegram.chat_id is required when a token is set")
	}
	if c.Notify.MQTT.Broker != "" && c.Notify.MQTT.Topic == "" {
		return fmt.Errorf("notify.mqtt.topic is required when a broker is set")
	}

	if c.Bridge.Enabled && c.Bridge.Endpoint == "" {
		return fmt.Errorf("bridge.endpoint is required when the bridge is enabled")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	return nil
}

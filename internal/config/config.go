package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "60s".
// Bare integers are read as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration value at line %d", value.Line)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

type AppConfig struct {
	Monitor    MonitorConfig    `yaml:"monitor"`
	Model      ModelConfig      `yaml:"model"`
	StatusFile StatusFileConfig `yaml:"status_file"`
	Sun        SunConfig        `yaml:"sun"`
	Secondary  SecondaryConfig  `yaml:"secondary"`
	Alpaca     AlpacaConfig     `yaml:"alpaca"`
	Notify     NotifyConfig     `yaml:"notify"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Log        LogConfig        `yaml:"log"`
}

// ---- MONITOR ----

type MonitorConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
	Interval   Duration `yaml:"interval"`

	// LogUnchanged re-stamps the current status line on polls where no new
	// frame appeared, keeping the status file a liveness audit trail. When
	// false only polls that classified a new frame are logged.
	LogUnchanged bool `yaml:"log_unchanged"`
}

// ---- CLASSIFIER ----

type ModelConfig struct {
	Path string `yaml:"path"`

	// Threshold is the OPEN-probability cut. Scores at or below it resolve
	// to CLOSED.
	Threshold float64 `yaml:"threshold"`
}

type StatusFileConfig struct {
	Path string `yaml:"path"`
}

// ---- SUN GUARD ----

type SunConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Latitude     float64 `yaml:"latitude"`
	Longitude    float64 `yaml:"longitude"`
	ThresholdDeg float64 `yaml:"threshold_deg"`
}

// ---- SECONDARY SOURCES ----

type SecondaryConfig struct {
	File   string                `yaml:"file"`
	Modbus SecondaryModbusConfig `yaml:"modbus"`
}

type SecondaryModbusConfig struct {
	Endpoint      string   `yaml:"endpoint"`
	SlaveID       uint8    `yaml:"slave_id"`
	Address       uint16   `yaml:"address"`
	InputType     string   `yaml:"input_type"`
	ClosedWhenSet bool     `yaml:"closed_when_set"`
	Timeout       Duration `yaml:"timeout"`
}

// ---- DEVICE PROTOCOL ----

type AlpacaConfig struct {
	Port         int      `yaml:"port"`
	DeviceNumber int      `yaml:"device_number"`
	SafeWhen     string   `yaml:"safe_when"`
	StaleAfter   Duration `yaml:"stale_after"`
	Discovery    bool     `yaml:"discovery"`
}

// ---- NOTIFICATIONS ----

type NotifyConfig struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// ---- CAMERA BRIDGE ----

type BridgeConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// ---- LOGGING ----

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when no file overrides a value.
func Default() AppConfig {
	return AppConfig{
		Monitor: MonitorConfig{
			Extensions:   []string{".png"},
			Interval:     Duration(60 * time.Second),
			LogUnchanged: true,
		},
		Model: ModelConfig{
			Threshold: 0.5,
		},
		StatusFile: StatusFileConfig{
			Path: "RoofStatusFile.txt",
		},
		Sun: SunConfig{
			Latitude:     40.0,
			Longitude:    -74.0,
			ThresholdDeg: -17.0,
		},
		Secondary: SecondaryConfig{
			Modbus: SecondaryModbusConfig{
				SlaveID:       1,
				InputType:     "discrete",
				ClosedWhenSet: true,
				Timeout:       Duration(2 * time.Second),
			},
		},
		Alpaca: AlpacaConfig{
			Port:       11111,
			SafeWhen:   "closed",
			StaleAfter: Duration(5 * time.Minute),
			Discovery:  true,
		},
		Notify: NotifyConfig{
			MQTT: MQTTConfig{
				Topic:    "observatory/roof/status",
				ClientID: "roofmon",
			},
		},
		Bridge: BridgeConfig{
			Endpoint: "tcp://*:5555",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

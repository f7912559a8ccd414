package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"roofmon/internal/config"
	"roofmon/internal/types"
)

// pahoClient is the slice of mqtt.Client the sink uses.
type pahoClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes each transition as a retained JSON message, so
// late subscribers immediately see the current roof state.
type MQTTSink struct {
	client pahoClient
	topic  string
}

type mqttPayload struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	UpdatedAt  string  `json:"updated_at"`
	Frame      string  `json:"frame,omitempty"`
}

func NewMQTTSink(cfg config.MQTTConfig, log *zap.Logger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetAutoReconnect(true)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	log.Info("mqtt sink connected",
		zap.String("broker", cfg.Broker),
		zap.String("topic", cfg.Topic))
	return &MQTTSink{client: client, topic: cfg.Topic}, nil
}

func (m *MQTTSink) Name() string { return "mqtt" }

func (m *MQTTSink) Publish(_ context.Context, rec types.StatusRecord) error {
	data, err := json.Marshal(mqttPayload{
		Status:     rec.Label.String(),
		Confidence: rec.Confidence,
		UpdatedAt:  rec.UpdatedAt.UTC().Format(time.RFC3339),
		Frame:      rec.FramePath,
	})
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, 1, true, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt publish %s: %w", m.topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight work to finish.
func (m *MQTTSink) Close() {
	m.client.Disconnect(250)
}

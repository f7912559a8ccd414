package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"roofmon/internal/types"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakePaho struct {
	topic        string
	qos          byte
	retained     bool
	payload      []byte
	publishErr   error
	disconnected bool
}

func (f *fakePaho) Connect() mqtt.Token { return &fakeToken{} }

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.topic = topic
	f.qos = qos
	f.retained = retained
	f.payload = payload.([]byte)
	return &fakeToken{err: f.publishErr}
}

func (f *fakePaho) Disconnect(uint) { f.disconnected = true }

func TestMQTTSinkPublishesRetainedJSON(t *testing.T) {
	client := &fakePaho{}
	sink := &MQTTSink{client: client, topic: "observatory/roof/status"}

	if err := sink.Publish(context.Background(), record(types.Open)); err != nil {
		t.Fatal(err)
	}

	if client.topic != "observatory/roof/status" {
		t.Errorf("topic = %q", client.topic)
	}
	if client.qos != 1 || !client.retained {
		t.Errorf("qos = %d retained = %v, want 1 true", client.qos, client.retained)
	}

	var payload mqttPayload
	if err := json.Unmarshal(client.payload, &payload); err != nil {
		t.Fatalf("payload %q: %v", client.payload, err)
	}
	if payload.Status != "OPEN" {
		t.Errorf("status = %q", payload.Status)
	}
	if payload.Confidence != 0.93 {
		t.Errorf("confidence = %v", payload.Confidence)
	}
	if payload.UpdatedAt != "2024-08-20T21:04:05Z" {
		t.Errorf("updated_at = %q", payload.UpdatedAt)
	}
	if payload.Frame != "frame.png" {
		t.Errorf("frame = %q", payload.Frame)
	}
}

func TestMQTTSinkPublishError(t *testing.T) {
	client := &fakePaho{publishErr: errors.New("broker gone")}
	sink := &MQTTSink{client: client, topic: "t"}

	err := sink.Publish(context.Background(), record(types.Closed))
	if err == nil || !strings.Contains(err.Error(), "broker gone") {
		t.Errorf("err = %v", err)
	}
}

func TestMQTTSinkClose(t *testing.T) {
	client := &fakePaho{}
	sink := &MQTTSink{client: client, topic: "t"}
	sink.Close()
	if !client.disconnected {
		t.Error("Close did not disconnect")
	}
}

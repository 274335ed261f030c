package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaConnectorProduceMessage(t *testing.T) {
	writer := &fakeWriter{}
	kc := NewKafkaConnector(&KafkaConfig{
		Brokers:       []string{"localhost:9092"},
		Topic:         "processing.events",
		WriteTimeout:  time.Second,
		CustomHeaders: map[string]string{"source": "processor-service"},
	})
	kc.newWriter = func(*KafkaConfig) messageWriter { return writer }

	err := kc.ProduceMessage(context.Background(), &KafkaMessage{Key: "job-1", Value: "x"})
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, kc.Connect())
	assert.True(t, kc.IsConnected())
	require.NoError(t, kc.ProduceMessage(context.Background(), &KafkaMessage{
		Key:     "job-1",
		Value:   map[string]string{"status": "completed"},
		Headers: map[string]string{"event": "job.completed"},
	}))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "job-1", string(msg.Key))
	assert.JSONEq(t, `{"status":"completed"}`, string(msg.Value))
	assert.Len(t, msg.Headers, 2)
	assert.EqualValues(t, 1, kc.GetStatistics()["messages_sent"])

	require.NoError(t, kc.Disconnect())
	assert.True(t, writer.closed)
	assert.False(t, kc.IsConnected())
}

func TestKafkaConnectorRequiresTopic(t *testing.T) {
	kc := NewKafkaConnector(&KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, kc.Connect())
}

func TestKafkaConnectorWriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	kc := NewKafkaConnector(&KafkaConfig{Brokers: []string{"b:9092"}, Topic: "t"})
	kc.newWriter = func(*KafkaConfig) messageWriter { return writer }
	require.NoError(t, kc.Connect())

	err := kc.ProduceMessage(context.Background(), &KafkaMessage{Key: "k", Value: []byte("v")})
	assert.ErrorContains(t, err, "broker down")
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMQTTClient struct {
	mqtt.Client
	connectErr error
	published  []publishedMessage
}

func (c *fakeMQTTClient) Connect() mqtt.Token { return doneToken{err: c.connectErr} }
func (c *fakeMQTTClient) Disconnect(uint)     {}
func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, publishedMessage{topic, qos, retained, payload.([]byte)})
	return doneToken{}
}

func newFakeMQTTConnector(client *fakeMQTTClient) *MQTTConnector {
	return &MQTTConnector{
		config: &MQTTConfig{Broker: "tcp://localhost:1883", ConnectTimeout: time.Second},
		client: client,
		logger: slog.Default(),
	}
}

func TestMQTTConnectorPublish(t *testing.T) {
	client := &fakeMQTTClient{}
	mc := newFakeMQTTConnector(client)

	assert.ErrorIs(t, mc.Publish(&MQTTMessage{Topic: "t", Payload: "x"}), ErrNotConnected)

	require.NoError(t, mc.Connect())
	require.NoError(t, mc.Publish(&MQTTMessage{
		Topic:   "processing/jobs/job-1",
		Payload: map[string]int{"rows": 10},
		QoS:     1,
	}))

	require.Len(t, client.published, 1)
	assert.Equal(t, "processing/jobs/job-1", client.published[0].topic)
	assert.Equal(t, byte(1), client.published[0].qos)
	var payload map[string]int
	require.NoError(t, json.Unmarshal(client.published[0].payload, &payload))
	assert.Equal(t, 10, payload["rows"])

	stats := mc.GetStatistics()
	assert.EqualValues(t, 1, stats.MessagesSent)
	assert.Positive(t, stats.BytesSent)
}

func TestMQTTConnectorConnectionLifecycle(t *testing.T) {
	client := &fakeMQTTClient{connectErr: errors.New("refused")}
	mc := newFakeMQTTConnector(client)
	assert.ErrorContains(t, mc.Connect(), "refused")
	assert.False(t, mc.IsConnected())

	client.connectErr = nil
	require.NoError(t, mc.Connect())
	mc.onConnectionLost(client, errors.New("eof"))
	assert.False(t, mc.IsConnected())
	assert.Equal(t, 1, mc.GetStatistics().ReconnectCount)
	assert.Contains(t, mc.GetStatistics().LastError, "eof")

	mc.onConnected(client)
	assert.True(t, mc.IsConnected())
	require.NoError(t, mc.Disconnect())
	assert.False(t, mc.IsConnected())
}

func TestSerializePayload(t *testing.T) {
	raw, err := serializePayload([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(raw))

	str, err := serializePayload("text")
	require.NoError(t, err)
	assert.Equal(t, "text", string(str))

	_, err = serializePayload(make(chan int))
	assert.Error(t, err)
}

func TestRedisConnectorPublishRequiresConnection(t *testing.T) {
	rc := NewRedisConnector(&RedisConfig{Address: "localhost:0"})
	_, err := rc.Publish(context.Background(), "processing:events", "x")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NotNil(t, rc.Client())
	assert.NoError(t, rc.Disconnect())
}

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	dapr "github.com/dapr/go-sdk/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"processor-service/client/connectors"
	"processor-service/service/pipeline"
	"processor-service/service/preprocess"
)

func completedSnapshot() pipeline.Snapshot {
	return pipeline.Snapshot{
		JobID:     "job-1",
		DatasetID: "sales",
		State:     pipeline.StateCompleted,
		Summary:   pipeline.Summary{RowsIn: 200, RowsOut: 198, Verdict: "transformed"},
	}
}

func TestNewEventMapsState(t *testing.T) {
	ev := NewEvent(completedSnapshot(), "/data/sales_processed.csv")
	assert.Equal(t, EventJobCompleted, ev.Type)
	assert.Equal(t, "completed", ev.Status)
	assert.Equal(t, "transformed", ev.Verdict)
	assert.Equal(t, "/data/sales_processed.csv", ev.ProcessedPath)
	assert.False(t, ev.OccurredAt.IsZero())

	failed := completedSnapshot()
	failed.State = pipeline.StateFailed
	failed.ErrorKind = preprocess.KindInsufficientData
	ev = NewEvent(failed, "")
	assert.Equal(t, EventJobFailed, ev.Type)
	assert.Equal(t, "insufficient_data", ev.ErrorKind)

	cancelled := completedSnapshot()
	cancelled.State = pipeline.StateCancelled
	assert.Equal(t, EventJobCancelled, NewEvent(cancelled, "").Type)
}

type mockNotifier struct {
	mock.Mock
	name string
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Notify(ctx context.Context, ev Event) error {
	return m.Called(ev.JobID).Error(0)
}

func TestFanoutDeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &mockNotifier{name: "ok"}
	ok.On("Notify", "job-1").Return(nil).Once()
	broken := &mockNotifier{name: "broken"}
	broken.On("Notify", "job-1").Return(errors.New("unreachable")).Once()

	fanout := NewFanout(time.Second, ok)
	fanout.Add(broken)
	assert.Equal(t, []string{"ok", "broken"}, fanout.Names())

	err := fanout.Notify(context.Background(), NewEvent(completedSnapshot(), ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: unreachable")
	ok.AssertExpectations(t)
	broken.AssertExpectations(t)
}

func TestFanoutWithoutNotifiers(t *testing.T) {
	assert.NoError(t, NewFanout(0).Notify(context.Background(), Event{}))
}

type fakeDapr struct {
	pubsub, topic string
	data          interface{}
}

func (f *fakeDapr) PublishEvent(ctx context.Context, pubsubName, topicName string, data interface{}, opts ...dapr.PublishEventOption) error {
	f.pubsub, f.topic, f.data = pubsubName, topicName, data
	return nil
}

type fakeKafka struct{ messages []*connectors.KafkaMessage }

func (f *fakeKafka) ProduceMessage(ctx context.Context, m *connectors.KafkaMessage) error {
	f.messages = append(f.messages, m)
	return nil
}

type fakeMQTT struct{ messages []*connectors.MQTTMessage }

func (f *fakeMQTT) Publish(m *connectors.MQTTMessage) error {
	f.messages = append(f.messages, m)
	return nil
}

type fakeRedis struct {
	mu       sync.Mutex
	channels []string
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, payload interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	return 1, nil
}

func TestChannelNotifiers(t *testing.T) {
	ev := NewEvent(completedSnapshot(), "")
	ctx := context.Background()

	d := &fakeDapr{}
	require.NoError(t, NewDaprNotifier(d, "pubsub", "processing-jobs").Notify(ctx, ev))
	assert.Equal(t, "pubsub", d.pubsub)
	assert.Equal(t, "processing-jobs", d.topic)
	assert.Equal(t, ev, d.data)

	k := &fakeKafka{}
	require.NoError(t, NewKafkaNotifier(k).Notify(ctx, ev))
	require.Len(t, k.messages, 1)
	assert.Equal(t, "job-1", k.messages[0].Key)
	assert.Equal(t, EventJobCompleted, k.messages[0].Headers["event_type"])

	m := &fakeMQTT{}
	require.NoError(t, NewMQTTNotifier(m, "processing/jobs/", 1).Notify(ctx, ev))
	require.Len(t, m.messages, 1)
	assert.Equal(t, "processing/jobs/job-1", m.messages[0].Topic)
	assert.Equal(t, byte(1), m.messages[0].QoS)

	r := &fakeRedis{}
	require.NoError(t, NewRedisNotifier(r, "processing:events").Notify(ctx, ev))
	assert.Equal(t, []string{"processing:events"}, r.channels)
}

func TestMQTTNotifierHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &fakeMQTT{}
	assert.ErrorIs(t, NewMQTTNotifier(m, "p", 0).Notify(ctx, Event{JobID: "x"}), context.Canceled)
	assert.Empty(t, m.messages)
}

func TestSSEBrokerFiltersByDataset(t *testing.T) {
	broker := NewSSEBroker()
	all := broker.Subscribe("")
	sales := broker.Subscribe("sales")
	other := broker.Subscribe("inventory")
	assert.Equal(t, 3, broker.Len())

	require.NoError(t, broker.Notify(context.Background(), NewEvent(completedSnapshot(), "")))
	assert.Len(t, all.Events, 1)
	assert.Len(t, sales.Events, 1)
	assert.Len(t, other.Events, 0)

	broker.Unsubscribe(sales.ID)
	broker.Unsubscribe(sales.ID)
	assert.Equal(t, 2, broker.Len())
	select {
	case <-sales.Done:
	default:
		t.Fatal("unsubscribed subscriber should be closed")
	}
}

func TestSSEBrokerDropsWhenFull(t *testing.T) {
	broker := NewSSEBroker()
	sub := broker.Subscribe("")
	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, broker.Notify(context.Background(), Event{JobID: "j", DatasetID: "d"}))
	}
	assert.Len(t, sub.Events, subscriberBuffer)
}

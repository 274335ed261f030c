/*
 * @module service/notify/channels
 * @description 各消息通道的作业事件通知实现：Dapr发布订阅、Kafka、MQTT、Redis
 * @architecture 适配器模式 - 将作业事件映射到各通道的消息格式
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 接收事件 -> 序列化 -> 通过连接器发布
 * @rules Kafka以job_id为消息键；MQTT主题为 <前缀>/<job_id>；Dapr以JSON内容类型发布
 * @dependencies github.com/dapr/go-sdk/client, processor-service/client/connectors
 * @refs service/notify/notifier.go, service/init.go
 */

package notify

import (
	"context"
	"fmt"
	"strings"

	dapr "github.com/dapr/go-sdk/client"

	"processor-service/client/connectors"
)

// EventPublisher Dapr客户端的发布能力
type EventPublisher interface {
	PublishEvent(ctx context.Context, pubsubName, topicName string, data interface{}, opts ...dapr.PublishEventOption) error
}

// DaprNotifier 通过Dapr sidecar发布订阅投递
type DaprNotifier struct {
	client     EventPublisher
	pubsubName string
	topic      string
}

// NewDaprNotifier 创建Dapr通知通道
func NewDaprNotifier(client EventPublisher, pubsubName, topic string) *DaprNotifier {
	return &DaprNotifier{client: client, pubsubName: pubsubName, topic: topic}
}

func (n *DaprNotifier) Name() string { return "dapr" }

func (n *DaprNotifier) Notify(ctx context.Context, ev Event) error {
	if err := n.client.PublishEvent(ctx, n.pubsubName, n.topic, ev,
		dapr.PublishEventWithContentType("application/json")); err != nil {
		return fmt.Errorf("dapr发布事件失败: %w", err)
	}
	return nil
}

// KafkaProducer Kafka连接器的发送能力
type KafkaProducer interface {
	ProduceMessage(ctx context.Context, message *connectors.KafkaMessage) error
}

// KafkaNotifier 通过Kafka投递
type KafkaNotifier struct {
	producer KafkaProducer
}

// NewKafkaNotifier 创建Kafka通知通道
func NewKafkaNotifier(producer KafkaProducer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (n *KafkaNotifier) Name() string { return "kafka" }

func (n *KafkaNotifier) Notify(ctx context.Context, ev Event) error {
	return n.producer.ProduceMessage(ctx, &connectors.KafkaMessage{
		Key:       ev.JobID,
		Value:     ev,
		Headers:   map[string]string{"event_type": ev.Type, "dataset_id": ev.DatasetID},
		Timestamp: ev.OccurredAt,
	})
}

// MQTTPublisher MQTT连接器的发布能力
type MQTTPublisher interface {
	Publish(message *connectors.MQTTMessage) error
}

// MQTTNotifier 通过MQTT投递
type MQTTNotifier struct {
	publisher   MQTTPublisher
	topicPrefix string
	qos         byte
}

// NewMQTTNotifier 创建MQTT通知通道
func NewMQTTNotifier(publisher MQTTPublisher, topicPrefix string, qos byte) *MQTTNotifier {
	return &MQTTNotifier{publisher: publisher, topicPrefix: strings.TrimRight(topicPrefix, "/"), qos: qos}
}

func (n *MQTTNotifier) Name() string { return "mqtt" }

func (n *MQTTNotifier) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.publisher.Publish(&connectors.MQTTMessage{
		Topic:   n.topicPrefix + "/" + ev.JobID,
		Payload: ev,
		QoS:     n.qos,
	})
}

// RedisPublisher Redis连接器的发布能力
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) (int64, error)
}

// RedisNotifier 通过Redis发布订阅投递
type RedisNotifier struct {
	publisher RedisPublisher
	channel   string
}

// NewRedisNotifier 创建Redis通知通道
func NewRedisNotifier(publisher RedisPublisher, channel string) *RedisNotifier {
	return &RedisNotifier{publisher: publisher, channel: channel}
}

func (n *RedisNotifier) Name() string { return "redis" }

func (n *RedisNotifier) Notify(ctx context.Context, ev Event) error {
	_, err := n.publisher.Publish(ctx, n.channel, ev)
	return err
}

/*
 * @module client/connectors/kafka_connector
 * @description Kafka连接器，封装生产者用于发布处理作业事件
 * @architecture 适配器模式 - 封装第三方Kafka客户端，提供统一的接口
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 连接建立 -> 消息发送 -> 连接断开
 * @rules 每个连接器绑定一个主题；消息值按[]byte、string、JSON顺序序列化；发送带超时
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/notify/channels.go
 */
package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrNotConnected 连接器尚未建立连接
var ErrNotConnected = errors.New("connector not connected")

// KafkaConfig Kafka生产者配置
type KafkaConfig struct {
	Brokers       []string          `json:"brokers"`        // Kafka broker地址列表
	Topic         string            `json:"topic"`          // 发布主题
	RequiredAcks  int               `json:"required_acks"`  // 确认级别，-1表示全部副本
	BatchTimeout  time.Duration     `json:"batch_timeout"`  // 批量发送等待时间
	WriteTimeout  time.Duration     `json:"write_timeout"`  // 单次发送超时
	CustomHeaders map[string]string `json:"custom_headers"` // 自定义消息头
}

// KafkaMessage Kafka消息
type KafkaMessage struct {
	Key       string            `json:"key"`
	Value     interface{}       `json:"value"`
	Headers   map[string]string `json:"headers"`
	Timestamp time.Time         `json:"timestamp"`
}

// messageWriter kafka.Writer 的最小接口
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConnector Kafka连接器结构体
type KafkaConnector struct {
	config      *KafkaConfig
	writer      messageWriter
	newWriter   func(*KafkaConfig) messageWriter
	mutex       sync.RWMutex
	logger      *slog.Logger
	isConnected bool
	sent        int64
}

// NewKafkaConnector 创建新的Kafka连接器
func NewKafkaConnector(config *KafkaConfig) *KafkaConnector {
	return &KafkaConnector{
		config:    config,
		newWriter: newKafkaWriter,
		logger:    slog.Default().With("connector", "kafka", "topic", config.Topic),
	}
}

func newKafkaWriter(config *KafkaConfig) messageWriter {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Topic:                  config.Topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequiredAcks(config.RequiredAcks),
		AllowAutoTopicCreation: true,
	}
	if config.BatchTimeout > 0 {
		writer.BatchTimeout = config.BatchTimeout
	}
	return writer
}

// Connect 建立Kafka连接
func (kc *KafkaConnector) Connect() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if kc.isConnected {
		return nil
	}
	if len(kc.config.Brokers) == 0 || kc.config.Topic == "" {
		return fmt.Errorf("kafka配置不完整: brokers=%v topic=%q", kc.config.Brokers, kc.config.Topic)
	}

	kc.writer = kc.newWriter(kc.config)
	kc.isConnected = true
	kc.logger.Info("Kafka连接器已连接", "brokers", kc.config.Brokers)
	return nil
}

// Disconnect 断开Kafka连接
func (kc *KafkaConnector) Disconnect() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if !kc.isConnected {
		return nil
	}
	err := kc.writer.Close()
	kc.isConnected = false
	kc.writer = nil
	if err != nil {
		return fmt.Errorf("关闭生产者失败: %w", err)
	}
	kc.logger.Info("Kafka连接器已断开连接")
	return nil
}

// ProduceMessage 发送消息
func (kc *KafkaConnector) ProduceMessage(ctx context.Context, message *KafkaMessage) error {
	kc.mutex.RLock()
	writer, connected := kc.writer, kc.isConnected
	kc.mutex.RUnlock()

	if !connected {
		return fmt.Errorf("kafka %w", ErrNotConnected)
	}

	valueBytes, err := serializePayload(message.Value)
	if err != nil {
		return fmt.Errorf("序列化消息值失败: %w", err)
	}

	kafkaMsg := kafka.Message{
		Key:   []byte(message.Key),
		Value: valueBytes,
		Time:  message.Timestamp,
	}
	for key, value := range message.Headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	for key, value := range kc.config.CustomHeaders {
		kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	if kc.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, kc.config.WriteTimeout)
		defer cancel()
	}
	if err := writer.WriteMessages(ctx, kafkaMsg); err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}

	kc.mutex.Lock()
	kc.sent++
	kc.mutex.Unlock()
	kc.logger.Debug("消息已发送", "key", message.Key)
	return nil
}

// IsConnected 检查连接状态
func (kc *KafkaConnector) IsConnected() bool {
	kc.mutex.RLock()
	defer kc.mutex.RUnlock()
	return kc.isConnected
}

// GetStatistics 获取连接器统计信息
func (kc *KafkaConnector) GetStatistics() map[string]interface{} {
	kc.mutex.RLock()
	defer kc.mutex.RUnlock()

	return map[string]interface{}{
		"connected":     kc.isConnected,
		"topic":         kc.config.Topic,
		"brokers":       kc.config.Brokers,
		"messages_sent": kc.sent,
	}
}

// serializePayload 序列化消息载荷
func serializePayload(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

/*
 * @module client/connectors/mqtt_connector
 * @description MQTT连接器，封装paho客户端用于发布处理作业事件
 * @architecture 适配器模式 - 封装第三方MQTT客户端，提供统一的接口
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 连接建立 -> 主题发布 -> 连接断开
 * @rules 支持自动重连、QoS控制、保留消息；连接丢失时记录最后错误
 * @dependencies github.com/eclipse/paho.mqtt.golang
 * @refs service/notify/channels.go
 */
package connectors

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig MQTT连接配置
type MQTTConfig struct {
	Broker         string        `json:"broker"`          // MQTT broker地址
	ClientID       string        `json:"client_id"`       // 客户端ID
	Username       string        `json:"username"`        // 用户名
	Password       string        `json:"password"`        // 密码
	CleanSession   bool          `json:"clean_session"`   // 清理会话
	KeepAlive      time.Duration `json:"keep_alive"`      // 保持连接时间
	ConnectTimeout time.Duration `json:"connect_timeout"` // 连接与发布等待时间
}

// MQTTMessage MQTT消息
type MQTTMessage struct {
	Topic    string      `json:"topic"`
	Payload  interface{} `json:"payload"`
	QoS      byte        `json:"qos"`
	Retained bool        `json:"retained"`
}

// MQTTStats MQTT连接器统计信息
type MQTTStats struct {
	ConnectedAt    time.Time `json:"connected_at"`    // 连接时间
	MessagesSent   int64     `json:"messages_sent"`   // 发送消息数
	BytesSent      int64     `json:"bytes_sent"`      // 发送字节数
	ReconnectCount int       `json:"reconnect_count"` // 重连次数
	LastError      string    `json:"last_error"`      // 最后错误信息
}

// MQTTConnector MQTT连接器结构体
type MQTTConnector struct {
	config      *MQTTConfig
	client      mqtt.Client
	logger      *slog.Logger
	mutex       sync.RWMutex
	isConnected bool
	stats       MQTTStats
}

// NewMQTTConnector 创建新的MQTT连接器
func NewMQTTConnector(config *MQTTConfig) *MQTTConnector {
	connector := &MQTTConnector{
		config: config,
		logger: slog.Default().With("connector", "mqtt", "broker", config.Broker),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetCleanSession(config.CleanSession)
	if config.KeepAlive > 0 {
		opts.SetKeepAlive(config.KeepAlive)
	}
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(connector.onConnected)
	opts.SetConnectionLostHandler(connector.onConnectionLost)

	connector.client = mqtt.NewClient(opts)
	return connector
}

// Connect 建立MQTT连接
func (mc *MQTTConnector) Connect() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if mc.isConnected {
		return nil
	}

	token := mc.client.Connect()
	if !mc.wait(token) {
		mc.stats.LastError = "MQTT连接超时"
		return fmt.Errorf("MQTT连接超时: %s", mc.config.Broker)
	}
	if err := token.Error(); err != nil {
		mc.stats.LastError = err.Error()
		return fmt.Errorf("MQTT连接失败: %w", err)
	}

	mc.isConnected = true
	mc.stats.ConnectedAt = time.Now()
	mc.logger.Info("MQTT连接器已连接")
	return nil
}

// Disconnect 断开MQTT连接
func (mc *MQTTConnector) Disconnect() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if !mc.isConnected {
		return nil
	}
	mc.client.Disconnect(250) // 等待250ms让消息发送完成
	mc.isConnected = false
	mc.logger.Info("MQTT连接器已断开连接")
	return nil
}

// Publish 发布消息
func (mc *MQTTConnector) Publish(message *MQTTMessage) error {
	mc.mutex.RLock()
	connected := mc.isConnected
	mc.mutex.RUnlock()

	if !connected {
		return fmt.Errorf("mqtt %w", ErrNotConnected)
	}

	payload, err := serializePayload(message.Payload)
	if err != nil {
		return fmt.Errorf("序列化消息载荷失败: %w", err)
	}

	token := mc.client.Publish(message.Topic, message.QoS, message.Retained, payload)
	if !mc.wait(token) {
		mc.updateError("发布消息超时")
		return fmt.Errorf("发布消息超时: %s", message.Topic)
	}
	if err := token.Error(); err != nil {
		mc.updateError(err.Error())
		return fmt.Errorf("发布消息失败: %w", err)
	}

	mc.mutex.Lock()
	mc.stats.MessagesSent++
	mc.stats.BytesSent += int64(len(payload))
	mc.mutex.Unlock()

	mc.logger.Debug("消息已发布", "topic", message.Topic, "qos", message.QoS, "retained", message.Retained)
	return nil
}

func (mc *MQTTConnector) wait(token mqtt.Token) bool {
	if mc.config.ConnectTimeout > 0 {
		return token.WaitTimeout(mc.config.ConnectTimeout)
	}
	return token.Wait()
}

// onConnected 连接建立处理器
func (mc *MQTTConnector) onConnected(client mqtt.Client) {
	mc.mutex.Lock()
	mc.isConnected = true
	mc.stats.ConnectedAt = time.Now()
	mc.mutex.Unlock()
	mc.logger.Info("MQTT连接已建立")
}

// onConnectionLost 连接丢失处理器
func (mc *MQTTConnector) onConnectionLost(client mqtt.Client, err error) {
	mc.mutex.Lock()
	mc.isConnected = false
	mc.stats.ReconnectCount++
	mc.stats.LastError = fmt.Sprintf("MQTT连接丢失: %v", err)
	mc.mutex.Unlock()
	mc.logger.Warn("MQTT连接丢失", "error", err)
}

func (mc *MQTTConnector) updateError(msg string) {
	mc.mutex.Lock()
	mc.stats.LastError = msg
	mc.mutex.Unlock()
}

// IsConnected 检查连接状态
func (mc *MQTTConnector) IsConnected() bool {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return mc.isConnected
}

// GetStatistics 获取连接器统计信息
func (mc *MQTTConnector) GetStatistics() MQTTStats {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return mc.stats
}

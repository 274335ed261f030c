/*
 * @module client/connectors/redis_connector
 * @description Redis连接器，提供共享客户端与发布订阅发布能力
 * @architecture 适配器模式 - 封装第三方Redis客户端，提供统一的接口
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 连接建立(Ping) -> 发布消息/提供客户端给分布式锁 -> 连接断开
 * @rules 连接池参数来自配置；发布前必须连接成功
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/notify/channels.go, service/rate_limiter/redis_rate_limiter.go, service/distributed_lock/redis_lock.go
 */
package connectors

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig Redis配置信息
type RedisConfig struct {
	Address      string        `json:"address"`        // Redis地址
	Password     string        `json:"password"`       // 密码
	Database     int           `json:"database"`       // 数据库编号
	PoolSize     int           `json:"pool_size"`      // 连接池大小
	MinIdleConns int           `json:"min_idle_conns"` // 最小空闲连接数
	DialTimeout  time.Duration `json:"dial_timeout"`   // 连接超时时间
	ReadTimeout  time.Duration `json:"read_timeout"`   // 读取超时时间
	WriteTimeout time.Duration `json:"write_timeout"`  // 写入超时时间
}

// RedisConnector Redis连接器结构体
type RedisConnector struct {
	config      *RedisConfig
	client      *redis.Client
	logger      *slog.Logger
	mutex       sync.RWMutex
	isConnected bool
}

// NewRedisConnector 创建新的Redis连接器
func NewRedisConnector(config *RedisConfig) *RedisConnector {
	return &RedisConnector{
		config: config,
		client: redis.NewClient(&redis.Options{
			Addr:         config.Address,
			Password:     config.Password,
			DB:           config.Database,
			PoolSize:     config.PoolSize,
			MinIdleConns: config.MinIdleConns,
			DialTimeout:  config.DialTimeout,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		}),
		logger: slog.Default().With("connector", "redis", "address", config.Address),
	}
}

// Connect 建立连接并验证可达
func (rc *RedisConnector) Connect(ctx context.Context) error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if rc.isConnected {
		return nil
	}
	if err := rc.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis连接失败: %w", err)
	}
	rc.isConnected = true
	rc.logger.Info("Redis连接器已连接", "db", rc.config.Database)
	return nil
}

// Publish 向频道发布消息，返回收到消息的订阅者数量
func (rc *RedisConnector) Publish(ctx context.Context, channel string, payload interface{}) (int64, error) {
	if !rc.IsConnected() {
		return 0, fmt.Errorf("redis %w", ErrNotConnected)
	}
	data, err := serializePayload(payload)
	if err != nil {
		return 0, fmt.Errorf("序列化消息载荷失败: %w", err)
	}
	receivers, err := rc.client.Publish(ctx, channel, data).Result()
	if err != nil {
		return 0, fmt.Errorf("发布消息失败: %w", err)
	}
	rc.logger.Debug("消息已发布", "channel", channel, "receivers", receivers)
	return receivers, nil
}

// Client 返回底层客户端
func (rc *RedisConnector) Client() *redis.Client {
	return rc.client
}

// IsConnected 检查连接状态
func (rc *RedisConnector) IsConnected() bool {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()
	return rc.isConnected
}

// Disconnect 关闭客户端
func (rc *RedisConnector) Disconnect() error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	rc.isConnected = false
	if err := rc.client.Close(); err != nil {
		return fmt.Errorf("关闭Redis客户端失败: %w", err)
	}
	return nil
}

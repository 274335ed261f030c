/*
 * @module service/config/config_manager
 * @description 配置管理器，从环境变量加载服务配置，并可从YAML文件覆盖流水线默认参数
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 环境变量 -> 默认值填充 -> YAML覆盖流水线默认值 -> 结构校验 -> 流水线语义校验
 * @rules 未设置的环境变量使用默认值；无法解析的数值按默认值处理并记录警告；
 *        校验失败时拒绝启动
 * @dependencies github.com/spf13/cast, gopkg.in/yaml.v3, github.com/go-playground/validator/v10
 * @refs service/init.go, service/preprocess/options.go
 */

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"processor-service/service/preprocess"
)

// Config 服务配置
type Config struct {
	ListenPort        int                `json:"listen_port" validate:"min=1,max=65535"`
	BaseContext       string             `json:"base_context"`
	LogLevel          string             `json:"log_level" validate:"oneof=debug info warn error"`
	Database          DatabaseConfig     `json:"database"`
	UploadFolder      string             `json:"upload_folder" validate:"required"`
	ProcessedFolder   string             `json:"processed_folder" validate:"required"`
	MaxUploadBytes    int64              `json:"max_upload_bytes" validate:"min=0"`
	MaxDatasetRows    int                `json:"max_dataset_rows" validate:"min=0"`
	MaxConcurrentJobs int                `json:"max_concurrent_jobs" validate:"min=1,max=256"`
	JobRetention      time.Duration      `json:"job_retention"`
	StaleJobAfter     time.Duration      `json:"stale_job_after"`
	CleanupSchedule   string             `json:"cleanup_schedule" validate:"required"`
	LockTTL           time.Duration      `json:"lock_ttl"`
	Notifiers         []string           `json:"notifiers" validate:"dive,oneof=dapr kafka mqtt redis sse"`
	NotifyTimeout     time.Duration      `json:"notify_timeout"`
	RateLimit         RateLimitConfig    `json:"rate_limit"`
	Redis             RedisConfig        `json:"redis"`
	Kafka             KafkaConfig        `json:"kafka"`
	MQTT              MQTTConfig         `json:"mqtt"`
	Dapr              DaprConfig         `json:"dapr"`
	DefaultsFile      string             `json:"defaults_file,omitempty"`
	Pipeline          preprocess.Options `json:"pipeline"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	URL      string `json:"-"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	Name     string `json:"name"`
	SSLMode  string `json:"ssl_mode"`
	Schema   string `json:"schema"`
}

// DSN 返回Postgres连接串，优先使用DATABASE_URL
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Schema)
}

// RedisConfig Redis配置，Host为空时不启用Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"-"`
	DB       int    `json:"db" validate:"min=0"`
	Channel  string `json:"channel"`
}

// Address 返回host:port
func (r RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}

// KafkaConfig Kafka通知配置
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// MQTTConfig MQTT通知配置
type MQTTConfig struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"-"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos" validate:"max=2"`
}

// RateLimitConfig 作业提交限流配置，上限为0表示不限制
type RateLimitConfig struct {
	PerClient int           `json:"per_client" validate:"min=0"`
	Global    int           `json:"global" validate:"min=0"`
	Window    time.Duration `json:"window" validate:"min=1s"`
}

// Enabled 是否配置了任一限流规则
func (r RateLimitConfig) Enabled() bool {
	return r.PerClient > 0 || r.Global > 0
}

// DaprConfig Dapr发布订阅配置
type DaprConfig struct {
	PubsubName string `json:"pubsub_name"`
	Topic      string `json:"topic"`
}

// Enabled 判断通知通道是否启用
func (c *Config) Enabled(notifier string) bool {
	for _, n := range c.Notifiers {
		if n == notifier {
			return true
		}
	}
	return false
}

// Load 从进程环境变量加载配置
func Load() (*Config, error) {
	return LoadFromEnv(os.Getenv)
}

// LoadFromEnv 使用给定的环境变量读取函数加载配置
func LoadFromEnv(getenv func(string) string) (*Config, error) {
	env := envReader{getenv: getenv}

	cfg := &Config{
		ListenPort:  env.int("LISTEN_PORT", 80),
		BaseContext: env.str("BASE_CONTEXT", ""),
		LogLevel:    strings.ToLower(env.str("LOG_LEVEL", "info")),
		Database: DatabaseConfig{
			URL:      env.str("DATABASE_URL", ""),
			Host:     env.str("DB_HOST", "localhost"),
			Port:     env.str("DB_PORT", "5432"),
			User:     env.str("DB_USER", "postgres"),
			Password: env.str("DB_PASSWORD", ""),
			Name:     env.str("DB_NAME", "postgres"),
			SSLMode:  env.str("DB_SSLMODE", "disable"),
			Schema:   env.str("DB_SCHEMA", "public"),
		},
		UploadFolder:      env.str("UPLOAD_FOLDER", "uploads"),
		ProcessedFolder:   env.str("PROCESSED_FOLDER", "processed"),
		MaxUploadBytes:    env.int64("MAX_UPLOAD_BYTES", 512<<20),
		MaxDatasetRows:    env.int("MAX_DATASET_ROWS", 0),
		MaxConcurrentJobs: env.int("MAX_CONCURRENT_JOBS", 4),
		JobRetention:      env.duration("JOB_RETENTION", 72*time.Hour),
		StaleJobAfter:     env.duration("STALE_JOB_AFTER", time.Hour),
		CleanupSchedule:   env.str("CLEANUP_SCHEDULE", "@every 1h"),
		LockTTL:           env.duration("JOB_LOCK_TTL", 15*time.Minute),
		Notifiers:         lower(env.list("NOTIFIERS")),
		NotifyTimeout:     env.duration("NOTIFY_TIMEOUT", 5*time.Second),
		RateLimit: RateLimitConfig{
			PerClient: env.int("SUBMIT_RATE_LIMIT", 0),
			Global:    env.int("SUBMIT_GLOBAL_RATE_LIMIT", 0),
			Window:    env.duration("SUBMIT_RATE_WINDOW", time.Minute),
		},
		Redis: RedisConfig{
			Host:     env.str("REDIS_HOST", ""),
			Port:     env.str("REDIS_PORT", "6379"),
			Password: env.str("REDIS_PASSWORD", ""),
			DB:       env.int("REDIS_DB", 0),
			Channel:  env.str("REDIS_CHANNEL", "processing:events"),
		},
		Kafka: KafkaConfig{
			Brokers: env.list("KAFKA_BROKERS"),
			Topic:   env.str("KAFKA_TOPIC", "processing.jobs"),
		},
		MQTT: MQTTConfig{
			Broker:   env.str("MQTT_BROKER", ""),
			ClientID: env.str("MQTT_CLIENT_ID", "processor-service"),
			Username: env.str("MQTT_USERNAME", ""),
			Password: env.str("MQTT_PASSWORD", ""),
			Topic:    env.str("MQTT_TOPIC", "processing/jobs"),
			QoS:      byte(env.int("MQTT_QOS", 1)),
		},
		Dapr: DaprConfig{
			PubsubName: env.str("DAPR_PUBSUB_NAME", "pubsub"),
			Topic:      env.str("DAPR_TOPIC", "processing-jobs"),
		},
		DefaultsFile: env.str("PIPELINE_DEFAULTS_FILE", ""),
	}

	cfg.Pipeline = preprocess.DefaultOptions()
	if cfg.DefaultsFile != "" {
		defaults, err := LoadPipelineDefaults(cfg.DefaultsFile, cfg.Pipeline)
		if err != nil {
			return nil, err
		}
		cfg.Pipeline = defaults
	}
	applyPipelineEnv(&cfg.Pipeline, env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyPipelineEnv 环境变量优先于YAML默认值
func applyPipelineEnv(opts *preprocess.Options, env envReader) {
	opts.MinRows = env.int("MIN_TRAINING_ROWS", opts.MinRows)
	opts.Timeout = env.duration("PIPELINE_TIMEOUT", opts.Timeout)
	opts.Seed = env.int64("RANDOM_SEED", opts.Seed)
	opts.Validation.Folds = env.int("CV_FOLDS", opts.Validation.Folds)
	opts.Validation.Tolerance = env.float("MAX_PERFORMANCE_DROP", opts.Validation.Tolerance)
	opts.Selection.CorrelationThreshold = env.float("CORRELATION_THRESHOLD", opts.Selection.CorrelationThreshold)
}

// LoadPipelineDefaults 读取YAML文件覆盖流水线默认参数，文件中未出现的字段保持base的取值
func LoadPipelineDefaults(path string, base preprocess.Options) (preprocess.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("读取流水线默认配置失败: %w", err)
	}
	opts := base
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return base, fmt.Errorf("解析流水线默认配置失败: %w", err)
	}
	return opts, nil
}

var validate = validator.New()

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s(%s=%s)", fe.Namespace(), fe.Tag(), fe.Param())
			}
			return fmt.Errorf("配置校验失败: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if c.Enabled("kafka") && len(c.Kafka.Brokers) == 0 {
		return errors.New("配置校验失败: 启用kafka通知时必须设置KAFKA_BROKERS")
	}
	if c.Enabled("mqtt") && c.MQTT.Broker == "" {
		return errors.New("配置校验失败: 启用mqtt通知时必须设置MQTT_BROKER")
	}
	if c.Enabled("redis") && c.Redis.Host == "" {
		return errors.New("配置校验失败: 启用redis通知时必须设置REDIS_HOST")
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("流水线默认配置无效: %w", err)
	}
	return nil
}

// envReader 读取并转换环境变量
type envReader struct {
	getenv func(string) string
}

// str 获取环境变量，如果不存在则返回默认值
func (e envReader) str(key, defaultValue string) string {
	if value := strings.TrimSpace(e.getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) int(key string, defaultValue int) int {
	raw := e.getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := cast.ToIntE(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("环境变量不是有效整数，使用默认值", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}

func (e envReader) int64(key string, defaultValue int64) int64 {
	raw := e.getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := cast.ToInt64E(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("环境变量不是有效整数，使用默认值", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}

func (e envReader) float(key string, defaultValue float64) float64 {
	raw := e.getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := cast.ToFloat64E(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("环境变量不是有效数值，使用默认值", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}

// duration 支持 "10m" 形式，纯数字按秒处理
func (e envReader) duration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return defaultValue
	}
	if secs, err := cast.ToInt64E(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := cast.ToDurationE(raw)
	if err != nil {
		slog.Warn("环境变量不是有效时长，使用默认值", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}

// list 逗号分隔列表，忽略空项
func (e envReader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(e.getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lower(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToLower(v)
	}
	return values
}

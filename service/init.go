/*
 * @module service/init
 * @description 服务初始化模块，负责配置加载、数据库连接、通知通道与作业服务的装配
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 加载配置 -> 日志 -> 数据库与迁移 -> 可选依赖(Redis/Kafka/MQTT/Dapr) -> 作业服务 -> 清理任务
 * @rules 数据库与配置失败时直接退出；可选通知通道连接失败只记录警告，不影响作业执行
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres, github.com/dapr/go-sdk/client, github.com/prometheus/client_golang
 * @refs main.go, api/routes.go
 */

package service

import (
	"context"
	"log"
	"log/slog"
	"time"

	dapr "github.com/dapr/go-sdk/client"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"processor-service/client/connectors"
	"processor-service/logger"
	"processor-service/service/cleanup"
	"processor-service/service/config"
	"processor-service/service/distributed_lock"
	"processor-service/service/monitoring"
	"processor-service/service/notify"
	"processor-service/service/pipeline"
	"processor-service/service/processing"
	"processor-service/service/rate_limiter"
	"processor-service/service/store"
)

var (
	DB                       *gorm.DB
	GlobalConfig             *config.Config
	GlobalConfigService      *config.ConfigService
	GlobalRegistry           *pipeline.Registry
	GlobalProcessingService  *processing.ProcessingService
	GlobalCleanupService     *cleanup.JobCleanupService
	GlobalSSEBroker          *notify.SSEBroker
	GlobalMetricsCollector   *monitoring.MetricsCollector
	GlobalHealthChecker      *monitoring.HealthChecker
	GlobalSubmitLimiter      *rate_limiter.RateLimiter
	GlobalRedisConnector     *connectors.RedisConnector
	globalKafkaConnector     *connectors.KafkaConnector
	globalMQTTConnector      *connectors.MQTTConnector
	globalDaprClient         dapr.Client
	globalPipelineMetrics    *monitoring.PipelineMetrics
	globalDistributedLocking distributed_lock.DistributedLock
)

func init() {
	initConfig()
	initDatabase()
	runMigrations()
	initServices()
}

// initConfig 加载配置并初始化日志
func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}
	logger.InitLogger(cfg.LogLevel)
	GlobalConfig = cfg
	GlobalConfigService = config.NewConfigService(cfg)
	slog.Info("配置加载完成", "notifiers", cfg.Notifiers, "max_concurrent_jobs", cfg.MaxConcurrentJobs)
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var err error
	DB, err = gorm.Open(postgres.Open(GlobalConfig.Database.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	slog.Info("数据库连接成功", "host", GlobalConfig.Database.Host, "schema", GlobalConfig.Database.Schema)
}

// runMigrations 运行数据库迁移
func runMigrations() {
	if err := store.NewGormJobStore(DB).AutoMigrate(); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	slog.Info("数据库表结构迁移完成")
}

// initServices 初始化服务
func initServices() {
	cfg := GlobalConfig
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	GlobalHealthChecker = monitoring.NewHealthChecker(DB, 3*time.Second)
	GlobalHealthChecker.AddDirectory("upload_folder", cfg.UploadFolder)
	GlobalHealthChecker.AddDirectory("processed_folder", cfg.ProcessedFolder)

	initRedis(ctx)
	fanout := initNotifiers()

	globalPipelineMetrics = monitoring.NewPipelineMetrics(prometheus.DefaultRegisterer)
	GlobalMetricsCollector = monitoring.NewMetricsCollector(DB)
	GlobalRegistry = pipeline.NewRegistry()

	jobs := store.NewGormJobStore(DB)
	deps := processing.Dependencies{
		Datasets:      store.NewFileDatasetStore(cfg.UploadFolder, cfg.ProcessedFolder, cfg.MaxUploadBytes, cfg.MaxDatasetRows),
		Jobs:          jobs,
		Notifier:      fanout,
		Observer:      globalPipelineMetrics,
		LockTTL:       cfg.LockTTL,
		MaxConcurrent: cfg.MaxConcurrentJobs,
	}
	var locker *distributed_lock.LockExecutor
	if globalDistributedLocking != nil {
		deps.Lock = globalDistributedLocking
		locker = distributed_lock.NewLockExecutor(globalDistributedLocking)
	}
	GlobalProcessingService = processing.NewProcessingService(GlobalRegistry, deps)

	GlobalCleanupService = cleanup.NewJobCleanupService(GlobalRegistry, jobs, GlobalProcessingService.ActiveJobs, locker,
		cleanup.Options{
			Retention:  cfg.JobRetention,
			StaleAfter: cfg.StaleJobAfter,
			Schedule:   cfg.CleanupSchedule,
			LockTTL:    time.Minute,
		})
	if err := GlobalCleanupService.StartScheduledCleanup(); err != nil {
		slog.Error("启动作业清理任务失败", "error", err)
	}
	initRateLimiter()
	slog.Info("服务初始化完成", "notifiers", fanout.Names())
}

// initRedis 配置了REDIS_HOST时连接Redis，供分布式锁与通知使用
func initRedis(ctx context.Context) {
	cfg := GlobalConfig.Redis
	if cfg.Host == "" {
		return
	}
	conn := connectors.NewRedisConnector(&connectors.RedisConfig{
		Address:     cfg.Address(),
		Password:    cfg.Password,
		Database:    cfg.DB,
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	})
	if err := conn.Connect(ctx); err != nil {
		slog.Warn("Redis不可用，作业将不使用分布式锁", "address", cfg.Address(), "error", err)
		return
	}
	GlobalRedisConnector = conn
	globalDistributedLocking = distributed_lock.NewRedisLock(conn.Client(), "")
	GlobalHealthChecker.AddDependency("redis", monitoring.PingFunc(func(ctx context.Context) error {
		return conn.Client().Ping(ctx).Err()
	}))
}

// initRateLimiter 配置了提交限流时创建限流器，Redis可用时多实例共享计数
func initRateLimiter() {
	cfg := GlobalConfig.RateLimit
	if !cfg.Enabled() {
		return
	}
	var counter rate_limiter.Counter = rate_limiter.NewMemoryCounter()
	if GlobalRedisConnector != nil {
		counter = rate_limiter.NewRedisCounter(GlobalRedisConnector.Client())
	}
	GlobalSubmitLimiter = rate_limiter.NewRateLimiter(counter,
		rate_limiter.RateLimitRule{Scope: rate_limiter.ScopeClient, Window: cfg.Window, MaxRequests: cfg.PerClient},
		rate_limiter.RateLimitRule{Scope: rate_limiter.ScopeGlobal, Window: cfg.Window, MaxRequests: cfg.Global},
	)
	slog.Info("作业提交限流已启用", "per_client", cfg.PerClient, "global", cfg.Global, "window", cfg.Window)
}

// initNotifiers 按NOTIFIERS装配作业终态通知通道
func initNotifiers() *notify.Fanout {
	cfg := GlobalConfig
	fanout := notify.NewFanout(cfg.NotifyTimeout)

	if cfg.Enabled("sse") {
		GlobalSSEBroker = notify.NewSSEBroker()
		fanout.Add(GlobalSSEBroker)
	}

	if cfg.Enabled("redis") {
		if GlobalRedisConnector != nil {
			fanout.Add(notify.NewRedisNotifier(GlobalRedisConnector, cfg.Redis.Channel))
		} else {
			slog.Warn("Redis通知已启用但Redis未连接，跳过")
		}
	}

	if cfg.Enabled("kafka") {
		conn := connectors.NewKafkaConnector(&connectors.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			RequiredAcks: -1,
			WriteTimeout: cfg.NotifyTimeout,
		})
		if err := conn.Connect(); err != nil {
			slog.Warn("Kafka连接失败，跳过Kafka通知", "brokers", cfg.Kafka.Brokers, "error", err)
		} else {
			globalKafkaConnector = conn
			fanout.Add(notify.NewKafkaNotifier(conn))
		}
	}

	if cfg.Enabled("mqtt") {
		conn := connectors.NewMQTTConnector(&connectors.MQTTConfig{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientID,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			CleanSession:   true,
			KeepAlive:      30 * time.Second,
			ConnectTimeout: cfg.NotifyTimeout,
		})
		if err := conn.Connect(); err != nil {
			slog.Warn("MQTT连接失败，跳过MQTT通知", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			globalMQTTConnector = conn
			fanout.Add(notify.NewMQTTNotifier(conn, cfg.MQTT.Topic, cfg.MQTT.QoS))
		}
	}

	if cfg.Enabled("dapr") {
		client, err := dapr.NewClient()
		if err != nil {
			slog.Warn("Dapr客户端创建失败，跳过Dapr通知", "error", err)
		} else {
			globalDaprClient = client
			fanout.Add(notify.NewDaprNotifier(client, cfg.Dapr.PubsubName, cfg.Dapr.Topic))
		}
	}
	return fanout
}

// Shutdown 停止清理任务，取消运行中的作业并关闭外部连接
func Shutdown(ctx context.Context) error {
	if GlobalCleanupService != nil {
		GlobalCleanupService.StopScheduledCleanup()
	}
	var err error
	if GlobalProcessingService != nil {
		err = GlobalProcessingService.Shutdown(ctx)
	}
	if globalKafkaConnector != nil {
		globalKafkaConnector.Disconnect()
	}
	if globalMQTTConnector != nil {
		globalMQTTConnector.Disconnect()
	}
	if GlobalRedisConnector != nil {
		GlobalRedisConnector.Disconnect()
	}
	if globalDaprClient != nil {
		globalDaprClient.Close()
	}
	slog.Info("服务已停止")
	return err
}

/*
 * @module service/config/config_service
 * @description 配置服务，以键值列表形式对外提供当前生效的配置
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 服务调用 -> 读取已加载的配置 -> 转换为配置项
 * @rules 密码类配置不对外暴露；配置只读，修改需通过环境变量并重启
 * @dependencies github.com/spf13/cast
 * @refs service/config/config_manager.go, api/controllers/config_controller.go
 */

package config

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// ErrConfigKeyNotFound 配置项不存在
var ErrConfigKeyNotFound = errors.New("config key not found")

// ConfigItem 配置项
type ConfigItem struct {
	Key         string `json:"key" example:"MAX_CONCURRENT_JOBS"`
	Value       string `json:"value" example:"4"`
	Description string `json:"description" example:"同时执行的处理作业上限"`
	ValueType   string `json:"value_type" example:"int"`
}

// ConfigService 配置服务
type ConfigService struct {
	cfg *Config
}

// NewConfigService 创建配置服务实例
func NewConfigService(cfg *Config) *ConfigService {
	return &ConfigService{cfg: cfg}
}

// Config 返回已加载的配置
func (s *ConfigService) Config() *Config {
	return s.cfg
}

// GetAllSystemConfigs 获取全部配置项，按键排序
func (s *ConfigService) GetAllSystemConfigs() []ConfigItem {
	c := s.cfg
	items := []ConfigItem{
		{"LISTEN_PORT", cast.ToString(c.ListenPort), "监听端口", "int"},
		{"BASE_CONTEXT", c.BaseContext, "路由前缀", "string"},
		{"LOG_LEVEL", c.LogLevel, "日志级别", "string"},
		{"UPLOAD_FOLDER", c.UploadFolder, "上传数据集目录", "string"},
		{"PROCESSED_FOLDER", c.ProcessedFolder, "处理结果输出目录", "string"},
		{"MAX_UPLOAD_BYTES", cast.ToString(c.MaxUploadBytes), "数据集文件大小上限", "int"},
		{"MAX_DATASET_ROWS", cast.ToString(c.MaxDatasetRows), "数据集行数上限，0表示不限制", "int"},
		{"MAX_CONCURRENT_JOBS", cast.ToString(c.MaxConcurrentJobs), "同时执行的处理作业上限", "int"},
		{"JOB_RETENTION", c.JobRetention.String(), "已结束作业保留时长", "duration"},
		{"STALE_JOB_AFTER", c.StaleJobAfter.String(), "未结束作业视为中断的时长", "duration"},
		{"CLEANUP_SCHEDULE", c.CleanupSchedule, "清理任务cron表达式", "string"},
		{"JOB_LOCK_TTL", c.LockTTL.String(), "作业分布式锁过期时间", "duration"},
		{"NOTIFIERS", strings.Join(c.Notifiers, ","), "启用的作业通知通道", "list"},
		{"NOTIFY_TIMEOUT", c.NotifyTimeout.String(), "单个通知通道投递超时", "duration"},
		{"SUBMIT_RATE_LIMIT", cast.ToString(c.RateLimit.PerClient), "单个客户端每个窗口内的提交上限，0表示不限制", "int"},
		{"SUBMIT_GLOBAL_RATE_LIMIT", cast.ToString(c.RateLimit.Global), "全部客户端每个窗口内的提交上限，0表示不限制", "int"},
		{"SUBMIT_RATE_WINDOW", c.RateLimit.Window.String(), "提交限流窗口", "duration"},
		{"MIN_TRAINING_ROWS", cast.ToString(c.Pipeline.MinRows), "最少训练行数", "int"},
		{"PIPELINE_TIMEOUT", c.Pipeline.Timeout.String(), "单个作业执行超时", "duration"},
		{"RANDOM_SEED", cast.ToString(c.Pipeline.Seed), "随机种子", "int"},
		{"CV_FOLDS", cast.ToString(c.Pipeline.Validation.Folds), "交叉验证折数", "int"},
		{"MAX_PERFORMANCE_DROP", cast.ToString(c.Pipeline.Validation.Tolerance), "允许的相对性能下降", "float"},
		{"CORRELATION_THRESHOLD", cast.ToString(c.Pipeline.Selection.CorrelationThreshold), "相关性剪枝阈值", "float"},
		{"PIPELINE_DEFAULTS_FILE", c.DefaultsFile, "流水线默认配置文件", "string"},
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items
}

// GetSystemConfig 获取单个配置项
func (s *ConfigService) GetSystemConfig(key string) (ConfigItem, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	for _, item := range s.GetAllSystemConfigs() {
		if item.Key == key {
			return item, nil
		}
	}
	return ConfigItem{}, ErrConfigKeyNotFound
}

/*
 * @module service/monitoring/health_checker
 * @description 健康检查器，检查数据库、缓存、存储目录与运行时状态
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 逐项检查组件 -> 计算评分 -> 汇总整体状态
 * @rules 数据库或存储不可用时整体为critical；可选依赖不可用时为warning
 * @dependencies gorm.io/gorm, runtime
 * @refs api/controllers/health_controller.go
 */

package monitoring

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"gorm.io/gorm"
)

// 健康状态
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Pinger 可探活的外部依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 将函数适配为Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthChecker 健康检查器
type HealthChecker struct {
	db           *gorm.DB
	directories  map[string]string
	dependencies map[string]Pinger
	timeout      time.Duration
}

// HealthStatus 整体健康状态
type HealthStatus struct {
	Overall    string                      `json:"overall"` // healthy, warning, critical
	Score      int                         `json:"score"`   // 健康评分 0-100
	Timestamp  time.Time                   `json:"timestamp"`
	Components map[string]*ComponentHealth `json:"components"`
	Issues     []string                    `json:"issues,omitempty"`
}

// ComponentHealth 组件健康状态
type ComponentHealth struct {
	Name         string                 `json:"name"`
	Status       string                 `json:"status"`
	Score        int                    `json:"score"`
	Required     bool                   `json:"required"`
	ResponseTime time.Duration          `json:"response_time"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
}

// NewHealthChecker 创建健康检查器实例，db可为nil
func NewHealthChecker(db *gorm.DB, timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthChecker{
		db:           db,
		directories:  make(map[string]string),
		dependencies: make(map[string]Pinger),
		timeout:      timeout,
	}
}

// AddDirectory 登记必须可写的目录
func (h *HealthChecker) AddDirectory(name, path string) {
	h.directories[name] = path
}

// AddDependency 登记可选依赖
func (h *HealthChecker) AddDependency(name string, p Pinger) {
	h.dependencies[name] = p
}

// CheckOverallHealth 执行全部检查
func (h *HealthChecker) CheckOverallHealth(ctx context.Context) *HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status := &HealthStatus{Timestamp: time.Now(), Components: make(map[string]*ComponentHealth)}
	if h.db != nil {
		status.Components["database"] = h.checkDatabaseHealth(ctx)
	}
	for name, path := range h.directories {
		status.Components[name] = checkDirectoryHealth(name, path)
	}
	for name, dep := range h.dependencies {
		status.Components[name] = checkDependency(ctx, name, dep)
	}
	status.Components["runtime"] = checkRuntimeHealth()

	calculateOverallHealth(status)
	return status
}

// 检查数据库健康状态
func (h *HealthChecker) checkDatabaseHealth(ctx context.Context) *ComponentHealth {
	start := time.Now()
	health := &ComponentHealth{Name: "database", Required: true, Metrics: make(map[string]interface{})}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	health.ResponseTime = time.Since(start)
	if err != nil {
		health.Status, health.Score, health.ErrorMessage = HealthCritical, 0, err.Error()
		return health
	}
	stats := sqlDB.Stats()
	health.Status, health.Score = HealthHealthy, 100
	health.Metrics["open_connections"] = stats.OpenConnections
	health.Metrics["idle_connections"] = stats.Idle
	health.Metrics["in_use_connections"] = stats.InUse
	return health
}

// 检查目录存在且可写
func checkDirectoryHealth(name, path string) *ComponentHealth {
	health := &ComponentHealth{Name: name, Required: true, Metrics: map[string]interface{}{"path": path}}
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		health.Status, health.ErrorMessage = HealthCritical, "不是目录"
		return health
	}
	if err != nil {
		health.Status, health.ErrorMessage = HealthCritical, err.Error()
		return health
	}
	probe, err := os.CreateTemp(path, ".health-*")
	if err != nil {
		health.Status, health.ErrorMessage = HealthCritical, err.Error()
		return health
	}
	probe.Close()
	os.Remove(filepath.Clean(probe.Name()))
	health.Status, health.Score = HealthHealthy, 100
	return health
}

func checkDependency(ctx context.Context, name string, dep Pinger) *ComponentHealth {
	start := time.Now()
	err := dep.Ping(ctx)
	health := &ComponentHealth{Name: name, ResponseTime: time.Since(start)}
	if err != nil {
		health.Status, health.Score, health.ErrorMessage = HealthWarning, 50, err.Error()
		return health
	}
	health.Status, health.Score = HealthHealthy, 100
	return health
}

func checkRuntimeHealth() *ComponentHealth {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return &ComponentHealth{
		Name:   "runtime",
		Status: HealthHealthy,
		Score:  100,
		Metrics: map[string]interface{}{
			"goroutines":    runtime.NumGoroutine(),
			"heap_alloc_mb": mem.HeapAlloc / 1024 / 1024,
			"num_gc":        mem.NumGC,
		},
	}
}

// calculateOverallHealth 必需组件异常为critical，其余异常为warning
func calculateOverallHealth(status *HealthStatus) {
	names := make([]string, 0, len(status.Components))
	for name := range status.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	status.Overall = HealthHealthy
	total := 0
	for _, name := range names {
		c := status.Components[name]
		total += c.Score
		if c.Status == HealthHealthy {
			continue
		}
		status.Issues = append(status.Issues, name+": "+c.ErrorMessage)
		if c.Required {
			status.Overall = HealthCritical
		} else if status.Overall == HealthHealthy {
			status.Overall = HealthWarning
		}
	}
	if len(names) > 0 {
		status.Score = total / len(names)
	}
}

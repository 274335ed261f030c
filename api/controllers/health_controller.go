/*
 * @module api/controllers/health_controller
 * @description 健康检查控制器，提供存活与就绪检查
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow HTTP请求 -> 健康检查器 -> 组件状态汇总
 * @rules 存活检查不访问外部依赖；就绪检查在必需组件异常时返回503
 * @dependencies github.com/go-chi/render
 * @refs service/monitoring/health_checker.go
 */

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"processor-service/service/monitoring"
)

const (
	serviceName    = "processor-service"
	serviceVersion = "1.0.0"
)

// HealthController 健康检查控制器
type HealthController struct {
	checker *monitoring.HealthChecker
}

// NewHealthController 创建健康检查控制器实例，checker为nil时就绪检查直接返回ready
func NewHealthController(checker *monitoring.HealthChecker) *HealthController {
	return &HealthController{checker: checker}
}

// HealthResponse 健康检查响应结构
type HealthResponse struct {
	Status    string                   `json:"status" example:"ok"`
	Timestamp time.Time                `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	Version   string                   `json:"version" example:"1.0.0"`
	Service   string                   `json:"service" example:"processor-service"`
	Detail    *monitoring.HealthStatus `json:"detail,omitempty"`
}

// Health 健康检查
// @Summary 健康检查
// @Description 检查服务进程是否存活
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   serviceVersion,
		Service:   serviceName,
	})
}

// Ready 就绪检查
// @Summary 就绪检查
// @Description 检查数据库、数据目录与可选依赖，必需组件异常时返回503
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   serviceVersion,
		Service:   serviceName,
	}
	if c.checker != nil {
		response.Detail = c.checker.CheckOverallHealth(r.Context())
		if response.Detail.Overall == monitoring.HealthCritical {
			response.Status = "not_ready"
			render.Status(r, http.StatusServiceUnavailable)
		}
	}
	render.JSON(w, r, response)
}

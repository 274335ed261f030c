/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs service/init.go
 */

package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"processor-service/api/controllers"
	apimw "processor-service/api/middleware"
	"processor-service/service"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-API-Key"},
		ExposedHeaders:   []string{"Link", "Content-Disposition", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController(service.GlobalHealthChecker)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 数据预处理作业
	r.Route("/process", func(r chi.Router) {
		processingController := controllers.NewProcessingController(
			service.GlobalProcessingService,
			service.GlobalSSEBroker,
			service.GlobalMetricsCollector,
			service.GlobalConfig.Pipeline,
		)
		r.With(apimw.RateLimit(service.GlobalSubmitLimiter)).Post("/", processingController.Submit)
		r.Get("/events", processingController.Events)
		r.Get("/stats", processingController.Stats)
		r.Get("/dataset/{dataset_id}", processingController.ByDataset)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", processingController.Status)
			r.Get("/full", processingController.Full)
			r.Get("/transformations", processingController.Transformations)
			r.Get("/missing-values", processingController.MissingValues)
			r.Get("/outliers", processingController.Outliers)
			r.Get("/feature-importance", processingController.FeatureImportance)
			r.Get("/artifacts", processingController.Artifacts)
			r.Post("/replay", processingController.Replay)
			r.Post("/cancel", processingController.Cancel)
		})
	})

	// 元数据
	r.Route("/meta", func(r chi.Router) {
		metaController := controllers.NewMetaController()
		r.Get("/processing", metaController.GetProcessingMeta)
		r.Get("/processing/{category}", metaController.GetProcessingMetaCategory)
	})

	// 系统配置（只读）
	r.Route("/config", func(r chi.Router) {
		configController := controllers.NewConfigController(service.GlobalConfigService)
		r.Get("/", configController.GetAllConfigs)
		r.Get("/pipeline-defaults", configController.GetPipelineDefaults)
		r.Get("/{key}", configController.GetConfig)
	})
}

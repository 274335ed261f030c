/*
 * @module api/controllers/config_controller
 * @description 配置查询控制器，提供生效配置与流水线默认参数的只读接口
 * @architecture RESTful API架构
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow HTTP请求 -> 控制器 -> 配置服务
 * @rules 配置在启动时加载，运行期只读；敏感字段不输出
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/config
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"processor-service/service/config"
)

// ConfigController 配置控制器
type ConfigController struct {
	service *config.ConfigService
}

// NewConfigController 创建配置控制器实例
func NewConfigController(svc *config.ConfigService) *ConfigController {
	return &ConfigController{service: svc}
}

// GetAllConfigs 获取所有配置
// @Summary 获取所有系统配置
// @Description 获取生效的系统配置项，按键排序
// @Tags 系统配置
// @Produce json
// @Success 200 {object} APIResponse{data=[]config.ConfigItem}
// @Router /config [get]
func (c *ConfigController) GetAllConfigs(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, SuccessResponse("获取配置成功", c.service.GetAllSystemConfigs()))
}

// GetConfig 获取单个配置
// @Summary 获取单个配置
// @Description 根据键名获取配置值，键名大小写不敏感
// @Tags 系统配置
// @Produce json
// @Param key path string true "配置键"
// @Success 200 {object} APIResponse{data=config.ConfigItem}
// @Failure 404 {object} APIResponse
// @Router /config/{key} [get]
func (c *ConfigController) GetConfig(w http.ResponseWriter, r *http.Request) {
	item, err := c.service.GetSystemConfig(chi.URLParam(r, "key"))
	if err != nil {
		render.Render(w, r, ServiceErrorResponse("配置项不存在", err))
		return
	}
	render.Render(w, r, SuccessResponse("获取配置成功", item))
}

// GetPipelineDefaults 获取流水线默认参数
// @Summary 获取流水线默认参数
// @Description 返回提交作业时未指定字段所使用的默认值
// @Tags 系统配置
// @Produce json
// @Success 200 {object} APIResponse{data=preprocess.Options}
// @Router /config/pipeline-defaults [get]
func (c *ConfigController) GetPipelineDefaults(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, SuccessResponse("获取默认参数成功", c.service.Config().Pipeline))
}

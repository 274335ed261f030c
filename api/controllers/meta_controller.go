/*
 * @module api/controllers/meta_controller
 * @description 预处理元数据查询接口
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 无状态查询
 * @rules 元数据只读
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/meta/processing.go
 */

package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"processor-service/service/meta"
)

type MetaController struct {
}

func NewMetaController() *MetaController {
	return &MetaController{}
}

// @Summary 获取全部预处理元数据
// @Description 获取作业状态以及缺失值、异常值、缩放、编码、特征选择的可选方法
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=map[string][]meta.MetaField}
// @Router /meta/processing [get]
func (c *MetaController) GetProcessingMeta(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取预处理元数据成功", meta.ProcessingMetas))
}

// @Summary 获取单类预处理元数据
// @Description 按类别获取元数据，例如 statuses、imputation_strategies、outlier_methods；指定name时按名称或别名返回单项
// @Tags 元数据
// @Produce json
// @Param category path string true "元数据类别"
// @Param name query string false "可选项名称或别名"
// @Success 200 {object} APIResponse{data=[]meta.MetaField}
// @Failure 404 {object} APIResponse
// @Router /meta/processing/{category} [get]
func (c *MetaController) GetProcessingMetaCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	fields, ok := meta.ProcessingMetas[category]
	if !ok {
		render.Render(w, r, NotFoundResponse("元数据类别不存在: "+category, nil))
		return
	}
	if name := r.URL.Query().Get("name"); name != "" {
		field, ok := meta.Lookup(fields, strings.ToLower(name))
		if !ok {
			render.Render(w, r, NotFoundResponse("可选项不存在: "+name, nil))
			return
		}
		render.JSON(w, r, SuccessResponse("获取预处理元数据成功", field))
		return
	}
	render.JSON(w, r, SuccessResponse("获取预处理元数据成功", fields))
}

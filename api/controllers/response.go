/*
 * @module api/controllers/response
 * @description 统一响应结构与错误到HTTP状态码的映射
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 业务错误 -> 错误分类 -> HTTP状态码 + 统一响应体
 * @rules 配置错误400，数据不足422，作业或数据集不存在404，作业状态冲突409，其余500；
 *        500类错误只返回概要信息，详细原因写入日志
 * @dependencies github.com/go-chi/render
 * @refs api/controllers/processing_controller.go
 */

package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"processor-service/service/config"
	"processor-service/service/pipeline"
	"processor-service/service/preprocess"
	"processor-service/service/processing"
	"processor-service/service/store"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`

	httpStatus int
}

// Render 设置HTTP状态码
func (a *APIResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if a.httpStatus != 0 {
		render.Status(r, a.httpStatus)
	}
	return nil
}

// SuccessResponse 成功响应
func SuccessResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{Status: 0, Msg: msg, Data: data, httpStatus: http.StatusOK}
}

// AcceptedResponse 异步任务已受理
func AcceptedResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{Status: 0, Msg: msg, Data: data, httpStatus: http.StatusAccepted}
}

// ErrorResponse 错误响应
func ErrorResponse(code int, msg string, err error) *APIResponse {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return &APIResponse{Status: code, Msg: msg, httpStatus: code}
}

// BadRequestResponse 请求参数错误
func BadRequestResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusBadRequest, msg, err)
}

// NotFoundResponse 资源不存在
func NotFoundResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusNotFound, msg, err)
}

// InternalErrorResponse 服务内部错误，不向调用方暴露错误细节
func InternalErrorResponse(msg string, err error) *APIResponse {
	if err != nil {
		slog.Error(msg, "error", err)
	}
	return ErrorResponse(http.StatusInternalServerError, msg, nil)
}

// ServiceErrorResponse 按业务错误类型选择HTTP状态码
func ServiceErrorResponse(msg string, err error) *APIResponse {
	switch {
	case errors.Is(err, store.ErrInvalidDatasetID):
		return BadRequestResponse(msg, err)
	case errors.Is(err, pipeline.ErrJobNotFound), errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrDatasetNotFound), errors.Is(err, config.ErrConfigKeyNotFound):
		return NotFoundResponse(msg, err)
	case errors.Is(err, store.ErrDatasetTooLarge):
		return ErrorResponse(http.StatusRequestEntityTooLarge, msg, err)
	case errors.Is(err, processing.ErrJobNotCompleted), errors.Is(err, processing.ErrJobFinished):
		return ErrorResponse(http.StatusConflict, msg, err)
	}
	switch preprocess.KindOf(err) {
	case preprocess.KindInvalidConfiguration:
		return ErrorResponse(http.StatusBadRequest, msg+": "+preprocess.UserMessage(err), nil)
	case preprocess.KindInsufficientData:
		return ErrorResponse(http.StatusUnprocessableEntity, msg+": "+preprocess.UserMessage(err), nil)
	}
	return InternalErrorResponse(msg, err)
}

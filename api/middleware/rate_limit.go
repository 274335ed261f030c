/*
 * @module api/middleware/rate_limit
 * @description 作业提交限流中间件
 * @architecture 中间件模式 - HTTP请求拦截
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 识别客户端 -> 限流检查 -> 写入限流响应头 -> 下一个处理器或429
 * @rules 客户端优先取X-API-Key，否则取远端地址；限流计数器不可用时放行并记录警告
 * @dependencies github.com/go-chi/render
 * @refs service/rate_limiter/redis_rate_limiter.go, api/routes.go
 */

package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"processor-service/service/rate_limiter"
)

// ClientIDHeader 客户端标识请求头
const ClientIDHeader = "X-API-Key"

// ClientID 返回用于限流的客户端标识
func ClientID(r *http.Request) string {
	if key := r.Header.Get(ClientIDHeader); key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit 创建限流中间件，limiter未启用时直接放行
func RateLimit(limiter *rate_limiter.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !limiter.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.Allow(r.Context(), ClientID(r))
			if err != nil {
				slog.Warn("限流检查失败，放行请求", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))
			if !result.Allowed {
				retry := max(result.ResetAt-time.Now().Unix(), 1)
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, map[string]interface{}{
					"status": http.StatusTooManyRequests,
					"msg":    result.Message,
					"data":   result,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

/*
 * @module service/rate_limiter/redis_rate_limiter
 * @description 作业提交限流，支持按客户端与全局两层固定窗口计数
 * @architecture 工具层 - 提供分布式限流能力
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 检查限流规则 -> 计数器原子累加 -> 判断是否超限
 * @rules 先检查客户端规则再检查全局规则，任一层超限即拒绝；多实例部署时使用Redis计数，单实例可使用进程内计数
 * @dependencies github.com/go-redis/redis/v8
 * @refs api/middleware/rate_limit.go, service/init.go
 */

package rate_limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// 限流范围
const (
	ScopeClient = "client"
	ScopeGlobal = "global"
)

const keyPrefix = "processor:rate_limit"

// RateLimitResult 限流检查结果
type RateLimitResult struct {
	Allowed   bool   `json:"allowed"`    // 是否允许请求
	Limit     int    `json:"limit"`      // 限制数量
	Remaining int    `json:"remaining"`  // 剩余数量
	ResetAt   int64  `json:"reset_at"`   // 重置时间（Unix时间戳）
	Scope     string `json:"limit_type"` // 限流范围：client/global
	Message   string `json:"message"`    // 提示信息
}

// RateLimitRule 限流规则
type RateLimitRule struct {
	Scope       string
	Window      time.Duration
	MaxRequests int
}

// Counter 固定窗口计数器
type Counter interface {
	// Hit 未超限时计数加一，返回是否允许、当前计数与窗口剩余时间
	Hit(ctx context.Context, key string, max int, window time.Duration) (bool, int, time.Duration, error)
}

// RedisCounter 基于Redis的计数器，多实例共享
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter 创建Redis计数器
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

var hitScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local max_requests = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
if current >= max_requests then
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then ttl = window end
	return {0, current, ttl}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], window)
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then ttl = window end
return {1, count, ttl}
`)

func (c *RedisCounter) Hit(ctx context.Context, key string, max int, window time.Duration) (bool, int, time.Duration, error) {
	res, err := hitScript.Run(ctx, c.client, []string{key}, max, window.Milliseconds()).Result()
	if err != nil {
		return false, 0, 0, fmt.Errorf("限流检查失败: %w", err)
	}
	values, ok := res.([]interface{})
	if !ok || len(values) != 3 {
		return false, 0, 0, fmt.Errorf("限流脚本返回值异常: %v", res)
	}
	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)
	ttl, _ := values[2].(int64)
	return allowed == 1, int(count), time.Duration(ttl) * time.Millisecond, nil
}

// MemoryCounter 进程内计数器，用于单实例部署与测试
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	count     int
	expiresAt time.Time
}

// NewMemoryCounter 创建进程内计数器
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*memoryWindow), now: time.Now}
}

func (c *MemoryCounter) Hit(ctx context.Context, key string, max int, window time.Duration) (bool, int, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, w := range c.windows {
		if !now.Before(w.expiresAt) {
			delete(c.windows, k)
		}
	}
	w, ok := c.windows[key]
	if !ok {
		w = &memoryWindow{expiresAt: now.Add(window)}
		c.windows[key] = w
	}
	if w.count >= max {
		return false, w.count, w.expiresAt.Sub(now), nil
	}
	w.count++
	return true, w.count, w.expiresAt.Sub(now), nil
}

// RateLimiter 分层限流器
type RateLimiter struct {
	counter Counter
	rules   []RateLimitRule
	now     func() time.Time
}

// NewRateLimiter 创建限流器，上限不大于0的规则被忽略；客户端规则排在全局规则之前
func NewRateLimiter(counter Counter, rules ...RateLimitRule) *RateLimiter {
	limiter := &RateLimiter{counter: counter, now: time.Now}
	for _, scope := range []string{ScopeClient, ScopeGlobal} {
		for _, rule := range rules {
			if rule.Scope == scope && rule.MaxRequests > 0 && rule.Window > 0 {
				limiter.rules = append(limiter.rules, rule)
			}
		}
	}
	return limiter
}

// Enabled 是否存在有效规则
func (r *RateLimiter) Enabled() bool {
	return r != nil && len(r.rules) > 0
}

// Allow 检查一次提交，返回最严格一层的结果
func (r *RateLimiter) Allow(ctx context.Context, clientID string) (*RateLimitResult, error) {
	if !r.Enabled() {
		return &RateLimitResult{Allowed: true, Limit: -1, Remaining: -1, Scope: "none", Message: "无限流规则"}, nil
	}
	var tightest *RateLimitResult
	for _, rule := range r.rules {
		allowed, count, ttl, err := r.counter.Hit(ctx, r.buildKey(rule, clientID), rule.MaxRequests, rule.Window)
		if err != nil {
			return nil, err
		}
		result := &RateLimitResult{
			Allowed:   allowed,
			Limit:     rule.MaxRequests,
			Remaining: max(rule.MaxRequests-count, 0),
			ResetAt:   r.now().Add(ttl).Unix(),
			Scope:     rule.Scope,
			Message:   "允许请求",
		}
		if !allowed {
			result.Message = fmt.Sprintf("超过%s提交频率限制", scopeName(rule.Scope))
			return result, nil
		}
		if tightest == nil || result.Remaining < tightest.Remaining {
			tightest = result
		}
	}
	return tightest, nil
}

// buildKey 同一窗口内的请求落在同一个键上
func (r *RateLimiter) buildKey(rule RateLimitRule, clientID string) string {
	window := r.now().UnixMilli() / rule.Window.Milliseconds()
	if rule.Scope == ScopeGlobal {
		return fmt.Sprintf("%s:%s:%d", keyPrefix, rule.Scope, window)
	}
	return fmt.Sprintf("%s:%s:%s:%d", keyPrefix, rule.Scope, clientID, window)
}

func scopeName(scope string) string {
	switch scope {
	case ScopeGlobal:
		return "全局"
	case ScopeClient:
		return "客户端"
	default:
		return "未知"
	}
}

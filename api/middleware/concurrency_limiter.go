package middleware

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
)

// ConcurrencyLimiter 限制同时处理的请求量
// 每个请求按权重占用名额，批量上传一次要解码多张图片，权重更高
type ConcurrencyLimiter struct {
	sem      *semaphore.Weighted
	max      int64
	inflight atomic.Int64
	weight   func(c *gin.Context) int64
	skip     []string
}

// LimiterOption 并发限制器选项
type LimiterOption func(*ConcurrencyLimiter)

// WithWeight 自定义请求权重，结果会被限制在 [1, max]
func WithWeight(fn func(c *gin.Context) int64) LimiterOption {
	return func(cl *ConcurrencyLimiter) {
		cl.weight = fn
	}
}

// WithSkipPrefixes 这些路径前缀不占用名额（健康检查、指标）
func WithSkipPrefixes(prefixes ...string) LimiterOption {
	return func(cl *ConcurrencyLimiter) {
		cl.skip = append(cl.skip, prefixes...)
	}
}

// NewConcurrencyLimiter 并发限制器
func NewConcurrencyLimiter(maxConcurrency int64, opts ...LimiterOption) *ConcurrencyLimiter {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	cl := &ConcurrencyLimiter{
		sem: semaphore.NewWeighted(maxConcurrency),
		max: maxConcurrency,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// InFlight 当前占用的名额
func (cl *ConcurrencyLimiter) InFlight() int64 {
	return cl.inflight.Load()
}

// Middleware 名额不足时立即返回 503
func (cl *ConcurrencyLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, prefix := range cl.skip {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		w := cl.weightOf(c)
		if !cl.sem.TryAcquire(w) {
			common.RespondErrorAbort(c, http.StatusServiceUnavailable, "Server is busy, please try again later")
			return
		}
		cl.inflight.Add(w)
		defer func() {
			cl.inflight.Add(-w)
			cl.sem.Release(w)
		}()

		c.Next()
	}
}

func (cl *ConcurrencyLimiter) weightOf(c *gin.Context) int64 {
	if cl.weight == nil {
		return 1
	}
	w := cl.weight(c)
	if w < 1 {
		return 1
	}
	if w > cl.max {
		return cl.max
	}
	return w
}

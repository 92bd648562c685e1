package dashboard

import (
	"context"
	"log"
	"net/http"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/anoixa/storefront-assets/internal/dashboard"
	"github.com/gin-gonic/gin"
)

// StatsService 统计服务
type StatsService interface {
	GetStats(ctx context.Context) (*dashboard.StatsResponse, error)
	RefreshCache(ctx context.Context) error
}

// Handler 统计处理器
type Handler struct {
	svc StatsService
}

// NewHandler 统计处理器
func NewHandler(svc StatsService) *Handler {
	return &Handler{svc: svc}
}

// GetStats 图片库统计，refresh=true 时跳过缓存
func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	if c.Query("refresh") == "true" {
		if err := h.svc.RefreshCache(ctx); err != nil {
			log.Printf("[Dashboard] failed to refresh stats cache: %v", err)
		}
	}

	stats, err := h.svc.GetStats(ctx)
	if err != nil {
		log.Printf("[Dashboard] failed to load stats: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to load statistics")
		return
	}

	common.RespondSuccess(c, stats)
}

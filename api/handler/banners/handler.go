package banners

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/anoixa/storefront-assets/database/repo/assets"
	"github.com/anoixa/storefront-assets/database/repo/banners"
	"github.com/gin-gonic/gin"
)

// Store 横幅仓库
type Store interface {
	Get(ctx context.Context) (*models.Banner, error)
	UpdateText(ctx context.Context, title, description string) (*models.Banner, error)
	AddImage(ctx context.Context, url string) (*models.Banner, error)
	RemoveImage(ctx context.Context, url string) (*models.Banner, error)
}

// AssetLookup 在确认链接属于已存储图片的事务中写入引用
type AssetLookup interface {
	WithStoredURLs(ctx context.Context, urls []string, fn func(txCtx context.Context) error) error
}

// Handler 横幅处理器
type Handler struct {
	store  Store
	assets AssetLookup
}

// NewHandler 横幅处理器
func NewHandler(store Store, assets AssetLookup) *Handler {
	return &Handler{store: store, assets: assets}
}

type bannerResponse struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURLs   []string `json:"image_urls"`
}

type imageRequest struct {
	URL string `json:"url" binding:"required"`
}

type updateRequest struct {
	Title       string `json:"title" binding:"max=255"`
	Description string `json:"description"`
}

func toResponse(b *models.Banner) bannerResponse {
	return bannerResponse{
		Title:       b.Title,
		Description: b.Description,
		ImageURLs:   b.ImageURLs(),
	}
}

// GetBanner 获取横幅
func (h *Handler) GetBanner(c *gin.Context) {
	banner, err := h.store.Get(c.Request.Context())
	if err != nil {
		log.Printf("[Banner] get failed: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to load banner")
		return
	}
	common.RespondSuccess(c, toResponse(banner))
}

// UpdateBanner 修改横幅文字
func (h *Handler) UpdateBanner(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	banner, err := h.store.UpdateText(c.Request.Context(), req.Title, req.Description)
	if err != nil {
		log.Printf("[Banner] update failed: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to update banner")
		return
	}
	common.RespondSuccess(c, toResponse(banner))
}

// AddImage 追加图片链接，链接必须属于已存储的图片
func (h *Handler) AddImage(c *gin.Context) {
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body. 'url' is required.")
		return
	}

	var banner *models.Banner
	err := h.assets.WithStoredURLs(c.Request.Context(), []string{req.URL}, func(txCtx context.Context) error {
		var err error
		banner, err = h.store.AddImage(txCtx, req.URL)
		return err
	})
	if errors.Is(err, assets.ErrNotFound) {
		common.RespondError(c, http.StatusNotFound, "Image url not found")
		return
	}
	if err != nil {
		respondStoreError(c, err)
		return
	}
	common.RespondSuccess(c, toResponse(banner))
}

// RemoveImage 移除图片链接
func (h *Handler) RemoveImage(c *gin.Context) {
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body. 'url' is required.")
		return
	}

	banner, err := h.store.RemoveImage(c.Request.Context(), req.URL)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	common.RespondSuccess(c, toResponse(banner))
}

func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, banners.ErrMaxImages):
		common.RespondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, banners.ErrImageNotInBanner):
		common.RespondError(c, http.StatusNotFound, err.Error())
	default:
		log.Printf("[Banner] update images failed: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to update banner images")
	}
}

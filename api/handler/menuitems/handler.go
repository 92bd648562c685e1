package menuitems

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/anoixa/storefront-assets/database/repo/assets"
	"github.com/anoixa/storefront-assets/database/repo/menuitems"
	"github.com/gin-gonic/gin"
)

// Store 菜单项仓库
type Store interface {
	Create(ctx context.Context, item *models.MenuItem) error
	GetByID(ctx context.Context, id uint) (*models.MenuItem, error)
	AddImage(ctx context.Context, id uint, url string) (*models.MenuItem, error)
	RemoveImage(ctx context.Context, id uint, url string) (*models.MenuItem, error)
}

// AssetLookup 在确认链接属于已存储图片的事务中写入引用
type AssetLookup interface {
	WithStoredURLs(ctx context.Context, urls []string, fn func(txCtx context.Context) error) error
}

// Handler 菜单项图片处理器
type Handler struct {
	store  Store
	assets AssetLookup
}

// NewHandler 菜单项图片处理器
func NewHandler(store Store, assets AssetLookup) *Handler {
	return &Handler{store: store, assets: assets}
}

type menuItemResponse struct {
	ID          uint     `json:"id"`
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Description string   `json:"description"`
	Price       int      `json:"price"`
	Available   bool     `json:"available"`
	ImageURLs   []string `json:"image_urls"`
}

type createRequest struct {
	Title       string   `json:"title" binding:"required,max=255"`
	Subtitle    string   `json:"subtitle" binding:"max=255"`
	Description string   `json:"description"`
	Price       int      `json:"price" binding:"min=0"`
	ImageURLs   []string `json:"image_urls"`
}

type imageRequest struct {
	URL string `json:"url" binding:"required"`
}

func toResponse(m *models.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:          m.ID,
		Title:       m.Title,
		Subtitle:    m.Subtitle,
		Description: m.Description,
		Price:       m.Price,
		Available:   m.Available,
		ImageURLs:   m.ImageURLs(),
	}
}

// CreateMenuItem 新建菜单项，图片链接必须都属于已存储的图片
func (h *Handler) CreateMenuItem(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	item := &models.MenuItem{
		Title:       req.Title,
		Subtitle:    req.Subtitle,
		Description: req.Description,
		Price:       req.Price,
		Available:   true,
	}
	for _, url := range req.ImageURLs {
		if !validURL(c, url) {
			return
		}
		item.Images = append(item.Images, models.MenuItemImage{ImageURL: url})
	}

	err := h.assets.WithStoredURLs(ctx, req.ImageURLs, func(txCtx context.Context) error {
		return h.store.Create(txCtx, item)
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	common.RespondSuccess(c, toResponse(item))
}

// GetMenuItem 获取菜单项
func (h *Handler) GetMenuItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	item, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	common.RespondSuccess(c, toResponse(item))
}

// AddImage 为菜单项追加图片链接
func (h *Handler) AddImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body. 'url' is required.")
		return
	}
	if !validURL(c, req.URL) {
		return
	}

	var item *models.MenuItem
	err := h.assets.WithStoredURLs(c.Request.Context(), []string{req.URL}, func(txCtx context.Context) error {
		var err error
		item, err = h.store.AddImage(txCtx, id, req.URL)
		return err
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	common.RespondSuccess(c, toResponse(item))
}

// RemoveImage 移除菜单项的图片链接
func (h *Handler) RemoveImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body. 'url' is required.")
		return
	}

	item, err := h.store.RemoveImage(c.Request.Context(), id, req.URL)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	common.RespondSuccess(c, toResponse(item))
}

func validURL(c *gin.Context, url string) bool {
	if strings.TrimSpace(url) == "" {
		common.RespondError(c, http.StatusBadRequest, "Image url must not be empty")
		return false
	}
	return true
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		common.RespondError(c, http.StatusBadRequest, "Invalid menu item id")
		return 0, false
	}
	return uint(id), true
}

func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, assets.ErrNotFound):
		common.RespondError(c, http.StatusNotFound, "Image url not found")
	case errors.Is(err, menuitems.ErrNotFound):
		common.RespondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, menuitems.ErrMaxImages):
		common.RespondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, menuitems.ErrImageNotInMenuItem):
		common.RespondError(c, http.StatusNotFound, err.Error())
	default:
		log.Printf("[MenuItem] store operation failed: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to update menu item")
	}
}

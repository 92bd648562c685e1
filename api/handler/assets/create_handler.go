package assets

import (
	"log"
	"net/http"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/anoixa/storefront-assets/api/middleware"
	"github.com/anoixa/storefront-assets/utils"
	"github.com/gin-gonic/gin"
)

type createRequest struct {
	Base64Image string `json:"base64image" binding:"required"`
}

type batchRequest struct {
	Images []string `json:"images" binding:"required,min=1"`
}

type batchItem struct {
	Index int       `json:"index"`
	Image *Response `json:"image,omitempty"`
	Error string    `json:"error,omitempty"`
	Code  int       `json:"code,omitempty"`
}

// CreateImage 上传单张图片，相同内容返回已有记录
func (h *Handler) CreateImage(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body. 'base64image' is required.")
		return
	}

	created, err := h.service.Create(c.Request.Context(), req.Base64Image)
	if err != nil {
		status, _ := StatusFor(err)
		if status >= http.StatusInternalServerError && !utils.IsClientDisconnect(err) {
			log.Printf("[Image] create failed (request %s): %v", c.GetString(middleware.ContextRequestIDKey), err)
		}
		respondServiceError(c, err)
		return
	}

	common.RespondSuccess(c, toResponse(created))
}

// CreateImages 批量上传，逐项返回结果
func (h *Handler) CreateImages(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body. 'images' must be a non-empty list.")
		return
	}
	if len(req.Images) > h.maxBatchSize {
		common.RespondError(c, http.StatusBadRequest, "Too many images in one batch")
		return
	}

	results := h.service.CreateBatch(c.Request.Context(), req.Images)

	items := make([]batchItem, 0, len(results))
	succeeded := 0
	for _, r := range results {
		item := batchItem{Index: r.Index}
		if r.Err != nil {
			item.Code, item.Error = StatusFor(r.Err)
		} else {
			resp := toResponse(r.Asset)
			item.Image = &resp
			succeeded++
		}
		items = append(items, item)
	}

	common.RespondSuccess(c, gin.H{
		"total":     len(items),
		"succeeded": succeeded,
		"failed":    len(items) - succeeded,
		"results":   items,
	})
}

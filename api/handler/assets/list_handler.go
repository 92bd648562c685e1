package assets

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/gin-gonic/gin"
)

// ListImages 按创建顺序列出全部图片
func (h *Handler) ListImages(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		log.Printf("[Image] list failed: %v", err)
		respondServiceError(c, err)
		return
	}

	resp := make([]Response, 0, len(list))
	for _, a := range list {
		resp = append(resp, toResponse(a))
	}
	common.RespondSuccess(c, resp)
}

// GetImage 获取单张图片详情
func (h *Handler) GetImage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		common.RespondError(c, http.StatusBadRequest, "Invalid image id")
		return
	}

	found, err := h.service.Get(c.Request.Context(), uint(id))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.RespondSuccess(c, toResponse(found))
}

// ImageExists 公开链接是否属于已存储的图片
func (h *Handler) ImageExists(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		common.RespondError(c, http.StatusBadRequest, "Query parameter 'url' is required")
		return
	}

	exists, err := h.service.ExistsByURL(c.Request.Context(), url)
	if err != nil {
		log.Printf("[Image] exists check failed: %v", err)
		respondServiceError(c, err)
		return
	}
	common.RespondSuccess(c, gin.H{"exists": exists})
}

package assets

import (
	"log"
	"net/http"
	"strconv"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/anoixa/storefront-assets/api/middleware"
	"github.com/anoixa/storefront-assets/utils"
	"github.com/gin-gonic/gin"
)

// DeleteImage 删除单张图片；仍被引用时返回 409
func (h *Handler) DeleteImage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		common.RespondError(c, http.StatusBadRequest, "Invalid image id")
		return
	}

	if err := h.service.Delete(c.Request.Context(), uint(id)); err != nil {
		status, _ := StatusFor(err)
		if (status >= http.StatusInternalServerError || status == http.StatusBadGateway) && !utils.IsClientDisconnect(err) {
			log.Printf("[Image] delete %d failed (request %s): %v", id, c.GetString(middleware.ContextRequestIDKey), err)
		}
		respondServiceError(c, err)
		return
	}

	common.RespondSuccessMessage(c, "Image deleted successfully", nil)
}

package middleware

import (
	"net/http"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/gin-gonic/gin"
)

// MaxBytesReader 限制请求体大小，超出部分在读取时返回错误
func MaxBytesReader(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			common.RespondErrorAbort(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

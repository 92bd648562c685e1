package assets

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/anoixa/storefront-assets/internal/services/asset"
	"github.com/gin-gonic/gin"
)

// Service 处理器依赖的图片服务
type Service interface {
	Create(ctx context.Context, payload string) (*models.Asset, error)
	CreateBatch(ctx context.Context, payloads []string) []asset.BatchResult
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint) (*models.Asset, error)
	List(ctx context.Context) ([]*models.Asset, error)
	ExistsByURL(ctx context.Context, url string) (bool, error)
}

// Handler 图片处理器
type Handler struct {
	service      Service
	maxBatchSize int
}

// NewHandler 图片处理器
func NewHandler(service Service, maxBatchSize int) *Handler {
	if maxBatchSize <= 0 {
		maxBatchSize = 10
	}
	return &Handler{
		service:      service,
		maxBatchSize: maxBatchSize,
	}
}

// Response 图片对外展示的字段
type Response struct {
	ID        uint      `json:"id"`
	PublicURL string    `json:"public_url"`
	MimeType  string    `json:"mime_type,omitempty"`
	Size      int64     `json:"size,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(a *models.Asset) Response {
	return Response{
		ID:        a.ID,
		PublicURL: a.PublicURL,
		MimeType:  a.MimeType,
		Size:      a.Size,
		Width:     a.Width,
		Height:    a.Height,
		CreatedAt: a.CreatedAt,
	}
}

// StatusFor 把服务层错误映射为 HTTP 状态码与对外消息
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, asset.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid image payload"
	case errors.Is(err, asset.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "Image exceeds the maximum upload size"
	case errors.Is(err, asset.ErrNotFound):
		return http.StatusNotFound, "Image not found"
	case errors.Is(err, asset.ErrAssetInUse):
		return http.StatusConflict, "Image is still referenced"
	case errors.Is(err, asset.ErrRemoteRejected):
		return http.StatusBadGateway, "Remote storage rejected the request"
	case errors.Is(err, asset.ErrRemoteUnreachable):
		return http.StatusServiceUnavailable, "Remote storage is unreachable, please retry later"
	case errors.Is(err, asset.ErrPoolSaturated):
		return http.StatusServiceUnavailable, "Server is busy, please try again later"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "Request was cancelled before completion"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondServiceError(c *gin.Context, err error) {
	status, msg := StatusFor(err)
	// 引用冲突时带上具体原因
	if status == http.StatusConflict {
		msg = err.Error()
	}
	common.RespondError(c, status, msg)
}

package banners

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/anoixa/storefront-assets/database/dbtest"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/anoixa/storefront-assets/database/repo/assets"
	"github.com/anoixa/storefront-assets/database/repo/banners"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// knownURLs 以集合模拟已存储的图片
type knownURLs map[string]bool

func (k knownURLs) WithStoredURLs(ctx context.Context, urls []string, fn func(txCtx context.Context) error) error {
	for _, url := range urls {
		if !k[url] {
			return assets.ErrNotFound
		}
	}
	return fn(ctx)
}

func setupRouter(t *testing.T, known knownURLs) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(banners.NewRepository(dbtest.NewProvider(t)), known)
	router := gin.New()
	router.GET("/api/banner", h.GetBanner)
	router.PUT("/api/banner/update", h.UpdateBanner)
	router.POST("/api/banner/images", h.AddImage)
	router.DELETE("/api/banner/images", h.RemoveImage)
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func imageURLs(t *testing.T, w *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.(map[string]interface{})["image_urls"].([]interface{})
}

func TestBannerImages(t *testing.T) {
	const url = "https://res.example.com/a.png"
	router := setupRouter(t, knownURLs{url: true})

	w := doJSON(router, http.MethodPost, "/api/banner/images", gin.H{"url": url})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{url}, imageURLs(t, w))

	w = doJSON(router, http.MethodGet, "/api/banner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{url}, imageURLs(t, w))

	w = doJSON(router, http.MethodDelete, "/api/banner/images", gin.H{"url": url})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, imageURLs(t, w))

	w = doJSON(router, http.MethodDelete, "/api/banner/images", gin.H{"url": url})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBannerAddImage_UnknownURL(t *testing.T) {
	router := setupRouter(t, knownURLs{})

	w := doJSON(router, http.MethodPost, "/api/banner/images", gin.H{"url": "https://elsewhere.example.com/x.png"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodPost, "/api/banner/images", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBannerAddImage_Limit(t *testing.T) {
	known := knownURLs{}
	for i := 0; i <= models.BannerMaxImages; i++ {
		known[fmt.Sprintf("https://res.example.com/%d.png", i)] = true
	}
	router := setupRouter(t, known)

	for i := 0; i < models.BannerMaxImages; i++ {
		w := doJSON(router, http.MethodPost, "/api/banner/images", gin.H{"url": fmt.Sprintf("https://res.example.com/%d.png", i)})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(router, http.MethodPost, "/api/banner/images", gin.H{"url": fmt.Sprintf("https://res.example.com/%d.png", models.BannerMaxImages)})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBannerUpdateText(t *testing.T) {
	router := setupRouter(t, knownURLs{})

	w := doJSON(router, http.MethodPut, "/api/banner/update", gin.H{"title": "Summer", "description": "New menu"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Summer", data["title"])
	assert.Equal(t, "New menu", data["description"])
}

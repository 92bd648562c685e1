package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/anoixa/storefront-assets/cache"
	"github.com/anoixa/storefront-assets/config"
	"github.com/anoixa/storefront-assets/database/dbtest"
	"github.com/anoixa/storefront-assets/internal/repositories"
	"github.com/anoixa/storefront-assets/internal/services/asset"
	"github.com/anoixa/storefront-assets/internal/services/reference"
	"github.com/anoixa/storefront-assets/internal/worker"
	"github.com/anoixa/storefront-assets/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer 使用内存数据库、本地存储与内存缓存组装完整路由
func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ServerHost:          "localhost",
		ServerPort:          8080,
		ServerMaxInflight:   10,
		RateLimitApiRPS:     1000,
		RateLimitApiBurst:   1000,
		RateLimitExpireTime: time.Minute,
		UploadMaxSizeMB:     1,
		UploadMaxBatchSize:  5,
		UploadRequireImage:  true,
	}

	db := dbtest.NewProvider(t)
	repos := repositories.NewRepositories(db)

	local, err := storage.NewLocalStorage(storage.LocalConfig{
		Path:          t.TempDir(),
		PublicBaseURL: "http://localhost:8080/uploads",
	})
	require.NoError(t, err)
	storages := storage.NewStaticFactory("local", local)

	memCache, err := cache.NewMemoryProvider(1)
	require.NoError(t, err)
	cacheFactory := cache.NewFactoryWithProvider(memCache, time.Minute)
	t.Cleanup(func() { _ = cacheFactory.Close() })

	pool := worker.NewPool(2, 10)
	t.Cleanup(pool.Stop)

	svc := asset.NewService(db, repos.Assets, reference.NewChecker(repos.Banners, repos.MenuItems),
		storages, pool, cacheFactory, asset.Options{RequireImage: true})

	router, cleanup := setupRouter(&ServerDependencies{
		Config:         cfg,
		Database:       db,
		StorageFactory: storages,
		CacheFactory:   cacheFactory,
		Pool:           pool,
		Repositories:   repos,
		AssetService:   svc,
	})
	t.Cleanup(cleanup)
	return router
}

func pngBase64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func do(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
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

func TestHealthCheck(t *testing.T) {
	router := newTestServer(t)

	w := do(router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "ok", checks["storage"])
	assert.Equal(t, "ok", checks["pool"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestVersionAndMetrics(t *testing.T) {
	router := newTestServer(t)

	w := do(router, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), config.Version)

	w = do(router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "request_count")
	assert.Contains(t, w.Body.String(), "queue_cap")
	assert.Contains(t, w.Body.String(), "hit_ratio")
	assert.Contains(t, w.Body.String(), "inflight")
	assert.Contains(t, w.Body.String(), "heap_alloc_mb")
}

// TestAssetLifecycle 上传、引用、拒绝删除、解除引用、删除
func TestAssetLifecycle(t *testing.T) {
	router := newTestServer(t)
	payload := pngBase64(t)

	w := do(router, http.MethodPost, "/api/image/create", gin.H{"base64image": payload})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created struct {
		Data struct {
			ID        uint   `json:"id"`
			PublicURL string `json:"public_url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.Data.ID)
	require.True(t, strings.HasPrefix(created.Data.PublicURL, "http://localhost:8080/uploads/"))

	// 相同内容返回同一条记录
	w = do(router, http.MethodPost, "/api/image/create", gin.H{"base64image": payload})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprintf(`"id":%d`, created.Data.ID))

	// 本地存储的文件可以直接访问
	key := strings.TrimPrefix(created.Data.PublicURL, "http://localhost:8080")
	w = do(router, http.MethodGet, key, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodPost, "/api/banner/images", gin.H{"url": created.Data.PublicURL})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	deletePath := fmt.Sprintf("/api/image/delete/%d", created.Data.ID)
	w = do(router, http.MethodDelete, deletePath, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodDelete, "/api/banner/images", gin.H{"url": created.Data.PublicURL})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodDelete, deletePath, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, http.MethodGet, "/api/image/exists?url="+created.Data.PublicURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var exists common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exists))
	assert.Equal(t, false, exists.Data.(map[string]interface{})["exists"])

	w = do(router, http.MethodDelete, deletePath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateImage_RejectsNonImage(t *testing.T) {
	router := newTestServer(t)

	w := do(router, http.MethodPost, "/api/image/create", gin.H{
		"base64image": base64.StdEncoding.EncodeToString([]byte("0123456789")),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/api/image/all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Data)
}

func TestStats(t *testing.T) {
	router := newTestServer(t)

	w := do(router, http.MethodPost, "/api/image/create", gin.H{"base64image": pngBase64(t)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, http.MethodGet, "/api/stats?refresh=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Data struct {
			Overview struct {
				Assets struct {
					Total int64 `json:"total"`
				} `json:"assets"`
			} `json:"overview"`
			DriverStats []struct {
				Driver string `json:"driver"`
			} `json:"driver_stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Data.Overview.Assets.Total)
	require.Len(t, body.Data.DriverStats, 1)
	assert.Equal(t, "local", body.Data.DriverStats[0].Driver)
}

func TestAPI_Gzip(t *testing.T) {
	router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/image/all", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

package storage

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCloudinaryBaseURL = "https://api.cloudinary.com/v1_1"
	defaultCloudinaryTimeout = 30 * time.Second
	// DefaultMaxUploadBytes 远程存储单张图片上限
	DefaultMaxUploadBytes = 3 << 20

	maxResponseBody = 1 << 20
	maxErrorBody    = 512
)

// CloudinaryConfig 签名上传客户端配置
type CloudinaryConfig struct {
	CloudName         string        `mapstructure:"cloud_name"`
	APIKey            string        `mapstructure:"api_key"`
	APISecret         string        `mapstructure:"api_secret"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// CloudinaryStorage 通过签名表单请求上传、删除图片
type CloudinaryStorage struct {
	cfg        CloudinaryConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

type cloudinaryUploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

type cloudinaryDestroyResponse struct {
	Result string `json:"result"`
}

// NewCloudinaryStorage 创建签名上传客户端
func NewCloudinaryStorage(cfg CloudinaryConfig) (*CloudinaryStorage, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary requires cloud name, api key and api secret")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCloudinaryBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCloudinaryTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &CloudinaryStorage{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		now: time.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return s, nil
}

// Upload 签名上传，超过大小限制时不发起请求
func (s *CloudinaryStorage) Upload(ctx context.Context, in *UploadInput) (*UploadResult, error) {
	if int64(len(in.Data)) > s.cfg.MaxUploadBytes {
		return nil, tooLarge(len(in.Data), s.cfg.MaxUploadBytes)
	}

	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	timestamp := strconv.FormatInt(s.now().Unix(), 10)

	form := url.Values{}
	form.Set("file", "data:"+mimeType+";base64,"+base64.StdEncoding.EncodeToString(in.Data))
	form.Set("timestamp", timestamp)
	form.Set("api_key", s.cfg.APIKey)
	form.Set("signature", s.sign("timestamp="+timestamp))

	body, err := s.post(ctx, "upload", form)
	if err != nil {
		return nil, err
	}

	var resp cloudinaryUploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &RemoteError{Op: "upload", StatusCode: http.StatusOK, Body: truncate(string(body))}
	}
	if resp.SecureURL == "" || resp.PublicID == "" {
		return nil, &RemoteError{Op: "upload", StatusCode: http.StatusOK, Body: truncate(string(body))}
	}

	return &UploadResult{RemoteID: resp.PublicID, PublicURL: resp.SecureURL}, nil
}

// Delete 签名删除，"not found" 视为成功
func (s *CloudinaryStorage) Delete(ctx context.Context, remoteID string) error {
	timestamp := strconv.FormatInt(s.now().Unix(), 10)

	form := url.Values{}
	form.Set("public_id", remoteID)
	form.Set("timestamp", timestamp)
	form.Set("api_key", s.cfg.APIKey)
	form.Set("signature", s.sign("public_id="+remoteID+"&timestamp="+timestamp))

	body, err := s.post(ctx, "destroy", form)
	if err != nil {
		return err
	}

	var resp cloudinaryDestroyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &RemoteError{Op: "destroy", StatusCode: http.StatusOK, Body: truncate(string(body))}
	}
	switch resp.Result {
	case "ok", "not found":
		return nil
	default:
		return &RemoteError{Op: "destroy", StatusCode: http.StatusOK, Body: truncate(string(body))}
	}
}

// Health 只检查配置，避免健康检查消耗远程配额
func (s *CloudinaryStorage) Health(ctx context.Context) error {
	if s.cfg.CloudName == "" {
		return fmt.Errorf("cloudinary is not configured")
	}
	return ctx.Err()
}

// Name 返回存储名称
func (s *CloudinaryStorage) Name() string {
	return "cloudinary"
}

// sign 签名为 SHA-1(待签名串 + secret) 的小写十六进制
func (s *CloudinaryStorage) sign(payload string) string {
	sum := sha1.Sum([]byte(payload + s.cfg.APISecret))
	return hex.EncodeToString(sum[:])
}

func (s *CloudinaryStorage) endpoint(action string) string {
	return fmt.Sprintf("%s/%s/image/%s", s.cfg.BaseURL, url.PathEscape(s.cfg.CloudName), action)
}

// post 发送表单请求，非 2xx 返回 *RemoteError，网络错误返回 ErrRemoteUnreachable
func (s *CloudinaryStorage) post(ctx context.Context, action string, form url.Values) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRemoteUnreachable, action, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(action), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRemoteUnreachable, action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read response: %v", ErrRemoteUnreachable, action, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Op: action, StatusCode: resp.StatusCode, Body: truncate(string(body))}
	}
	return body, nil
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

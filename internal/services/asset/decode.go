package asset

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// defaultMimeType 无法识别格式时按 PNG 上传
const defaultMimeType = "image/png"

// ImageInfo 嗅探得到的图片元信息
type ImageInfo struct {
	MimeType string
	Width    int
	Height   int
}

// DecodePayload 解码 base64 负载，允许带 data URI 前缀
func DecodePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 || !strings.Contains(payload[:idx], ";base64") {
			return nil, fmt.Errorf("%w: malformed data uri", ErrInvalidInput)
		}
		payload = payload[idx+1:]
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// 兼容省略填充的客户端
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: not valid base64", ErrInvalidInput)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}
	return data, nil
}

// SniffImage 读取图片头部获取格式与尺寸
func SniffImage(data []byte) (*ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported image format", ErrInvalidInput)
	}
	return &ImageInfo{
		MimeType: "image/" + format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

package utils

import "strings"

// GetSafeExtension 返回图片 MIME 类型对应的扩展名，用于拼接对象存储的 key
// 非白名单类型返回空字符串，key 只剩内容哈希
func GetSafeExtension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.ToLower(strings.TrimSpace(base)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp", "image/x-ms-bmp":
		return ".bmp"
	default:
		return ""
	}
}

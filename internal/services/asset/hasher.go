package asset

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash 计算解码后图片内容的 SHA-256，返回小写十六进制
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

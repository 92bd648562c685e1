package utils

import (
	"log"
	"strings"
	"unicode"

	"github.com/anoixa/storefront-assets/config"
)

// SanitizeLogMessage 去掉不可打印字符，防止日志注入
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == 10 || r == 9 {
			sb.WriteRune(r)
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// LogIfDev 仅在开发构建中输出
func LogIfDev(msg string) {
	if config.IsDevelopment() {
		log.Println(msg)
	}
}

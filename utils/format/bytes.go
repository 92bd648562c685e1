package format

import (
	"strconv"
)

const byteUnit = 1024

var units = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// HumanReadableSize 将字节数转换为人类可读的格式，保留两位小数
func HumanReadableSize(bytes int64) string {
	return HumanReadableSizeWithPrecision(bytes, 2)
}

// HumanReadableSizeWithPrecision 自定义精度转换
func HumanReadableSizeWithPrecision(bytes int64, precision int) string {
	if bytes < byteUnit {
		return strconv.FormatInt(bytes, 10) + " B"
	}

	div, exp := int64(byteUnit), 1
	for n := bytes / byteUnit; n >= byteUnit && exp < len(units)-1; n /= byteUnit {
		div *= byteUnit
		exp++
	}

	return strconv.FormatFloat(float64(bytes)/float64(div), 'f', precision, 64) + " " + units[exp]
}

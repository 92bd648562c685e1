package utils

import "log"

// SafeGo 启动后台 goroutine，panic 只记录不扩散
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[SafeGo] %s panic recovered: %v", name, err)
			}
		}()
		fn()
	}()
}

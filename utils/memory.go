package utils

import (
	"log"
	"runtime"
	"time"

	"github.com/anoixa/storefront-assets/config"
)

// MemoryStats 进程内存快照，/metrics 与开发日志使用
type MemoryStats struct {
	HeapAllocMB float64   `json:"heap_alloc_mb"`
	HeapSysMB   float64   `json:"heap_sys_mb"`
	HeapInUseMB float64   `json:"heap_in_use_mb"`
	StackSysMB  float64   `json:"stack_sys_mb"`
	NumGC       uint32    `json:"num_gc"`
	LastGCTime  time.Time `json:"last_gc_time"`
	Goroutines  int       `json:"goroutines"`
}

func bytesToMB(bytes uint64) float64 {
	return float64(bytes) / 1024 / 1024
}

// GetMemoryStats 获取当前内存统计
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		HeapAllocMB: bytesToMB(m.HeapAlloc),
		HeapSysMB:   bytesToMB(m.HeapSys),
		HeapInUseMB: bytesToMB(m.HeapInuse),
		StackSysMB:  bytesToMB(m.StackSys),
		NumGC:       m.NumGC,
		LastGCTime:  time.Unix(0, int64(m.LastGC)),
		Goroutines:  runtime.NumGoroutine(),
	}
}

// MonitorMemory 开发构建下打印任务前后的堆内存变化
// 用法: defer utils.MonitorMemory("batch upload")()
func MonitorMemory(operation string) func() {
	if !config.IsDevelopment() {
		return func() {}
	}
	before := GetMemoryStats()

	return func() {
		after := GetMemoryStats()
		log.Printf("[Memory][%s] Delta=%+.2fMB (Before=%.2fMB, After=%.2fMB), Goroutines=%d",
			operation,
			after.HeapAllocMB-before.HeapAllocMB,
			before.HeapAllocMB,
			after.HeapAllocMB,
			after.Goroutines,
		)
	}
}

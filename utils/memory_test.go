package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMemoryStats(t *testing.T) {
	stats := GetMemoryStats()

	assert.Greater(t, stats.HeapAllocMB, 0.0)
	assert.GreaterOrEqual(t, stats.HeapSysMB, stats.HeapInUseMB)
	assert.Greater(t, stats.Goroutines, 0)
}

func TestMonitorMemory_ReturnsCallable(t *testing.T) {
	done := MonitorMemory("test")
	assert.NotNil(t, done)
	done()
}

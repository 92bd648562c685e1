package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		UploadMaxSizeMB:  3,
		RemoteDriver:     "cloudinary",
		CloudName:        "demo",
		CloudAPIKey:      "key",
		CloudAPISecret:   "secret",
		AsyncCoreWorkers: 10,
		AsyncMaxWorkers:  20,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero_upload_limit", func(c *Config) { c.UploadMaxSizeMB = 0 }, true},
		{"max_below_core", func(c *Config) { c.AsyncMaxWorkers = 5 }, true},
		{"cloudinary_without_secret", func(c *Config) { c.CloudAPISecret = "" }, true},
		{"local_without_cloud_credentials", func(c *Config) {
			c.RemoteDriver = "local"
			c.CloudName = ""
			c.CloudAPIKey = ""
			c.CloudAPISecret = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_UploadMaxBytes(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, int64(3*1024*1024), cfg.UploadMaxBytes())
}

func TestConfig_Addr(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())

	cfg = &Config{ServerHost: "127.0.0.1", ServerPort: 9000}
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
}

func TestConfig_BaseURL(t *testing.T) {
	cfg := &Config{ServerDomain: "https://shop.example.com/"}
	assert.Equal(t, "https://shop.example.com", cfg.BaseURL())

	cfg = &Config{ServerHost: "0.0.0.0", ServerPort: 8080}
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL())
}

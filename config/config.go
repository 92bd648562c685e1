package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerDomain       string        `mapstructure:"server_domain"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`
	ServerMaxInflight  int64         `mapstructure:"server_max_inflight"`

	// 数据库配置
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// 缓存配置
	CacheType          string        `mapstructure:"cache_type"`
	CacheAssetTTL      time.Duration `mapstructure:"cache_asset_ttl"`
	CacheMaxCostMB     int64         `mapstructure:"cache_max_cost_mb"`
	CacheRedisAddr     string        `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string        `mapstructure:"cache_redis_password"`
	CacheRedisDB       int           `mapstructure:"cache_redis_db"`

	// 限流配置
	RateLimitApiRPS     float64       `mapstructure:"rate_limit_api_rps"`
	RateLimitApiBurst   int           `mapstructure:"rate_limit_api_burst"`
	RateLimitExpireTime time.Duration `mapstructure:"rate_limit_expire_time"`

	// 上传配置
	UploadMaxSizeMB    int  `mapstructure:"upload_max_size_mb"`
	UploadMaxBatchSize int  `mapstructure:"upload_max_batch_size"`
	UploadRequireImage bool `mapstructure:"upload_require_image"`

	// 远程对象存储
	RemoteDriver string `mapstructure:"remote_driver"`

	CloudName      string        `mapstructure:"cloud_name"`
	CloudAPIKey    string        `mapstructure:"cloud_api_key"`
	CloudAPISecret string        `mapstructure:"cloud_api_secret"`
	CloudBaseURL   string        `mapstructure:"cloud_base_url"`
	CloudTimeout   time.Duration `mapstructure:"cloud_timeout"`
	CloudRPS       float64       `mapstructure:"cloud_rps"`

	MinioEndpoint        string `mapstructure:"minio_endpoint"`
	MinioAccessKeyID     string `mapstructure:"minio_access_key_id"`
	MinioSecretAccessKey string `mapstructure:"minio_secret_access_key"`
	MinioBucket          string `mapstructure:"minio_bucket"`
	MinioUseSSL          bool   `mapstructure:"minio_use_ssl"`
	MinioPublicBaseURL   string `mapstructure:"minio_public_base_url"`

	WebDAVURL           string `mapstructure:"webdav_url"`
	WebDAVUsername      string `mapstructure:"webdav_username"`
	WebDAVPassword      string `mapstructure:"webdav_password"`
	WebDAVRoot          string `mapstructure:"webdav_root"`
	WebDAVPublicBaseURL string `mapstructure:"webdav_public_base_url"`

	LocalStoragePath string `mapstructure:"local_storage_path"`

	// 后台任务池（远程删除）
	AsyncCoreWorkers int           `mapstructure:"async_core_workers"`
	AsyncMaxWorkers  int           `mapstructure:"async_max_workers"`
	AsyncQueueSize   int           `mapstructure:"async_queue_size"`
	AsyncKeepAlive   time.Duration `mapstructure:"async_keep_alive"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	configFile := viper.GetString("config_file_path")
	if configFile == "" {
		configFile = ".env"
		viper.SetConfigType("env")
	}
	viper.SetConfigFile(configFile)

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Info: %s not found, using defaults and environment variables\n", configFile)
	} else {
		fmt.Fprintf(os.Stderr, "Info: Loaded configuration from %s\n", configFile)
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		viper.BindEnv(key, strings.ToUpper(key))
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	if err := globalConfig.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Invalid config, %v\n", err)
		os.Exit(1)
	}
}

// setDefaults 设置默认值
func setDefaults() {
	// 服务器配置默认值
	viper.SetDefault("server_host", "127.0.0.1")
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_domain", "")
	viper.SetDefault("server_read_timeout", "15s")
	viper.SetDefault("server_write_timeout", "60s")
	viper.SetDefault("server_idle_timeout", "120s")
	viper.SetDefault("server_max_inflight", 100)

	// 数据库配置默认值
	viper.SetDefault("db_type", "sqlite")
	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", 5432)
	viper.SetDefault("db_username", "postgres")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "storefront")
	viper.SetDefault("db_file_path", "")
	viper.SetDefault("db_max_open_conns", 50)
	viper.SetDefault("db_max_idle_conns", 10)
	viper.SetDefault("db_conn_max_lifetime", 3600)

	// 缓存配置默认值
	viper.SetDefault("cache_type", "memory")
	viper.SetDefault("cache_asset_ttl", "1h")
	viper.SetDefault("cache_max_cost_mb", 64)
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)

	// 限流配置默认值
	viper.SetDefault("rate_limit_api_rps", 30.0)
	viper.SetDefault("rate_limit_api_burst", 60)
	viper.SetDefault("rate_limit_expire_time", "10m")

	// 上传配置默认值
	viper.SetDefault("upload_max_size_mb", 3)
	viper.SetDefault("upload_max_batch_size", 10)
	viper.SetDefault("upload_require_image", true)

	// 远程存储默认值
	viper.SetDefault("remote_driver", "cloudinary")
	viper.SetDefault("cloud_name", "")
	viper.SetDefault("cloud_api_key", "")
	viper.SetDefault("cloud_api_secret", "")
	viper.SetDefault("cloud_base_url", "https://api.cloudinary.com/v1_1")
	viper.SetDefault("cloud_timeout", "30s")
	viper.SetDefault("cloud_rps", 10.0)
	viper.SetDefault("minio_endpoint", "")
	viper.SetDefault("minio_access_key_id", "")
	viper.SetDefault("minio_secret_access_key", "")
	viper.SetDefault("minio_bucket", "storefront")
	viper.SetDefault("minio_use_ssl", false)
	viper.SetDefault("minio_public_base_url", "")
	viper.SetDefault("webdav_url", "")
	viper.SetDefault("webdav_username", "")
	viper.SetDefault("webdav_password", "")
	viper.SetDefault("webdav_root", "/storefront")
	viper.SetDefault("webdav_public_base_url", "")
	viper.SetDefault("local_storage_path", "./data/upload")

	// 后台任务池默认值
	viper.SetDefault("async_core_workers", 10)
	viper.SetDefault("async_max_workers", 20)
	viper.SetDefault("async_queue_size", 50)
	viper.SetDefault("async_keep_alive", "30s")
}

// Validate 校验互相依赖的配置项
func (c *Config) Validate() error {
	if c.UploadMaxSizeMB <= 0 {
		return fmt.Errorf("upload_max_size_mb must be positive, got %d", c.UploadMaxSizeMB)
	}
	if c.AsyncMaxWorkers < c.AsyncCoreWorkers {
		return fmt.Errorf("async_max_workers (%d) must be >= async_core_workers (%d)", c.AsyncMaxWorkers, c.AsyncCoreWorkers)
	}
	if c.RemoteDriver == "cloudinary" && (c.CloudName == "" || c.CloudAPIKey == "" || c.CloudAPISecret == "") {
		return fmt.Errorf("remote_driver=cloudinary requires cloud_name, cloud_api_key and cloud_api_secret")
	}
	return nil
}

// UploadMaxBytes 单张图片允许的最大字节数
func (c *Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxSizeMB) << 20
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// BaseURL 返回基础 URL，用于生成本地存储的公开链接
func (c *Config) BaseURL() string {
	if c.ServerDomain != "" {
		return strings.TrimRight(c.ServerDomain, "/")
	}
	host := c.ServerHost
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.ServerPort)
}

package storage

import (
	"fmt"
	"log"
	"sort"

	"github.com/anoixa/storefront-assets/config"
	"github.com/mitchellh/mapstructure"
)

// Factory 存储工厂，负责创建和管理存储提供者
// 默认存储用于上传；删除按记录上的 Driver 路由到创建它的存储
type Factory struct {
	providers       map[string]Provider
	defaultProvider string
}

// NewFactory 按配置初始化所有可用的存储提供者
func NewFactory(cfg *config.Config) (*Factory, error) {
	factory := &Factory{
		providers:       make(map[string]Provider),
		defaultProvider: cfg.RemoteDriver,
	}

	log.Println("Initializing storage providers...")

	for name, opts := range driverOptions(cfg) {
		if !configured(name, opts) {
			continue
		}
		provider, err := build(name, opts)
		if err != nil {
			log.Printf("Failed to initialize %s storage: %v", name, err)
			continue
		}
		factory.providers[name] = provider
		log.Printf("Successfully initialized '%s' storage provider", name)
	}

	if _, ok := factory.providers[factory.defaultProvider]; !ok {
		return nil, fmt.Errorf("default storage type '%s' is not available", factory.defaultProvider)
	}
	log.Printf("Default storage provider set to: '%s'", factory.defaultProvider)

	return factory, nil
}

// NewStaticFactory 使用现成的提供者构建工厂，测试与嵌入场景使用
func NewStaticFactory(defaultName string, providers ...Provider) *Factory {
	factory := &Factory{
		providers:       make(map[string]Provider, len(providers)),
		defaultProvider: defaultName,
	}
	for _, p := range providers {
		factory.providers[p.Name()] = p
	}
	return factory
}

// Get 获取指定名称的存储提供者，名称为空时返回默认存储
func (f *Factory) Get(name string) (Provider, error) {
	if name == "" {
		name = f.defaultProvider
	}

	provider, ok := f.providers[name]
	if !ok {
		return nil, fmt.Errorf("storage provider '%s' not found", name)
	}
	return provider, nil
}

// GetDefault 获取默认存储提供者
func (f *Factory) GetDefault() Provider {
	provider, _ := f.Get(f.defaultProvider)
	return provider
}

// GetDefaultName 获取默认存储提供者名称
func (f *Factory) GetDefaultName() string {
	return f.defaultProvider
}

// ListProviders 列出所有可用的存储提供者名称
func (f *Factory) ListProviders() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// driverOptions 从扁平配置整理出各驱动的参数
func driverOptions(cfg *config.Config) map[string]map[string]interface{} {
	maxUpload := cfg.UploadMaxBytes()
	return map[string]map[string]interface{}{
		"cloudinary": {
			"cloud_name":          cfg.CloudName,
			"api_key":             cfg.CloudAPIKey,
			"api_secret":          cfg.CloudAPISecret,
			"base_url":            cfg.CloudBaseURL,
			"timeout":             cfg.CloudTimeout.String(),
			"max_upload_bytes":    maxUpload,
			"requests_per_second": cfg.CloudRPS,
		},
		"minio": {
			"endpoint":          cfg.MinioEndpoint,
			"access_key_id":     cfg.MinioAccessKeyID,
			"secret_access_key": cfg.MinioSecretAccessKey,
			"bucket":            cfg.MinioBucket,
			"use_ssl":           cfg.MinioUseSSL,
			"public_base_url":   cfg.MinioPublicBaseURL,
			"max_upload_bytes":  maxUpload,
		},
		"webdav": {
			"url":              cfg.WebDAVURL,
			"username":         cfg.WebDAVUsername,
			"password":         cfg.WebDAVPassword,
			"root":             cfg.WebDAVRoot,
			"public_base_url":  cfg.WebDAVPublicBaseURL,
			"max_upload_bytes": maxUpload,
		},
		"local": {
			"path":             cfg.LocalStoragePath,
			"public_base_url":  cfg.BaseURL() + "/uploads",
			"max_upload_bytes": maxUpload,
		},
	}
}

// configured 必填项齐全才初始化
func configured(name string, opts map[string]interface{}) bool {
	required := map[string][]string{
		"cloudinary": {"cloud_name", "api_key", "api_secret"},
		"minio":      {"endpoint", "bucket"},
		"webdav":     {"url"},
		"local":      {"path"},
	}[name]
	for _, key := range required {
		if s, _ := opts[key].(string); s == "" {
			return false
		}
	}
	return true
}

// build 解码参数并创建提供者
func build(name string, opts map[string]interface{}) (Provider, error) {
	switch name {
	case "cloudinary":
		var c CloudinaryConfig
		if err := decodeOptions(opts, &c); err != nil {
			return nil, err
		}
		return NewCloudinaryStorage(c)
	case "minio":
		var c MinioConfig
		if err := decodeOptions(opts, &c); err != nil {
			return nil, err
		}
		return NewMinioStorage(c)
	case "webdav":
		var c WebDAVConfig
		if err := decodeOptions(opts, &c); err != nil {
			return nil, err
		}
		return NewWebDAVStorage(c)
	case "local":
		var c LocalConfig
		if err := decodeOptions(opts, &c); err != nil {
			return nil, err
		}
		return NewLocalStorage(c)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", name)
	}
}

func decodeOptions(opts map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := decoder.Decode(opts); err != nil {
		return fmt.Errorf("failed to decode storage options: %w", err)
	}
	return nil
}

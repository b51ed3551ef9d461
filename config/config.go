package config

import (
	"time"

	"github.com/spf13/viper"
)

// AuthConfig 保存鉴权相关配置。JWTSecret 是托管后端签发令牌时使用的 HMAC 密钥。
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
	Issuer    string `mapstructure:"issuer"`
}

// CacheConfig 控制本地照片缓存的行为。
// TTL 之后的条目视为过期；Version 变更时旧条目全部失效。
type CacheConfig struct {
	Dir     string        `mapstructure:"dir"`
	TTL     time.Duration `mapstructure:"ttl"`
	Version string        `mapstructure:"version"`
}

// JobsConfig 控制后台任务的生命周期参数。
// PendingTimeout 是任务允许处于 pending 状态的最长时间，超过后会被清理器强制失败。
type JobsConfig struct {
	PendingTimeout time.Duration `mapstructure:"pendingTimeout"`
	ReapInterval   time.Duration `mapstructure:"reapInterval"`
	WorkerCount    int           `mapstructure:"workerCount"`
	BatchSize      int           `mapstructure:"batchSize"`
}

// UploadsConfig 控制照片上传与入库流程。
type UploadsConfig struct {
	LibraryPath     string `mapstructure:"libraryPath"`
	BackupPath      string `mapstructure:"backupPath"`
	ThumbnailWidth  int    `mapstructure:"thumbnailWidth"`
	ThumbnailHeight int    `mapstructure:"thumbnailHeight"`
	MaxUploadMB     int64  `mapstructure:"maxUploadMB"`
}

type Config struct {
	Server struct {
		Port    string        `mapstructure:"port"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"server"`

	Database struct {
		URI  string `mapstructure:"uri"`
		Name string `mapstructure:"name"`
	} `mapstructure:"database"`

	Logger struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		Path   string `mapstructure:"path"`
	} `mapstructure:"logger"`

	Auth    AuthConfig    `mapstructure:"auth"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Uploads UploadsConfig `mapstructure:"uploads"`
}

var C *Config

// LoadConfig 从指定目录读取 config.yaml 并填充全局配置 C。
func LoadConfig(path string) (err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	// 配置文件中缺失的字段使用以下默认值
	v.SetDefault("cache.dir", ".photocache")
	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("cache.version", "v2")
	v.SetDefault("jobs.pendingTimeout", 10*time.Minute)
	v.SetDefault("jobs.reapInterval", time.Minute)
	v.SetDefault("jobs.batchSize", 100)
	v.SetDefault("uploads.thumbnailWidth", 200)
	v.SetDefault("uploads.thumbnailHeight", 200)
	v.SetDefault("uploads.maxUploadMB", 50)

	if err = v.ReadInConfig(); err != nil {
		return
	}

	err = v.Unmarshal(&C)
	return
}

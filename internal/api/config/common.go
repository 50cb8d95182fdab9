package config

import "time"

// Config 配置主体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Identity IdentityConfig `mapstructure:"identity"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Presence PresenceConfig `mapstructure:"presence"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// BackendConfig 文档存储后端，mongo 或 memory
type BackendConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// CacheConfig 本地持久缓存，driver 为 sqlite、redis 或 memory
type CacheConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// IdentityConfig 身份认证与会话令牌
type IdentityConfig struct {
	JWTSecret string          `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration   `mapstructure:"token_ttl"`
	Issuer    string          `mapstructure:"issuer"`
	Federated FederatedConfig `mapstructure:"federated"`
}

// FederatedConfig 第三方登录，由令牌端点签发 ID Token
type FederatedConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TokenURL     string        `mapstructure:"token_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Issuer       string        `mapstructure:"issuer"`
	SigningKey   string        `mapstructure:"signing_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// SyncConfig 消息同步策略
type SyncConfig struct {
	Policy             string        `mapstructure:"policy"`
	Optimistic         bool          `mapstructure:"optimistic"`
	PendingMatchWindow time.Duration `mapstructure:"pending_match_window"`
	TypingTTL          time.Duration `mapstructure:"typing_ttl"`
}

// PresenceConfig 在线状态心跳
type PresenceConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Heartbeat string `mapstructure:"heartbeat"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	InternalEndpoint string `mapstructure:"internal_endpoint"`
	ExternalEndpoint string `mapstructure:"external_endpoint"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	Bucket           string `mapstructure:"bucket"`
	InternalUseSSL   bool   `mapstructure:"internal_use_ssl"`
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoadConfig 从文件加载配置，path 为空时读取 ./configs/config.yaml；环境变量 PARLEY_* 可覆盖
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("log.level", "info")

	v.SetDefault("backend.driver", "memory")
	v.SetDefault("mongo.url", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.database", "parley")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "./data/cache.db")

	v.SetDefault("identity.jwt_secret", "parley-dev-secret")
	v.SetDefault("identity.token_ttl", 24*time.Hour)
	v.SetDefault("identity.issuer", "Parley")
	v.SetDefault("identity.federated.timeout", 10*time.Second)

	v.SetDefault("sync.policy", "auto")
	v.SetDefault("sync.optimistic", true)
	v.SetDefault("sync.pending_match_window", time.Minute)
	v.SetDefault("sync.typing_ttl", 3*time.Second)

	v.SetDefault("presence.enabled", true)
	v.SetDefault("presence.heartbeat", "@every 1m")
}

// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Change feed drivers.
const (
	FeedMemory   = "memory"
	FeedRedis    = "redis"
	FeedPostgres = "postgres"
)

// Dashboard notice sinks.
const (
	NoticesAuto    = "auto"
	NoticesConsole = "console"
	NoticesLog     = "log"
)

// Config stores all configuration of the backend server.
//
// The values are read by viper fron a config file or environement variables.
type Config struct {
	DBDriver             string        `mapstructure:"DB_DRIVER"`
	DBSource             string        `mapstructure:"DB_SOURCE"`
	ServerAddress        string        `mapstructure:"SERVER_ADDRESS"`
	TokenSymmetricKey    string        `mapstructure:"TOKEN_SYMMETRIC_KEY"`
	AccessTokenDuration  time.Duration `mapstructure:"ACCESS_TOKEN_DURATION"`
	RefreshTokenDuration time.Duration `mapstructure:"REFRESH_TOKEN_DURATION"`
	Environement         string        `mapstructure:"GO_ENV"`
	ChangeFeedDriver     string        `mapstructure:"CHANGEFEED_DRIVER"`
	RedisURL             string        `mapstructure:"REDIS_URL"`
	RedisChannel         string        `mapstructure:"REDIS_CHANNEL"`
}

// ClientConfig stores the configuration of the dashboard client.
type ClientConfig struct {
	BackendURL   string        `mapstructure:"BACKEND_URL"`
	Email        string        `mapstructure:"DASHBOARD_EMAIL"`
	Password     string        `mapstructure:"DASHBOARD_PASSWORD"`
	FullName     string        `mapstructure:"DASHBOARD_FULL_NAME"`
	Timeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	Notices      string        `mapstructure:"DASHBOARD_NOTICES"`
	Environement string        `mapstructure:"GO_ENV"`
}

// Load read server configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	v := newViper(path, "app")
	v.SetDefault("CHANGEFEED_DRIVER", FeedMemory)
	v.SetDefault("REDIS_CHANNEL", "unipay_changes")

	err := v.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = v.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}

// LoadClient reads dashboard configuration from file or environment variables.
//
// A missing config file is not an error, the environment alone is enough.
func LoadClient(path string) (ClientConfig, error) {
	var c ClientConfig

	v := newViper(path, "dashboard")
	v.SetDefault("BACKEND_URL", "http://localhost:8080")
	v.SetDefault("REQUEST_TIMEOUT", 10*time.Second)
	v.SetDefault("DASHBOARD_NOTICES", NoticesAuto)

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{"DASHBOARD_EMAIL", "DASHBOARD_PASSWORD", "DASHBOARD_FULL_NAME", "DASHBOARD_NOTICES", "GO_ENV"} {
		if err := v.BindEnv(key); err != nil {
			return c, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

func newViper(path, name string) *viper.Viper {
	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName(name)
	v.SetConfigType("env")

	v.AutomaticEnv()

	return v
}

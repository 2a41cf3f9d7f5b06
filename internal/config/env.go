package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".workledger/data"`
	// Timeout bounds every store operation; expiry surfaces as Unavailable.
	Timeout time.Duration `envconfig:"STORAGE_TIMEOUT" default:"5s"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"workledger/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type OverdueEnv struct {
	CheckInterval  time.Duration `envconfig:"OVERDUE_CHECK_INTERVAL" default:"1h"`
	DueSoonWindow  time.Duration `envconfig:"OVERDUE_DUE_SOON_WINDOW" default:"24h"`
	RenotifyWindow time.Duration `envconfig:"OVERDUE_RENOTIFY_WINDOW" default:"23h"`
}

type Env struct {
	BaseEnv
	StorageEnv
	OverdueEnv
}

const namespace = "WORKLEDGER"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

type RegistryEnv struct {
	Type    string `envconfig:"REGISTRY_TYPE" default:"local"`
	BaseDir string `envconfig:"REGISTRY_BASE_DIR" default:".spectrum/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"spectrum/"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	// Lock settings only apply to local registries.
	LockTimeoutSeconds int `envconfig:"LOCK_TIMEOUT_SECONDS" default:"5"`
}

type NotifierEnv struct {
	BridgeURL     string `envconfig:"BRIDGE_URL"`
	BridgeChannel string `envconfig:"BRIDGE_CHANNEL" default:"#spectrum"`
}

type TrackerEnv struct {
	TrackerURL          string `envconfig:"TRACKER_URL"`
	TrackerToken        string `envconfig:"TRACKER_TOKEN"`
	TrackerSyncInterval int    `envconfig:"TRACKER_SYNC_SECONDS" default:"60"`
}

type Env struct {
	BaseEnv
	RegistryEnv
	NotifierEnv
	TrackerEnv
}

const namespace = "SPECTRUM"

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

func BaseEnvFromEnv(env *Env) *BaseEnv {
	return &env.BaseEnv
}

func RegistryEnvFromEnv(env *Env) *RegistryEnv {
	return &env.RegistryEnv
}

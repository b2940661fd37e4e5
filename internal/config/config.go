package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	BridgeBaseURL string
	BridgeWSURL   string

	ViewerBaseURL string

	RedisURL    string
	DatabaseURL string

	RecordFPS          int
	EpisodeTimeSec     int
	CheckpointInterval int
	PlaySounds         bool

	MsgOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		RecordFPS:          30,
		EpisodeTimeSec:     60,
		CheckpointInterval: 5,
		PlaySounds:         true,
	}

	cfg.BridgeBaseURL = strings.TrimSpace(os.Getenv("BRIDGE_BASE_URL"))
	cfg.BridgeWSURL = strings.TrimSpace(os.Getenv("BRIDGE_WS_URL"))
	cfg.ViewerBaseURL = strings.TrimSpace(os.Getenv("VIEWER_BASE_URL"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("RECORD_FPS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RecordFPS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EPISODE_TIME_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EpisodeTimeSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHECKPOINT_INTERVAL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CheckpointInterval = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PLAY_SOUNDS")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PlaySounds = b
		}
	}
	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))

	if cfg.BridgeBaseURL == "" {
		return nil, errors.New("BRIDGE_BASE_URL is required")
	}
	if cfg.BridgeWSURL == "" {
		return nil, errors.New("BRIDGE_WS_URL is required")
	}

	return cfg, nil
}

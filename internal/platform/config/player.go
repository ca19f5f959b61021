package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Player holds playback tuning read from a YAML file. Zero values mean
// "use the built-in default".
type Player struct {
	StreamTimeoutMs            int     `yaml:"stream_timeout_ms"`
	MaxRetries                 int     `yaml:"max_retries"`
	BaseRetryDelayMs           int     `yaml:"base_retry_delay_ms"`
	MaxRetryDelayMs            int     `yaml:"max_retry_delay_ms"`
	InPlaceRetries             int     `yaml:"in_place_retries"`
	HealthCheckIntervalMs      int     `yaml:"health_check_interval_ms"`
	ThumbnailRefreshIntervalMs int     `yaml:"thumbnail_refresh_interval_ms"`
	ThumbnailRetryDelayMs      int     `yaml:"thumbnail_retry_delay_ms"`
	BufferLowWaterSec          float64 `yaml:"buffer_low_water_sec"`
	BufferHighWaterSec         float64 `yaml:"buffer_high_water_sec"`
	ConfirmGraceMs             int     `yaml:"confirm_grace_ms"`
}

// LoadPlayer reads player options from path. An empty path returns the zero
// Player and no error.
func LoadPlayer(path string) (Player, error) {
	var p Player
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read player config: %w", err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("parse player config %s: %w", path, err)
	}
	return p, nil
}

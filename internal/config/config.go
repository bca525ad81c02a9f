package config

import (
	"os"
	"strconv"
	"time"

	"github.com/satindergrewal/cueline/internal/validation"
)

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port    int    `json:"port" validate:"gt=0,lt=65536"`
	DataDir string `json:"data_dir" validate:"required"`

	// Logging
	LogLevel  string `json:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `json:"log_format" validate:"oneof=text json"`
	LogSource bool   `json:"log_source"`

	// Capture
	Capture    string `json:"capture" validate:"oneof=portaudio webrtc none"`
	SampleRate int    `json:"sample_rate" validate:"gte=8000,lte=192000"`
	FrameRate  int    `json:"frame_rate" validate:"gte=1,lte=240"` // session ticks per second

	// Defaults for songs that leave presentation settings empty
	SpeedPxPerSecond float64 `json:"speed_px_per_second" validate:"gt=0"`
	FontSizePx       float64 `json:"font_size_px" validate:"gt=0"`
	ThresholdDB      float64 `json:"threshold_db" validate:"gte=-140,lte=0"`

	// Layout until the presentation layer reports its own measurements
	ViewportHeight float64 `json:"viewport_height" validate:"gte=0"`
	LineHeight     float64 `json:"line_height" validate:"gt=0"`

	// Loudness and progress events per second per subscriber
	EventRate float64 `json:"event_rate" validate:"gt=0"`
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:    envInt("CUELINE_PORT", 8080),
		DataDir: envStr("CUELINE_DATA_DIR", "./data"),

		LogLevel:  envStr("CUELINE_LOG_LEVEL", "info"),
		LogFormat: envStr("CUELINE_LOG_FORMAT", "text"),
		LogSource: envBool("CUELINE_LOG_SOURCE", false),

		Capture:    envStr("CUELINE_CAPTURE", "webrtc"),
		SampleRate: envInt("CUELINE_SAMPLE_RATE", 48000),
		FrameRate:  envInt("CUELINE_FRAME_RATE", 60),

		SpeedPxPerSecond: envFloat("CUELINE_SPEED", 30),
		FontSizePx:       envFloat("CUELINE_FONT_SIZE", 32),
		ThresholdDB:      envFloat("CUELINE_THRESHOLD_DB", -35),

		ViewportHeight: envFloat("CUELINE_VIEWPORT_HEIGHT", 720),
		LineHeight:     envFloat("CUELINE_LINE_HEIGHT", 1.5),

		EventRate: envFloat("CUELINE_EVENT_RATE", 15),
	}
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	return validation.Struct(c)
}

// TickInterval is the session frame period.
func (c Config) TickInterval() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FrameRate)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

package config

import (
	"os"
	"strconv"
)

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Library and persisted preferences
	MusicDir     string // empty disables scanning and watching
	SettingsPath string

	// Analyser
	FFTSize   int
	Smoothing float64

	// Visualizer canvas
	CanvasWidth  int
	CanvasHeight int
	FPS          int

	// Playback
	Volume  float64 // percent, used until settings say otherwise
	Speaker bool    // also play on the local audio device

	// Output encoders
	MP3Bitrate  int // kbit/s
	OpusBitrate int // bit/s
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port: envInt("SPECTRA_PORT", 8080),

		MusicDir:     envStr("SPECTRA_MUSIC_DIR", ""),
		SettingsPath: envStr("SPECTRA_SETTINGS_PATH", "spectra-settings.json"),

		FFTSize:   envInt("SPECTRA_FFT_SIZE", 4096),
		Smoothing: envFloat("SPECTRA_SMOOTHING", 0.8),

		CanvasWidth:  envInt("SPECTRA_CANVAS_WIDTH", 800),
		CanvasHeight: envInt("SPECTRA_CANVAS_HEIGHT", 300),
		FPS:          envInt("SPECTRA_FPS", 60),

		Volume:  envFloat("SPECTRA_VOLUME", 50),
		Speaker: envBool("SPECTRA_SPEAKER", false),

		MP3Bitrate:  envInt("SPECTRA_MP3_BITRATE", 192),
		OpusBitrate: envInt("SPECTRA_OPUS_BITRATE", 128000),
	}
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

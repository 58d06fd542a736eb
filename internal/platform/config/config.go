package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config is the effective segmenter configuration. Values are layered:
// defaults, then a TOML file, then the environment, then command-line flags.
type Config struct {
	Location         string  `toml:"location" comment:"Segment path template; %05d is replaced by the sequence number"`
	PlaylistLocation string  `toml:"playlist_location" comment:"Where the playlist is written"`
	PlaylistRoot     string  `toml:"playlist_root" comment:"Optional URI prefix for segments in the playlist"`
	PlaylistLength   int     `toml:"playlist_length" comment:"Segments advertised in the playlist (0 = all)"`
	MaxFiles         int     `toml:"max_files" comment:"Segment files kept on disk (0 = never delete)"`
	TargetDuration   float64 `toml:"target_duration" comment:"Segment duration in seconds"`
	PlaylistType     string  `toml:"playlist_type" comment:"Empty, EVENT or VOD"`
	MetricsAddr      string  `toml:"metrics_addr" comment:"Ops listener address for /metrics and /status (empty = disabled)"`
	LogLevel         string  `toml:"log_level" comment:"debug, info, warn or error"`
	LogFormat        string  `toml:"log_format" comment:"json or text"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Location:         "segment%05d.ts",
		PlaylistLocation: "playlist.m3u8",
		PlaylistLength:   5,
		MaxFiles:         10,
		TargetDuration:   15,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// LoadFile returns the defaults overlaid with the TOML file at path. An
// empty path returns the defaults. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv() {
	c.Location = GetEnv("SEGMENT_LOCATION", c.Location)
	c.PlaylistLocation = GetEnv("PLAYLIST_LOCATION", c.PlaylistLocation)
	c.PlaylistRoot = GetEnv("PLAYLIST_ROOT", c.PlaylistRoot)
	c.PlaylistLength = GetEnvInt("PLAYLIST_LENGTH", c.PlaylistLength)
	c.MaxFiles = GetEnvInt("MAX_FILES", c.MaxFiles)
	c.TargetDuration = GetEnvFloat("TARGET_DURATION", c.TargetDuration)
	c.PlaylistType = GetEnv("PLAYLIST_TYPE", c.PlaylistType)
	c.MetricsAddr = GetEnv("METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = GetEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = GetEnv("LOG_FORMAT", c.LogFormat)
}

// Validate checks the logging options. Segment options are validated by
// the segmenter itself.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	return nil
}

// Encode renders c as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat is GetEnvInt for floating point values.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_empty_path_returns_defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile_overlays_defaults(t *testing.T) {
	path := writeFile(t, "segmenter.toml", `
location = "/srv/hls/seg%05d.ts"
playlist_length = 3
target_duration = 6.5
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/hls/seg%05d.ts", cfg.Location)
	assert.Equal(t, 3, cfg.PlaylistLength)
	assert.Equal(t, 6.5, cfg.TargetDuration)
	assert.Equal(t, "playlist.m3u8", cfg.PlaylistLocation, "unset keys keep their default")
	assert.Equal(t, 10, cfg.MaxFiles)
}

func TestLoadFile_rejects_unknown_keys(t *testing.T) {
	path := writeFile(t, "segmenter.toml", "max_segments = 3\n")
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_segments")
}

func TestLoadFile_missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PLAYLIST_LENGTH", "0")
	t.Setenv("MAX_FILES", "not-a-number")
	t.Setenv("TARGET_DURATION", "2.5")
	t.Setenv("PLAYLIST_ROOT", "https://cdn.example.com/live")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, 0, cfg.PlaylistLength)
	assert.Equal(t, 10, cfg.MaxFiles, "invalid integers fall back")
	assert.Equal(t, 2.5, cfg.TargetDuration)
	assert.Equal(t, "https://cdn.example.com/live", cfg.PlaylistRoot)
}

func TestLoad_dotenv(t *testing.T) {
	path := writeFile(t, ".env", "LOG_FORMAT=text\n")
	t.Setenv("LOG_FORMAT", "")
	os.Unsetenv("LOG_FORMAT")

	require.NoError(t, Load(path))
	assert.Equal(t, "text", GetEnv("LOG_FORMAT", "json"))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LogFormat = "xml"
	assert.Error(t, cfg.Validate())
}

func TestEncode(t *testing.T) {
	cfg := Default()
	cfg.MetricsAddr = ":9100"

	data, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "playlist_length = 5")
	assert.Contains(t, string(data), "metrics_addr = ")
	assert.Contains(t, string(data), ":9100")
}

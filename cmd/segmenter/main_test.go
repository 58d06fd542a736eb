package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hls-segmenter/internal/platform/lock"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRun_stdin_single_fragment(t *testing.T) {
	dir := t.TempDir()
	playlist := filepath.Join(dir, "live", "playlist.m3u8")

	_, logs, err := execute(t, "transport-stream-bytes",
		"run",
		"--location", filepath.Join(dir, "live", "seg%05d.ts"),
		"--playlist-location", playlist,
		"--target-duration", "0",
		"--log-format", "text",
	)
	require.NoError(t, err, logs)

	seg, err := os.ReadFile(filepath.Join(dir, "live", "seg00000.ts"))
	require.NoError(t, err)
	assert.Equal(t, "transport-stream-bytes", string(seg))

	data, err := os.ReadFile(playlist)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "#EXTM3U\n#EXT-X-VERSION:3\n"))
	assert.Contains(t, text, "\nseg00000.ts\n")
	assert.True(t, strings.HasSuffix(text, "#EXT-X-ENDLIST\n"))

	assert.Contains(t, logs, "run_id=")
	_, err = os.Stat(lock.PathFor(playlist))
	assert.ErrorIs(t, err, os.ErrNotExist, "lock file is removed on exit")
}

func TestRun_input_file_with_root(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.ts")
	require.NoError(t, os.WriteFile(input, []byte("abc"), 0o644))
	playlist := filepath.Join(dir, "out.m3u8")

	_, logs, err := execute(t, "",
		"run", "-i", input,
		"--location", filepath.Join(dir, "s%05d.ts"),
		"--playlist-location", playlist,
		"--playlist-root", "https://cdn.example.com/live/",
		"--playlist-type", "vod",
	)
	require.NoError(t, err, logs)

	data, err := os.ReadFile(playlist)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#EXT-X-PLAYLIST-TYPE:VOD\n")
	assert.Contains(t, string(data), "\nhttps://cdn.example.com/live/s00000.ts\n")
}

func TestRun_empty_input_writes_nothing(t *testing.T) {
	dir := t.TempDir()
	playlist := filepath.Join(dir, "playlist.m3u8")

	_, logs, err := execute(t, "", "run",
		"--location", filepath.Join(dir, "seg%05d.ts"),
		"--playlist-location", playlist,
	)
	require.NoError(t, err, logs)

	_, err = os.Stat(playlist)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_rejects_locked_output(t *testing.T) {
	dir := t.TempDir()
	playlist := filepath.Join(dir, "playlist.m3u8")

	held, err := lock.Acquire(playlist)
	require.NoError(t, err)
	t.Cleanup(func() { _ = held.Release() })

	_, _, err = execute(t, "data", "run",
		"--location", filepath.Join(dir, "seg%05d.ts"),
		"--playlist-location", playlist,
	)
	assert.ErrorIs(t, err, lock.ErrHeld)
}

func TestRun_invalid_settings(t *testing.T) {
	_, _, err := execute(t, "", "run", "--max-files=-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max files")

	_, _, err = execute(t, "", "run", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

func TestConfig_flags_file_and_env(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segmenter.toml")
	require.NoError(t, os.WriteFile(path, []byte("playlist_length = 3\nmax_files = 4\n"), 0o644))
	t.Setenv("MAX_FILES", "7")

	out, _, err := execute(t, "", "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "playlist_length = 3")
	assert.Contains(t, out, "max_files = 7", "environment overrides the file")
}

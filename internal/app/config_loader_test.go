package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9191
download:
  dest_dir: `+filepath.Join(dir, "media")+`
extractor:
  prefer_library: true
  status_line_limit: 60
queue:
  advance_delay: 1s
`), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, config.Server.Port)
	assert.Equal(t, filepath.Join(dir, "media"), config.Download.DestDir)
	assert.True(t, config.Extractor.PreferLibrary)
	assert.Equal(t, 60, config.Extractor.StatusLineLimit)
	assert.Equal(t, time.Second, config.Queue.AdvanceDelay)
	// untouched sections keep their defaults
	assert.Equal(t, "ffmpeg", config.Transcoder.FFmpegBinary)
	assert.Equal(t, 256, config.Queue.EventBuffer)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0644))

	t.Setenv("CLIPQ_SERVER_PORT", "9292")
	t.Setenv("CLIPQ_EXTRACTOR_YTDLP_BINARY", "/opt/bin/yt-dlp")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9292, config.Server.Port)
	assert.Equal(t, "/opt/bin/yt-dlp", config.Extractor.YTDLPBinary)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 70000\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "videos"), expandPath("~/videos"))
	assert.Equal(t, home+"/clipq", expandPath("$HOME/clipq"))
	assert.Equal(t, "/abs/path", expandPath("/abs/path"))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	config, err := LoadConfig(writeMinimalConfig(t, dir))
	require.NoError(t, err)
	config.Server.Port = 9393

	require.NoError(t, SaveConfig(config, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9393, loaded.Server.Port)
	assert.Equal(t, config.Download.DestDir, loaded.Download.DestDir)
}

func writeMinimalConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  dest_dir: "+filepath.Join(dir, "out")+"\n"), 0644))
	return path
}

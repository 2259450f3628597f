package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/yourusername/clipq-go/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.clipq")
		v.AddConfigPath("/etc/clipq")
	}

	// CLIPQ_SERVER_PORT overrides server.port and so on
	v.SetEnvPrefix("CLIPQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers every key so AutomaticEnv also applies to keys the
// config file doesn't mention
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port",
		"download.dest_dir", "download.default_format", "download.logs_dir",
		"extractor.ytdlp_binary", "extractor.output_template",
		"extractor.status_line_limit", "extractor.prefer_library",
		"transcoder.ffmpeg_binary", "transcoder.video_codec", "transcoder.audio_codec",
		"queue.advance_delay", "queue.event_buffer",
		"thumbnail.enabled", "thumbnail.timeout",
		"notification.enabled", "notification.method",
		"logging.level", "logging.format", "logging.output_path",
	} {
		v.BindEnv(key)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.DestDir = expandPath(config.Download.DestDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.DestDir == "" {
		return fmt.Errorf("download destination directory not configured")
	}

	if config.Download.LogsDir == "" {
		return fmt.Errorf("logs directory not configured")
	}

	if config.Extractor.YTDLPBinary == "" {
		return fmt.Errorf("yt-dlp binary not configured")
	}

	if config.Transcoder.FFmpegBinary == "" {
		return fmt.Errorf("ffmpeg binary not configured")
	}

	if config.Queue.AdvanceDelay < 0 {
		return fmt.Errorf("advance delay cannot be negative")
	}

	if config.Queue.EventBuffer < 1 {
		return fmt.Errorf("event buffer must be at least 1")
	}

	if config.Download.DefaultFormat == "" {
		config.Download.DefaultFormat = domain.DefaultFormat
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	// dotted keys keep the snake_case names LoadConfig reads back
	settings := map[string]interface{}{
		"server.host":                 config.Server.Host,
		"server.port":                 config.Server.Port,
		"download.dest_dir":           config.Download.DestDir,
		"download.default_format":     config.Download.DefaultFormat,
		"download.logs_dir":           config.Download.LogsDir,
		"extractor.ytdlp_binary":      config.Extractor.YTDLPBinary,
		"extractor.output_template":   config.Extractor.OutputTemplate,
		"extractor.status_line_limit": config.Extractor.StatusLineLimit,
		"extractor.prefer_library":    config.Extractor.PreferLibrary,
		"transcoder.ffmpeg_binary":    config.Transcoder.FFmpegBinary,
		"transcoder.video_codec":      config.Transcoder.VideoCodec,
		"transcoder.audio_codec":      config.Transcoder.AudioCodec,
		"queue.advance_delay":         config.Queue.AdvanceDelay.String(),
		"queue.event_buffer":          config.Queue.EventBuffer,
		"thumbnail.enabled":           config.Thumbnail.Enabled,
		"thumbnail.timeout":           config.Thumbnail.Timeout.String(),
		"notification.enabled":        config.Notification.Enabled,
		"notification.method":         config.Notification.Method,
		"logging.level":               config.Logging.Level,
		"logging.format":              config.Logging.Format,
		"logging.output_path":         config.Logging.OutputPath,
	}
	for key, value := range settings {
		v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

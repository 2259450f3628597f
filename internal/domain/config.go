package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Extractor    ExtractorConfig    `mapstructure:"extractor"`
	Transcoder   TranscoderConfig   `mapstructure:"transcoder"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Thumbnail    ThumbnailConfig    `mapstructure:"thumbnail"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	DestDir       string `mapstructure:"dest_dir"`
	DefaultFormat string `mapstructure:"default_format"`
	LogsDir       string `mapstructure:"logs_dir"`
}

// ExtractorConfig configures both extraction strategies
type ExtractorConfig struct {
	YTDLPBinary     string `mapstructure:"ytdlp_binary"`
	OutputTemplate  string `mapstructure:"output_template"`
	StatusLineLimit int    `mapstructure:"status_line_limit"`
	// PreferLibrary disables the yt-dlp strategy even for trimmed entries
	PreferLibrary bool `mapstructure:"prefer_library"`
}

// TranscoderConfig configures ffmpeg trimming
type TranscoderConfig struct {
	FFmpegBinary string `mapstructure:"ffmpeg_binary"`
	VideoCodec   string `mapstructure:"video_codec"`
	AudioCodec   string `mapstructure:"audio_codec"`
}

// QueueConfig contains queue-related configuration
type QueueConfig struct {
	AdvanceDelay time.Duration `mapstructure:"advance_delay"`
	EventBuffer  int           `mapstructure:"event_buffer"`
}

// ThumbnailConfig configures opportunistic thumbnail fetching
type ThumbnailConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Download: DownloadConfig{
			DestDir:       "$HOME/Downloads/clipq",
			DefaultFormat: DefaultFormat,
			LogsDir:       "$HOME/.clipq/logs",
		},
		Extractor: ExtractorConfig{
			YTDLPBinary:     "yt-dlp",
			OutputTemplate:  "%(title)s.%(ext)s",
			StatusLineLimit: 100,
			PreferLibrary:   false,
		},
		Transcoder: TranscoderConfig{
			FFmpegBinary: "ffmpeg",
			VideoCodec:   "libx264",
			AudioCodec:   "aac",
		},
		Queue: QueueConfig{
			AdvanceDelay: 300 * time.Millisecond,
			EventBuffer:  256,
		},
		Thumbnail: ThumbnailConfig{
			Enabled: true,
			Timeout: 5 * time.Second,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}

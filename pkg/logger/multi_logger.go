package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryQueue    LogCategory = "queue"    // Queue lifecycle events (JSON)
	CategoryError    LogCategory = "error"    // Application errors (JSON)
	CategoryDownload LogCategory = "download" // Raw yt-dlp/ffmpeg output (plain text)
)

// Categories lists every category that has a log file
var Categories = []LogCategory{CategoryQueue, CategoryError, CategoryDownload}

// ValidCategory reports whether c names a known category
func ValidCategory(c LogCategory) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// MultiLogger provides categorized logging with separate daily files.
// Queue and error events are structured JSON; subprocess output goes to the
// download file verbatim.
type MultiLogger struct {
	loggers     map[LogCategory]*zap.Logger
	config      MultiLoggerConfig
	mu          sync.RWMutex
	rawMu       sync.Mutex
	rawFile     *os.File
	currentDate string
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}

	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	ml := &MultiLogger{
		loggers:     make(map[LogCategory]*zap.Logger),
		config:      config,
		currentDate: time.Now().Format("20060102"),
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	queueLogger, err := ml.createStructuredLogger(CategoryQueue, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue logger: %w", err)
	}
	ml.loggers[CategoryQueue] = queueLogger

	errorLogger, err := ml.createStructuredLogger(CategoryError, zapcore.ErrorLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create error logger: %w", err)
	}
	ml.loggers[CategoryError] = errorLogger

	return ml, nil
}

// createStructuredLogger creates a JSON-formatted logger for a category
func (ml *MultiLogger) createStructuredLogger(category LogCategory, level zapcore.Level) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = ""

	file, err := os.OpenFile(ml.categoryLogPath(category), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), level)
	return zap.New(core), nil
}

// categoryLogPath generates a log file path for a category with current date
func (ml *MultiLogger) categoryLogPath(category LogCategory) string {
	filename := fmt.Sprintf("%s-%s.log", category, time.Now().Format("20060102"))
	return filepath.Join(ml.config.LogsDir, filename)
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if logger, ok := ml.loggers[category]; ok {
		return logger
	}
	return ml.loggers[CategoryError]
}

// Queue returns the queue logger (JSON format)
func (ml *MultiLogger) Queue() *zap.Logger {
	return ml.GetLogger(CategoryQueue)
}

// Error returns the error logger (JSON format)
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogAppError logs an application-level error
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
}

// LogQueueEvent logs a queue lifecycle event with structured data
func (ml *MultiLogger) LogQueueEvent(event string, fields ...zap.Field) {
	ml.Queue().Info(event, fields...)
}

// WriteDownloadCommand writes the start marker and command line of a subprocess
func (ml *MultiLogger) WriteDownloadCommand(entryID, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	ml.writeRaw(fmt.Sprintf("\n=== [%s] Entry: %s ===\n$ %s\n", timestamp, entryID, cmdLine))
}

// WriteRawDownloadLog appends one line of subprocess output
func (ml *MultiLogger) WriteRawDownloadLog(line string) {
	ml.writeRaw(line + "\n")
}

// WriteDownloadComplete writes the end marker of a subprocess run
func (ml *MultiLogger) WriteDownloadComplete(entryID string, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	ml.writeRaw(fmt.Sprintf("[%s] %s %s: %s\n=== END ===\n", timestamp, entryID, status, message))
}

// writeRaw appends to today's download log, reopening it when the date rolls over
func (ml *MultiLogger) writeRaw(text string) {
	ml.rawMu.Lock()
	defer ml.rawMu.Unlock()

	today := time.Now().Format("20060102")
	if ml.rawFile == nil || today != ml.currentDate {
		if ml.rawFile != nil {
			ml.rawFile.Close()
		}
		file, err := os.OpenFile(ml.categoryLogPath(CategoryDownload), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			ml.LogAppError("Failed to open download log", zap.Error(err))
			ml.rawFile = nil
			return
		}
		ml.rawFile = file
		ml.currentDate = today
	}

	if _, err := ml.rawFile.WriteString(text); err != nil {
		ml.LogAppError("Failed to write download log", zap.Error(err))
	}
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes all loggers and closes the download log
func (ml *MultiLogger) Close() error {
	lastErr := ml.Sync()

	ml.rawMu.Lock()
	defer ml.rawMu.Unlock()
	if ml.rawFile != nil {
		if err := ml.rawFile.Close(); err != nil {
			lastErr = err
		}
		ml.rawFile = nil
	}
	return lastErr
}

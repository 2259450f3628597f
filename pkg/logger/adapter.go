package logger

import (
	"go.uber.org/zap"
)

// LoggerAdapter lets components log the same way whether they run with the
// categorized file loggers or with one plain logger (tests, CLI)
type LoggerAdapter struct {
	multiLogger  *MultiLogger
	singleLogger *zap.Logger
	useMulti     bool
}

// NewLoggerAdapter creates a new logger adapter
func NewLoggerAdapter(multiLogger *MultiLogger) *LoggerAdapter {
	return &LoggerAdapter{
		multiLogger: multiLogger,
		useMulti:    true,
	}
}

// NewSingleLoggerAdapter creates an adapter over a single logger
func NewSingleLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	if logger == nil {
		logger = NewNop()
	}
	return &LoggerAdapter{
		singleLogger: logger,
	}
}

// Queue returns the queue logger
func (la *LoggerAdapter) Queue() *zap.Logger {
	if la.useMulti {
		return la.multiLogger.Queue()
	}
	return la.singleLogger
}

// Error returns the error logger
func (la *LoggerAdapter) Error() *zap.Logger {
	if la.useMulti {
		return la.multiLogger.Error()
	}
	return la.singleLogger
}

// LogQueueEvent records one queue lifecycle event
func (la *LoggerAdapter) LogQueueEvent(event string, fields ...zap.Field) {
	la.Queue().Info(event, fields...)
}

// LogAppError records an error in the error category
func (la *LoggerAdapter) LogAppError(msg string, fields ...zap.Field) {
	la.Error().Error(msg, fields...)
}

// WriteDownloadCommand records the command line of a subprocess
func (la *LoggerAdapter) WriteDownloadCommand(entryID, cmdLine string) {
	if la.useMulti {
		la.multiLogger.WriteDownloadCommand(entryID, cmdLine)
		return
	}
	la.singleLogger.Debug("Running command", zap.String("entry_id", entryID), zap.String("cmd", cmdLine))
}

// WriteRawDownloadLog records one line of subprocess output
func (la *LoggerAdapter) WriteRawDownloadLog(line string) {
	if la.useMulti {
		la.multiLogger.WriteRawDownloadLog(line)
		return
	}
	la.singleLogger.Debug(line)
}

// WriteDownloadComplete records how a subprocess run ended
func (la *LoggerAdapter) WriteDownloadComplete(entryID string, success bool, message string) {
	if la.useMulti {
		la.multiLogger.WriteDownloadComplete(entryID, success, message)
		return
	}
	la.singleLogger.Debug("Command finished",
		zap.String("entry_id", entryID),
		zap.Bool("success", success),
		zap.String("message", message))
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	if la.useMulti {
		return la.multiLogger.Sync()
	}
	return la.singleLogger.Sync()
}

// GetMultiLogger returns the underlying multi-logger, nil for a single adapter
func (la *LoggerAdapter) GetMultiLogger() *MultiLogger {
	return la.multiLogger
}

package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/yourusername/clipq-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService sends desktop notifications about queue progress
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification using the configured method
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		err = n.run("osascript", "-e", script)
	case "notify-send":
		err = n.run("notify-send", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}
	return nil
}

// NotifyEntryFinished reports how an entry's job ended
func (n *NotificationService) NotifyEntryFinished(entry *domain.Entry) {
	name := entry.Title
	if name == "" {
		name = entry.URL
	}
	name = truncateString(name, 40)

	switch entry.Status {
	case domain.StatusCompleted:
		msg := "Saved " + name
		if entry.Trimmed {
			msg += " (trimmed)"
		}
		n.Send("Download Completed", msg)
	case domain.StatusCancelled:
		n.Send("Download Cancelled", name)
	case domain.StatusFailed:
		n.Send("Download Failed", fmt.Sprintf("%s: %s", name, entry.ErrorKind))
	}
}

// NotifyQueueIdle reports that nothing is left to run
func (n *NotificationService) NotifyQueueIdle() {
	n.Send("Queue Finished", "All downloads processed")
}

func truncateString(s string, maxLen int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen]) + "..."
}

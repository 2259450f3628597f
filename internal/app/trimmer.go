package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourusername/clipq-go/internal/domain"
	"go.uber.org/zap"
)

// TrimOutcome describes what Trim did to the file
type TrimOutcome string

const (
	TrimApplied TrimOutcome = "trimmed"
	TrimSkipped TrimOutcome = "skipped"
)

// Trimmer cuts a downloaded file in place, trying a stream copy first and a
// re-encode second
type Trimmer struct {
	transcoder domain.Transcoder
	logger     *zap.Logger
}

// NewTrimmer creates a new trimmer
func NewTrimmer(transcoder domain.Transcoder, logger *zap.Logger) *Trimmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trimmer{transcoder: transcoder, logger: logger}
}

// Trim replaces path with its [start, end] section. A range that is missing
// or not increasing is skipped without running the tool. When both attempts
// fail the original file is left untouched and ErrTrimFailed is returned.
func (t *Trimmer) Trim(ctx context.Context, path string, r *domain.TrimRange) (TrimOutcome, error) {
	if r == nil || !r.Valid() {
		return TrimSkipped, nil
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	copyTmp := stem + ".trim-copy" + ext
	reencodeTmp := stem + ".trim-reencode" + ext

	copyErr := t.transcoder.CopyTrim(ctx, path, copyTmp, r.Start, r.End)
	if copyErr == nil && fileExists(copyTmp) {
		if err := replaceFile(copyTmp, path); err != nil {
			os.Remove(copyTmp)
			return TrimSkipped, fmt.Errorf("%w: %v", domain.ErrTrimFailed, err)
		}
		return TrimApplied, nil
	}
	os.Remove(copyTmp)
	if ctx.Err() != nil {
		return TrimSkipped, domain.ErrAbortedByUser
	}

	t.logger.Info("Stream copy trim failed, re-encoding",
		zap.String("path", path),
		zap.Error(copyErr))

	reencodeErr := t.transcoder.ReencodeTrim(ctx, path, reencodeTmp, r.Start, r.Duration())
	if reencodeErr == nil && fileExists(reencodeTmp) {
		if err := replaceFile(reencodeTmp, path); err != nil {
			os.Remove(reencodeTmp)
			return TrimSkipped, fmt.Errorf("%w: %v", domain.ErrTrimFailed, err)
		}
		return TrimApplied, nil
	}
	os.Remove(reencodeTmp)
	if ctx.Err() != nil {
		return TrimSkipped, domain.ErrAbortedByUser
	}

	if reencodeErr == nil {
		reencodeErr = fmt.Errorf("no output produced")
	}
	return TrimSkipped, fmt.Errorf("%w: %v", domain.ErrTrimFailed, reencodeErr)
}

// replaceFile moves src over dst, removing dst first when a plain rename is
// refused
func replaceFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(src, dst)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

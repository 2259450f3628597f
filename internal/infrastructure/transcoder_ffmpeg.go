package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/yourusername/clipq-go/internal/domain"
	"github.com/yourusername/clipq-go/pkg/logger"
)

// FFmpegTranscoder cuts media files with an ffmpeg subprocess
type FFmpegTranscoder struct {
	config *domain.TranscoderConfig
	logs   *logger.LoggerAdapter
}

// NewFFmpegTranscoder creates a new ffmpeg transcoder
func NewFFmpegTranscoder(config *domain.TranscoderConfig, logs *logger.LoggerAdapter) *FFmpegTranscoder {
	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(nil)
	}
	return &FFmpegTranscoder{config: config, logs: logs}
}

// CopyTrim cuts [start, end] out of src into dst without re-encoding
func (t *FFmpegTranscoder) CopyTrim(ctx context.Context, src, dst, start, end string) error {
	return t.run(ctx, CopyTrimArgs(src, dst, start, end))
}

// ReencodeTrim cuts duration seconds from start, re-encoding both streams
func (t *FFmpegTranscoder) ReencodeTrim(ctx context.Context, src, dst, start string, duration int) error {
	return t.run(ctx, ReencodeTrimArgs(src, dst, start, duration, t.config.VideoCodec, t.config.AudioCodec))
}

// CopyTrimArgs builds the stream-copy ffmpeg arguments
func CopyTrimArgs(src, dst, start, end string) []string {
	return []string{"-y", "-i", src, "-ss", start, "-to", end, "-c", "copy", dst}
}

// ReencodeTrimArgs builds the re-encoding ffmpeg arguments. Seeking before
// the input keeps the cut fast; -t bounds the output length.
func ReencodeTrimArgs(src, dst, start string, duration int, videoCodec, audioCodec string) []string {
	if videoCodec == "" {
		videoCodec = "libx264"
	}
	if audioCodec == "" {
		audioCodec = "aac"
	}
	return []string{
		"-y",
		"-ss", start,
		"-i", src,
		"-t", strconv.Itoa(duration),
		"-c:v", videoCodec,
		"-c:a", audioCodec,
		dst,
	}
}

func (t *FFmpegTranscoder) run(ctx context.Context, args []string) error {
	cmdLine := FormatCommand(t.config.FFmpegBinary, args...)
	t.logs.WriteDownloadCommand("ffmpeg", cmdLine)

	cmd := exec.CommandContext(ctx, t.config.FFmpegBinary, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if output.Len() > 0 {
		t.logs.WriteRawDownloadLog(output.String())
	}
	if err != nil {
		t.logs.WriteDownloadComplete("ffmpeg", false, err.Error())
		if ctx.Err() != nil {
			return domain.ErrAbortedByUser
		}
		return fmt.Errorf("%w: ffmpeg: %v", domain.ErrExternalToolFailure, err)
	}
	t.logs.WriteDownloadComplete("ffmpeg", true, args[len(args)-1])
	return nil
}

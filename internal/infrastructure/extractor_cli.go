package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/clipq-go/internal/domain"
	"github.com/yourusername/clipq-go/pkg/logger"
	"go.uber.org/zap"
)

var (
	percentRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	destinationRe = regexp.MustCompile(`^\[download\] Destination:\s*(.+)$`)
	alreadyRe     = regexp.MustCompile(`^\[download\]\s+(.+) has already been downloaded`)
	mergerRe      = regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"$`)
)

// CLIExtractor drives an external yt-dlp process
type CLIExtractor struct {
	config *domain.ExtractorConfig
	logs   *logger.LoggerAdapter
}

// NewCLIExtractor creates a yt-dlp backed extractor
func NewCLIExtractor(config *domain.ExtractorConfig, logs *logger.LoggerAdapter) *CLIExtractor {
	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(nil)
	}
	return &CLIExtractor{
		config: config,
		logs:   logs,
	}
}

// Name returns the strategy this extractor implements
func (e *CLIExtractor) Name() domain.StrategyKind {
	return domain.StrategyCLI
}

// AppliesSections is true: the trim range is passed as --download-sections
func (e *CLIExtractor) AppliesSections() bool {
	return true
}

// Available reports whether the yt-dlp binary can be found on PATH
func (e *CLIExtractor) Available() bool {
	_, err := exec.LookPath(e.config.YTDLPBinary)
	return err == nil
}

// ytdlpInfo is the subset of `yt-dlp -J` output we use
type ytdlpInfo struct {
	Title          string  `json:"title"`
	Thumbnail      string  `json:"thumbnail"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
	Filename       string  `json:"_filename"`
	Formats        []struct {
		FormatID       string  `json:"format_id"`
		Ext            string  `json:"ext"`
		FormatNote     string  `json:"format_note"`
		Resolution     string  `json:"resolution"`
		Filesize       float64 `json:"filesize"`
		FilesizeApprox float64 `json:"filesize_approx"`
	} `json:"formats"`
}

// Resolve runs yt-dlp in JSON mode and maps its metadata
func (e *CLIExtractor) Resolve(ctx context.Context, req domain.ExtractRequest) (*domain.MediaInfo, error) {
	args := []string{
		"-J",
		"--no-playlist",
		"-f", formatOrDefault(req.Format),
		"-o", filepath.Join(req.DestFolder, e.outputTemplate()),
		req.URL,
	}

	cmd := exec.CommandContext(ctx, e.config.YTDLPBinary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.ErrAbortedByUser
		}
		return nil, fmt.Errorf("%w: yt-dlp -J: %v: %s", domain.ErrExternalToolFailure, err, lastLine(stderr.String()))
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("%w: parse yt-dlp metadata: %v", domain.ErrExtractionError, err)
	}

	media := &domain.MediaInfo{
		Title:        info.Title,
		ThumbnailURL: info.Thumbnail,
		Filename:     info.Filename,
	}
	if size := firstPositive(info.Filesize, info.FilesizeApprox); size > 0 {
		media.Filesize = &size
	}
	for _, f := range info.Formats {
		quality := f.FormatNote
		if quality == "" {
			quality = f.Resolution
		}
		media.Formats = append(media.Formats, domain.FormatInfo{
			ID:       f.FormatID,
			Ext:      f.Ext,
			Quality:  quality,
			Filesize: firstPositive(f.Filesize, f.FilesizeApprox),
		})
	}
	return media, nil
}

// Download runs yt-dlp and streams its output line by line into sink. Raw
// output is written to the download log.
func (e *CLIExtractor) Download(ctx context.Context, req domain.ExtractRequest, sink domain.ProgressSink) (string, error) {
	args := []string{
		"--newline",
		"--no-playlist",
		"-f", formatOrDefault(req.Format),
	}
	if req.Trim != nil {
		args = append(args, "--download-sections", req.Trim.Section())
	}
	args = append(args,
		"-o", filepath.Join(req.DestFolder, "%(title)s.%(ext)s"),
		req.URL,
	)

	e.logs.WriteDownloadCommand(req.EntryID, FormatCommand(e.config.YTDLPBinary, args...))

	// stdout and stderr share one pipe, like `2>&1`
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", fmt.Errorf("failed to create pipe: %w", err)
	}
	defer pr.Close()

	cmd := exec.CommandContext(ctx, e.config.YTDLPBinary, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		e.logs.WriteDownloadComplete(req.EntryID, false, err.Error())
		return "", fmt.Errorf("%w: start yt-dlp: %v", domain.ErrExternalToolFailure, err)
	}
	pw.Close()

	// unblock the reader when the process is killed but a child still holds the pipe
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			pr.Close()
		case <-stop:
		}
	}()

	var filename, last string
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		last = line
		e.logs.WriteRawDownloadLog(line)

		if path := parseFilename(line); path != "" {
			filename = path
			sink.Filename(path)
		}
		if strings.HasPrefix(line, "[download]") {
			if m := percentRe.FindStringSubmatch(line); m != nil {
				if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
					sink.Progress(domain.ProgressUpdate{Fraction: pct / 100})
				}
			}
		}
		sink.Status(truncateRunes(line, e.config.StatusLineLimit))
	}

	err = cmd.Wait()
	if ctx.Err() != nil {
		e.logs.WriteDownloadComplete(req.EntryID, false, "aborted by user")
		return filename, domain.ErrAbortedByUser
	}
	if err != nil {
		e.logs.WriteDownloadComplete(req.EntryID, false, fmt.Sprintf("yt-dlp failed: %v", err))
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return filename, fmt.Errorf("%w: yt-dlp exited with code %d: %s",
				domain.ErrExternalToolFailure, exitErr.ExitCode(), last)
		}
		return filename, fmt.Errorf("%w: yt-dlp: %v", domain.ErrExternalToolFailure, err)
	}

	sink.Progress(domain.ProgressUpdate{Fraction: -1, Done: true})
	e.logs.WriteDownloadComplete(req.EntryID, true, fmt.Sprintf("Downloaded: %s", filename))
	e.logs.Queue().Debug("yt-dlp finished",
		zap.String("entry_id", req.EntryID),
		zap.String("filename", filename))
	return filename, nil
}

func (e *CLIExtractor) outputTemplate() string {
	if e.config.OutputTemplate == "" {
		return "%(title)s.%(ext)s"
	}
	return e.config.OutputTemplate
}

// parseFilename extracts an output path from yt-dlp's progress lines
func parseFilename(line string) string {
	for _, re := range []*regexp.Regexp{mergerRe, destinationRe, alreadyRe} {
		if m := re.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func formatOrDefault(format string) string {
	if strings.TrimSpace(format) == "" {
		return domain.DefaultFormat
	}
	return format
}

func firstPositive(values ...float64) int64 {
	for _, v := range values {
		if v > 0 {
			return int64(v)
		}
	}
	return 0
}

// truncateRunes shortens s to at most limit runes; limit <= 0 disables it
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

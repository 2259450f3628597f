package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeSpec is a trim boundary expressed in whole seconds
type TimeSpec struct {
	seconds int
}

// ParseTimeSpec parses "SS", "MM:SS" or "HH:MM:SS" into a TimeSpec
func ParseTimeSpec(raw string) (TimeSpec, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if raw == "" || len(parts) > 3 {
		return TimeSpec{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}

	total := 0
	for _, part := range parts {
		part = strings.TrimSpace(part)
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || strings.HasPrefix(part, "+") {
			return TimeSpec{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
		}
		total = total*60 + n
	}

	return TimeSpec{seconds: total}, nil
}

// NormalizeTime returns the canonical HH:MM:SS form of raw
func NormalizeTime(raw string) (string, error) {
	ts, err := ParseTimeSpec(raw)
	if err != nil {
		return "", err
	}
	return ts.String(), nil
}

// Seconds returns the total number of seconds
func (t TimeSpec) Seconds() int {
	return t.seconds
}

// String renders the zero-padded HH:MM:SS form
func (t TimeSpec) String() string {
	h := t.seconds / 3600
	m := (t.seconds % 3600) / 60
	s := t.seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// IsBlankTime reports whether raw carries no time at all, e.g. an empty
// string or an unfilled input mask like "__:__:__".
func IsBlankTime(raw string) bool {
	blank := strings.Map(func(r rune) rune {
		switch r {
		case ':', '_', ' ', '\t':
			return -1
		}
		return r
	}, raw)
	return blank == ""
}

// TrimRange is a validated (start, end) pair of normalized boundaries
type TrimRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NewTrimRange validates a pair of raw boundaries. Two blank inputs mean no
// trim was requested and yield a nil range.
func NewTrimRange(rawStart, rawEnd string) (*TrimRange, error) {
	startBlank, endBlank := IsBlankTime(rawStart), IsBlankTime(rawEnd)
	if startBlank && endBlank {
		return nil, nil
	}
	if startBlank || endBlank {
		return nil, fmt.Errorf("%w: both start and end time are required", ErrInvalidTrimRange)
	}

	start, err := ParseTimeSpec(rawStart)
	if err != nil {
		return nil, fmt.Errorf("start time: %w", err)
	}
	end, err := ParseTimeSpec(rawEnd)
	if err != nil {
		return nil, fmt.Errorf("end time: %w", err)
	}

	if end.Seconds() <= start.Seconds() {
		return nil, fmt.Errorf("%w: end %s must be after start %s", ErrInvalidTrimRange, end, start)
	}

	return &TrimRange{Start: start.String(), End: end.String()}, nil
}

// Bounds returns the start and end offsets in seconds. Boundaries that fail to
// parse count as zero, which makes the range invalid for Valid.
func (r TrimRange) Bounds() (int, int) {
	start, _ := ParseTimeSpec(r.Start)
	end, _ := ParseTimeSpec(r.End)
	return start.Seconds(), end.Seconds()
}

// Valid reports whether end is strictly after start
func (r TrimRange) Valid() bool {
	start, end := r.Bounds()
	return end > start
}

// Duration returns the kept length in seconds
func (r TrimRange) Duration() int {
	start, end := r.Bounds()
	return end - start
}

// Section renders the yt-dlp section selector "*start-end"
func (r TrimRange) Section() string {
	return "*" + r.Start + "-" + r.End
}

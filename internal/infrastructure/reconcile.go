package infrastructure

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourusername/clipq-go/internal/domain"
)

// preferredExts ranks candidate containers when several files match
var preferredExts = []string{".mp4", ".mkv", ".webm", ".mp3", ".m4a", ".aac", ".flv"}

// partialExts mark files an extractor is still writing
var partialExts = []string{".part", ".ytdl"}

// SanitizeTitle strips the characters that can't appear in a filename
func SanitizeTitle(title string) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`\/:"*?<>|`, r) {
			return -1
		}
		return r
	}, title)
	return strings.TrimSpace(clean)
}

// URLStem derives the coarse name a download of rawURL is likely to carry:
// the last non-empty of host and the first two path segments, without
// extension, lowercased
func URLStem(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	parts := []string{u.Hostname()}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(segments) && i < 2; i++ {
		parts = append(parts, segments[i])
	}

	stem := ""
	for _, p := range parts {
		if p != "" {
			stem = p
		}
	}
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	return strings.ToLower(stem)
}

// Reconcile finds the file a download actually produced in dir. The advisory
// path wins when it exists; otherwise files starting with the sanitized title,
// then files containing the URL stem, are considered. Matching is heuristic
// and can pick the wrong file in a crowded directory.
func Reconcile(dir, advisory, title, rawURL string) (string, error) {
	if advisory != "" && fileExists(advisory) {
		return advisory, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || isPartial(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}

	if prefix := strings.ToLower(SanitizeTitle(title)); prefix != "" {
		if name := pickPreferred(filterNames(names, func(n string) bool {
			return strings.HasPrefix(strings.ToLower(n), prefix)
		})); name != "" {
			return filepath.Join(dir, name), nil
		}
	}

	if stem := URLStem(rawURL); stem != "" {
		if name := pickPreferred(filterNames(names, func(n string) bool {
			return strings.Contains(strings.ToLower(n), stem)
		})); name != "" {
			return filepath.Join(dir, name), nil
		}
	}

	return "", domain.ErrReconciliationMiss
}

func filterNames(names []string, keep func(string) bool) []string {
	var out []string
	for _, n := range names {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func pickPreferred(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	for _, ext := range preferredExts {
		for _, c := range candidates {
			if strings.EqualFold(filepath.Ext(c), ext) {
				return c
			}
		}
	}
	return candidates[0]
}

func isPartial(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, p := range partialExts {
		if ext == p {
			return true
		}
	}
	return false
}

// fileExists checks if a regular file exists
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

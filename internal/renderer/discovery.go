package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotFound is returned when no aerender executable can be located.
var ErrNotFound = errors.New("could not locate the After Effects aerender executable")

// Locate resolves the aerender executable. An explicit path that exists
// wins; otherwise candidates are tried in Candidates order.
func Locate(explicit, afterEffectsDir string, logger *slog.Logger) (string, error) {
	if p := expandPath(explicit); p != "" && !isNoneValue(p) {
		if _, err := os.Stat(p); err == nil {
			logger.Info("Using aerender executable", "path", p)
			return p, nil
		}
		logger.Warn("Configured aerender path does not exist, searching", "path", p)
	}

	if cands := Candidates(afterEffectsDir); len(cands) > 0 {
		logger.Info("Auto-located aerender", "path", cands[0])
		return cands[0], nil
	}

	return "", fmt.Errorf("%w: set --aerender-path or AERENDER_PATH "+
		`(Windows default: C:\Program Files\Adobe\Adobe After Effects 20XX\Support Files\aerender.exe, `+
		"macOS default: /Applications/Adobe After Effects 20XX/aerender)", ErrNotFound)
}

// Candidates returns existing aerender paths in priority order: explicit
// environment variables, PATH, the given install root, then OS default
// install locations.
func Candidates(afterEffectsDir string) []string {
	var cands []string

	for _, key := range []string{"AERENDER_PATH", "AE_AERENDER_PATH"} {
		if v := os.Getenv(key); v != "" {
			cands = append(cands, expandPath(v))
		}
	}

	for _, exe := range []string{"aerender", "aerender.exe"} {
		if p, err := exec.LookPath(exe); err == nil {
			cands = append(cands, p)
		}
	}

	if base := expandPath(afterEffectsDir); base != "" {
		cands = append(cands,
			filepath.Join(base, "Support Files", "aerender.exe"),
			filepath.Join(base, "Support Files", "aerender"),
			filepath.Join(base, "aerender"),
		)
	}

	cands = append(cands, defaultInstallCandidates()...)
	return dedupeExisting(cands)
}

func defaultInstallCandidates() []string {
	var patterns []string
	switch runtime.GOOS {
	case "windows":
		var roots []string
		for _, key := range []string{"ProgramW6432", "ProgramFiles", "ProgramFiles(x86)"} {
			if v := os.Getenv(key); v != "" {
				roots = append(roots, v)
			}
		}
		if len(roots) == 0 {
			roots = []string{`C:\Program Files`, `C:\Program Files (x86)`}
		}
		for _, root := range roots {
			adobe := filepath.Join(root, "Adobe")
			patterns = append(patterns,
				filepath.Join(adobe, "Adobe After Effects *", "Support Files", "aerender.exe"),
				filepath.Join(adobe, "After Effects *", "Support Files", "aerender.exe"),
			)
		}
	case "darwin":
		patterns = []string{
			"/Applications/Adobe After Effects */aerender",
			"/Applications/After Effects */aerender",
		}
	}

	var out []string
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		out = append(out, matches...)
	}
	return out
}

func dedupeExisting(paths []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		key := filepath.Clean(p)
		if runtime.GOOS == "windows" {
			key = strings.ToLower(key)
		}
		if seen[key] {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func expandPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}

func isNoneValue(p string) bool {
	switch strings.ToUpper(p) {
	case "NONE", "__NONE__", "NULL":
		return true
	}
	return false
}

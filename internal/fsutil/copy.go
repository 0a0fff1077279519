// Package fsutil holds file helpers shared by staging and offloading.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// CopyFile copies src to dst through a temp file in dst's directory and
// renames it into place, so readers never observe a partial file. The
// source mode and modification time are carried over. Returns bytes copied.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	n, err := io.Copy(tmp, in)
	if err != nil {
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return n, err
	}
	if err := os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return n, err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return n, err
	}
	return n, nil
}

// SameFile reports whether a and b name the same file. When either cannot
// be stat'ed it falls back to comparing cleaned absolute paths.
func SameFile(a, b string) bool {
	ai, errA := os.Stat(a)
	bi, errB := os.Stat(b)
	if errA == nil && errB == nil {
		return os.SameFile(ai, bi)
	}
	return SamePath(a, b)
}

// SamePath compares cleaned absolute paths, ignoring case where the host
// filesystem usually does.
func SamePath(a, b string) bool {
	a, b = absClean(a), absClean(b)
	if CaseInsensitiveFS() {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// CaseInsensitiveFS reports whether the host's default filesystem folds case.
func CaseInsensitiveFS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

func absClean(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

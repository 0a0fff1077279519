package staging

import "strings"

// NeedsStaging reports whether path lives somewhere slow enough that
// copying it to local scratch is worth it: UNC paths, and on Linux any
// network or FUSE filesystem.
func NeedsStaging(path string) bool {
	if IsUNC(path) {
		return true
	}
	remote, err := onNetworkFS(path)
	return err == nil && remote
}

// IsUNC reports whether path is a Windows UNC path (\\server\share or //server/share).
func IsUNC(path string) bool {
	return strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//")
}

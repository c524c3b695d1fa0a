package filesystem

import (
	"os"
	"path/filepath"
	"strings"
)

// dataDirName is created under the user's home directory.
const dataDirName = ".genosma"

// UserHomeDir returns the current user's home directory.
// If the home directory cannot be determined, it returns "." as a fallback.
func UserHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// DataDir returns ~/.genosma, honouring GENOSMA_HOME when set.
func DataDir() string {
	if custom := os.Getenv("GENOSMA_HOME"); custom != "" {
		return ExpandPath(custom)
	}
	return filepath.Join(UserHomeDir(), dataDirName)
}

// DataPath joins elements under DataDir.
func DataPath(elem ...string) string {
	return filepath.Join(append([]string{DataDir()}, elem...)...)
}

// ExpandPath resolves a leading ~/ and cleans the result. Relative paths
// are left relative.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		return UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

// EnsureParentDir creates the directory holding path.
func EnsureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

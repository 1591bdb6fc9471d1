package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// IsDevRun checks if the current process is running via `go run` or `go test`.
// Both build their binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}
	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// ResolvePath determines the actual site directory. With forceTemp the path
// is re-rooted below the temporary directory, unless it already lives there.
func ResolvePath(userPath string, forceTemp bool) string {
	if !forceTemp {
		if userPath == "" {
			return "."
		}
		return userPath
	}

	clean := filepath.Clean(userPath)
	if rel, err := filepath.Rel(os.TempDir(), clean); err == nil && filepath.IsAbs(clean) && !strings.HasPrefix(rel, "..") {
		return clean
	}

	name := filepath.Base(clean)
	if userPath == "" || name == "." || name == string(os.PathSeparator) {
		name = "default"
	}
	return filepath.Join(os.TempDir(), "vellum-dev", name)
}

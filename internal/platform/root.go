package platform

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/aretw0/vellum/pkg/adapters/fs"
)

// ErrNoRoot is returned by FindRoot when no site encloses the directory.
var ErrNoRoot = errors.New("site root not found")

// FindRoot looks upwards from startDir for a site root: a directory holding
// the root metadata file or the system directory.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if hasFile(dir, ".metadata") || hasFile(dir, fs.DefaultSystemDir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoRoot
		}
		dir = parent
	}
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

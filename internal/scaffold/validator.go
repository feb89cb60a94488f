package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/vibelayer/internal/config"
)

// ExistingFilesError lists the starter files already present in a directory.
type ExistingFilesError struct {
	Files []string
}

func (e *ExistingFilesError) Error() string {
	return fmt.Sprintf("already initialized: found existing %s", strings.Join(e.Files, ", "))
}

// CheckExisting returns an *ExistingFilesError if vibelayer.yml or
// brand-kit.yml already exist in dir.
func CheckExisting(dir string) error {
	var existing []string
	for _, name := range []string{config.DefaultPath, BrandKitPath} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			existing = append(existing, name)
		}
	}

	if len(existing) > 0 {
		return &ExistingFilesError{Files: existing}
	}
	return nil
}

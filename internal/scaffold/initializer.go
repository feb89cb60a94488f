// Package scaffold writes starter configuration files for a VibeLayer deployment.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/vibelayer/internal/config"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templatesFS embed.FS

// BrandKitPath is the starter brand kit written next to the config file.
const BrandKitPath = "brand-kit.yml"

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize writes vibelayer.yml and brand-kit.yml into dir.
// If force is true, existing files are overwritten.
func Initialize(dir string, force bool) ([]FileInfo, error) {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return nil, err
		}
	}

	files, err := getTemplateFiles(dir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := writeFiles(files); err != nil {
		return nil, err
	}
	if err := validateCreatedFiles(dir); err != nil {
		return nil, err
	}

	return files, nil
}

// getTemplateFiles reads all template files
func getTemplateFiles(dir string) ([]FileInfo, error) {
	templates := []struct {
		name string
		path string
	}{
		{"templates/vibelayer.yml.tmpl", config.DefaultPath},
		{"templates/brand-kit.yml.tmpl", BrandKitPath},
	}

	files := make([]FileInfo, 0, len(templates))
	for _, tmpl := range templates {
		content, err := templatesFS.ReadFile(tmpl.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", tmpl.path, err)
		}
		files = append(files, FileInfo{
			Path:        filepath.Join(dir, tmpl.path),
			Content:     content,
			Permissions: 0o644,
		})
	}
	return files, nil
}

// writeFiles writes all template files to disk
func writeFiles(files []FileInfo) error {
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}
	return nil
}

// validateCreatedFiles loads the written files the way vibed and the CLI will.
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, config.DefaultPath)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultPath, err)
	}

	content, err := os.ReadFile(filepath.Join(dir, BrandKitPath))
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", BrandKitPath, err)
	}
	var kit blackboard.BrandKit
	if err := yaml.Unmarshal(content, &kit); err != nil {
		return fmt.Errorf("created %s is not valid YAML: %w", BrandKitPath, err)
	}
	if err := kit.Validate(); err != nil {
		return fmt.Errorf("created %s is invalid: %w", BrandKitPath, err)
	}
	return nil
}

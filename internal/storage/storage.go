// Package storage manages the local folder tree where coretex caches
// samples, datasets, downloaded projects, logs and models.
//
//	<root>/
//	  samples/   one zip and one extracted folder per sample
//	  datasets/  one folder per dataset with symlinks to sample zips
//	  temp/      scratch space, safe to wipe
//	  logs/      CLI and experiment log files
//	  models/    trained model artifacts
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/biomech/coretex/internal/config"
)

// Folder names under the storage root.
const (
	SamplesFolder  = "samples"
	DatasetsFolder = "datasets"
	TempFolder     = "temp"
	LogsFolder     = "logs"
	ModelsFolder   = "models"
)

const dirPermissions = 0o755

// Storage is a resolved storage root.
type Storage struct {
	root string
}

// New resolves root (expanding a leading "~") and creates the folder tree.
func New(root string) (*Storage, error) {
	resolved, err := config.ExpandHome(root)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path %s: %w", root, err)
	}

	s := &Storage{root: abs}
	for _, folder := range []string{SamplesFolder, DatasetsFolder, TempFolder, LogsFolder, ModelsFolder} {
		if err := os.MkdirAll(filepath.Join(abs, folder), dirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create storage folder %s: %w", folder, err)
		}
	}
	return s, nil
}

// Root returns the absolute storage root.
func (s *Storage) Root() string { return s.root }

// Folder returns the path of one of the top level folders.
func (s *Storage) Folder(name string) string {
	return filepath.Join(s.root, name)
}

// SamplePath returns the extracted folder of sample id. The zip lives next
// to it as <id>.zip.
func (s *Storage) SamplePath(id int) string {
	return filepath.Join(s.root, SamplesFolder, strconv.Itoa(id))
}

// SampleZipPath returns the path of the downloaded archive of sample id.
func (s *Storage) SampleZipPath(id int) string {
	return s.SamplePath(id) + ".zip"
}

// DatasetPath returns the folder of dataset id.
func (s *Storage) DatasetPath(id int) string {
	return filepath.Join(s.root, DatasetsFolder, strconv.Itoa(id))
}

// TempPath returns a path under temp/ without creating it.
func (s *Storage) TempPath(name string) string {
	return filepath.Join(s.root, TempFolder, name)
}

// NewTempFolder creates (or empties) temp/<name> and returns its path.
func (s *Storage) NewTempFolder(name string) (string, error) {
	path := s.TempPath(name)
	if err := os.RemoveAll(path); err != nil {
		return "", fmt.Errorf("failed to clear temp folder %s: %w", name, err)
	}
	if err := os.MkdirAll(path, dirPermissions); err != nil {
		return "", fmt.Errorf("failed to create temp folder %s: %w", name, err)
	}
	return path, nil
}

// LogPath returns logs/<name>.log.
func (s *Storage) LogPath(name string) string {
	return filepath.Join(s.root, LogsFolder, name+".log")
}

// DailyLogPath returns the CLI log file for the day of t, e.g.
// logs/2024-05-01.log.
func (s *Storage) DailyLogPath(t time.Time) string {
	return s.LogPath(t.Format(time.DateOnly))
}

// ClearTemp removes everything under temp/.
func (s *Storage) ClearTemp() error {
	entries, err := os.ReadDir(s.Folder(TempFolder))
	if err != nil {
		return fmt.Errorf("failed to read temp folder: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.Folder(TempFolder), e.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

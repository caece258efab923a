package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/api"
)

// Sample endpoints.
const (
	SampleEndpoint          = "session"
	sampleExportEndpoint    = "session/export"
	sampleImportEndpoint    = "session/import"
	saveAnnotationsEndpoint = "session/save-annotations"
)

// AnnotationFileName is the annotation file inside an image sample.
const AnnotationFileName = "annotations.json"

// imageExtensions are searched in order by ImagePath.
var imageExtensions = []string{"png", "jpeg", "jpg"}

// Sample is a single item of a dataset.
type Sample struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	SpaceTask SpaceTask `json:"project_task"`
	IsLocked  bool      `json:"is_locked"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedOn string    `json:"created_on"`

	env *Env
}

// Bind attaches env to a sample decoded outside this package.
func (s *Sample) Bind(env *Env) { s.env = env }

// Path is the folder the sample is extracted into.
func (s *Sample) Path() string { return s.env.Storage.SamplePath(s.ID) }

// ZipPath is where the sample archive is downloaded.
func (s *Sample) ZipPath() string { return s.env.Storage.SampleZipPath(s.ID) }

// JoinPath joins elem onto the sample folder.
func (s *Sample) JoinPath(elem ...string) string {
	return filepath.Join(append([]string{s.Path()}, elem...)...)
}

// Download fetches the sample archive unless it is already cached.
func (s *Sample) Download(ctx context.Context, ignoreCache bool) error {
	if !ignoreCache {
		if _, err := os.Stat(s.ZipPath()); err == nil {
			return nil
		}
	}

	resp, err := s.env.Client.Download(ctx, sampleExportEndpoint, s.ZipPath(), map[string]any{"id": s.ID})
	if err != nil {
		return err
	}
	return api.Check(resp, fmt.Sprintf("failed to download sample %d", s.ID))
}

// Unzip extracts the downloaded archive into Path, replacing a previous
// extraction. A corrupt archive is deleted, downloaded again and extracted
// once more.
func (s *Sample) Unzip(ctx context.Context, ignoreCache bool) error {
	if !ignoreCache {
		if _, err := os.Stat(s.Path()); err == nil {
			return nil
		}
	}

	err := s.extract()
	if !errors.Is(err, ErrBadZip) {
		return err
	}

	s.env.log().Warn("sample archive is corrupt, downloading again",
		zap.Int("sample", s.ID), zap.Error(err))

	if err := os.Remove(s.ZipPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove corrupt archive: %w", err)
	}
	if err := s.Download(ctx, true); err != nil {
		return err
	}
	return s.extract()
}

func (s *Sample) extract() error {
	if err := os.RemoveAll(s.Path()); err != nil {
		return fmt.Errorf("failed to clear sample folder: %w", err)
	}
	return Extract(s.ZipPath(), s.Path())
}

// CreateCustomSample uploads the archive at path in chunks and imports it
// into dataset datasetID as name.
func CreateCustomSample(ctx context.Context, env *Env, name string, datasetID int, path, mimeType string) (*Sample, error) {
	session, err := api.NewChunkUploadSession(env.Client, api.MaxChunkSize, path, mimeType)
	if err != nil {
		return nil, err
	}
	fileID, err := session.Run(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := env.Client.Upload(ctx, sampleImportEndpoint, nil, map[string]string{
		"name":       name,
		"dataset_id": strconv.Itoa(datasetID),
		"file_id":    fileID,
	})
	if err != nil {
		return nil, err
	}
	return decodeSample(env, resp, "failed to create custom sample")
}

// CreateImageSample uploads the image at path into dataset datasetID. The
// sample is named after the file without its extension.
func CreateImageSample(ctx context.Context, env *Env, datasetID int, path string) (*Sample, error) {
	mimeType, err := api.GuessMimeType(path)
	if err != nil {
		return nil, err
	}

	file := api.FileFromPath("file", path, mimeType)
	file.Name = strings.TrimSuffix(file.Name, filepath.Ext(file.Name))

	resp, err := env.Client.Upload(ctx, sampleImportEndpoint, []api.File{file}, map[string]string{
		"dataset_id": strconv.Itoa(datasetID),
	})
	if err != nil {
		return nil, err
	}
	return decodeSample(env, resp, "failed to create image sample")
}

func decodeSample(env *Env, resp *api.Response, message string) (*Sample, error) {
	if err := api.Check(resp, message); err != nil {
		return nil, err
	}
	var s Sample
	if err := resp.Decode(&s); err != nil {
		return nil, err
	}
	s.env = env
	return &s, nil
}

// ImagePath returns the image of an extracted image sample, skipping
// thumbnails.
func (s *Sample) ImagePath() (string, error) {
	for _, ext := range imageExtensions {
		matches, err := filepath.Glob(filepath.Join(s.Path(), "*."+ext))
		if err != nil {
			return "", err
		}
		for _, m := range matches {
			if !strings.Contains(filepath.Base(m), "thumbnail") {
				return m, nil
			}
		}
	}
	return "", fmt.Errorf("sample %d: no image found in %s: %w", s.ID, s.Path(), os.ErrNotExist)
}

// AnnotationPath is the annotation file of an image sample.
func (s *Sample) AnnotationPath() string {
	return s.JoinPath(AnnotationFileName)
}

// LoadAnnotation reads the annotation file. A missing file returns nil
// without an error.
func (s *Sample) LoadAnnotation() (*ImageAnnotation, error) {
	data, err := os.ReadFile(s.AnnotationPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var a ImageAnnotation
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("sample %d: invalid annotation: %w", s.ID, err)
	}
	return &a, nil
}

// SaveAnnotation writes the annotation locally and stores it on the
// platform.
func (s *Sample) SaveAnnotation(ctx context.Context, a *ImageAnnotation) error {
	data, err := json.MarshalIndent(a, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Path(), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(s.AnnotationPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write annotation: %w", err)
	}

	resp, err := s.env.Client.Post(ctx, saveAnnotationsEndpoint, map[string]any{
		"id":   s.ID,
		"data": a,
	})
	if err != nil {
		return err
	}
	return api.Check(resp, fmt.Sprintf("failed to save annotation of sample %d", s.ID))
}

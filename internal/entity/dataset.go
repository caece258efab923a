package entity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/biomech/coretex/internal/api"
)

// DatasetEndpoint is the dataset API endpoint.
const DatasetEndpoint = "dataset"

var (
	ErrDatasetLocked = errors.New("dataset is locked")
	ErrSampleDeleted = errors.New("sample is deleted")
)

// Dataset is a named collection of samples in a space.
type Dataset struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	SpaceID     int            `json:"project_id"`
	CreatedOn   string         `json:"created_on"`
	CreatedByID string         `json:"created_by_id"`
	IsLocked    bool           `json:"is_locked"`
	Meta        map[string]any `json:"meta"`
	Samples     []*Sample      `json:"sessions"`

	env *Env
}

var includeSamples = map[string]any{"include_sessions": 1}

// FetchDataset loads dataset id with its samples.
func FetchDataset(ctx context.Context, env *Env, id int) (*Dataset, error) {
	d, err := api.FetchByID[Dataset](ctx, env.Client, DatasetEndpoint, id, includeSamples)
	if err != nil {
		return nil, err
	}
	d.bind(env)
	return d, nil
}

// FetchDatasets loads all datasets matching query, with their samples.
func FetchDatasets(ctx context.Context, env *Env, query map[string]any) ([]*Dataset, error) {
	params := map[string]any{}
	for k, v := range includeSamples {
		params[k] = v
	}
	for k, v := range query {
		params[k] = v
	}

	all, err := api.FetchAll[Dataset](ctx, env.Client, DatasetEndpoint, params, api.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	datasets := make([]*Dataset, len(all))
	for i := range all {
		all[i].bind(env)
		datasets[i] = &all[i]
	}
	return datasets, nil
}

// CreateDataset creates a dataset in space spaceID holding sampleIDs.
func CreateDataset(ctx context.Context, env *Env, name string, spaceID int, sampleIDs []int, meta map[string]any) (*Dataset, error) {
	if sampleIDs == nil {
		sampleIDs = []int{}
	}
	d, err := api.Create[Dataset](ctx, env.Client, DatasetEndpoint, map[string]any{
		"name":       name,
		"project_id": spaceID,
		"sessions":   sampleIDs,
		"meta":       meta,
	})
	if err != nil {
		return nil, err
	}
	d.bind(env)
	return d, nil
}

func (d *Dataset) bind(env *Env) {
	d.env = env
	for _, s := range d.Samples {
		s.env = env
	}
}

// Path is the folder holding links to the dataset's sample archives.
func (d *Dataset) Path() string { return d.env.Storage.DatasetPath(d.ID) }

// Count returns the number of samples.
func (d *Dataset) Count() int { return len(d.Samples) }

// SampleByName returns the first sample named name.
func (d *Dataset) SampleByName(name string) *Sample {
	for _, s := range d.Samples {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Download fetches all sample archives concurrently and links each as
// <id>.zip into Path. Workers bounds the concurrency; zero uses the CPU
// count. The first failed download cancels the remaining ones.
func (d *Dataset) Download(ctx context.Context, ignoreCache bool, workers int) error {
	if err := os.MkdirAll(d.Path(), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset folder: %w", err)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	log := d.env.log().With(zap.Int("dataset", d.ID))
	log.Info("downloading dataset", zap.Int("samples", len(d.Samples)), zap.Int("workers", workers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, s := range d.Samples {
		g.Go(func() error {
			if err := s.Download(ctx, ignoreCache); err != nil {
				return err
			}
			return d.linkSample(s)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to download dataset %d: %w", d.ID, err)
	}

	log.Info("dataset downloaded")
	return nil
}

func (d *Dataset) linkSample(s *Sample) error {
	link := filepath.Join(d.Path(), fmt.Sprintf("%d.zip", s.ID))
	if _, err := os.Lstat(link); err == nil {
		return nil
	}
	if err := os.Symlink(s.ZipPath(), link); err != nil && !os.IsExist(err) {
		return fmt.Errorf("failed to link sample %d: %w", s.ID, err)
	}
	return nil
}

// Add appends sample to the dataset. Locked datasets and deleted samples
// are refused.
func (d *Dataset) Add(ctx context.Context, sample *Sample) error {
	if d.IsLocked {
		return fmt.Errorf("dataset %d: %w", d.ID, ErrDatasetLocked)
	}
	if sample.IsDeleted {
		return fmt.Errorf("sample %d: %w", sample.ID, ErrSampleDeleted)
	}

	if err := api.Update(ctx, d.env.Client, DatasetEndpoint, d.ID, map[string]any{
		"sessions": []int{sample.ID},
	}); err != nil {
		return err
	}
	d.Samples = append(d.Samples, sample)
	return nil
}

// Rename changes the dataset name.
func (d *Dataset) Rename(ctx context.Context, name string) error {
	if err := api.Update(ctx, d.env.Client, DatasetEndpoint, d.ID, map[string]any{"name": name}); err != nil {
		return err
	}
	d.Name = name
	return nil
}

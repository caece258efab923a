package entity

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomech/coretex/internal/api/apitest"
)

func datasetJSON(id int, sampleIDs ...int) map[string]any {
	samples := make([]any, 0, len(sampleIDs))
	for _, sid := range sampleIDs {
		samples = append(samples, map[string]any{"id": sid, "name": "s"})
	}
	return map[string]any{
		"id":         id,
		"name":       "reads",
		"project_id": 3,
		"is_locked":  false,
		"sessions":   samples,
	}
}

func TestFetchDataset(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "dataset/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("include_sessions") != "1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		apitest.JSON(w, http.StatusOK, datasetJSON(20, 1, 2))
	})
	env := newTestEnv(t, srv)

	d, err := FetchDataset(context.Background(), env, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, d.SpaceID)
	assert.Equal(t, 2, d.Count())
	assert.Equal(t, env.Storage.SamplePath(2), d.Samples[1].Path())
}

func TestFetchDatasets(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "dataset", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("include_sessions") != "1" || q.Get("name") != "reads" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		apitest.JSON(w, http.StatusOK, []any{datasetJSON(1, 5), datasetJSON(2)})
	})
	env := newTestEnv(t, srv)

	ds, err := FetchDatasets(context.Background(), env, map[string]any{"name": "reads"})
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, env.Storage.DatasetPath(2), ds[1].Path())
	assert.Equal(t, env.Storage.SampleZipPath(5), ds[0].Samples[0].ZipPath())
}

func TestCreateDataset(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodPost, "dataset", func(w http.ResponseWriter, r *http.Request) {
		apitest.JSON(w, http.StatusOK, datasetJSON(30))
	})

	d, err := CreateDataset(context.Background(), newTestEnv(t, srv), "reads", 3, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, d.ID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(srv.Requests()[0].Body, &body))
	assert.Equal(t, map[string]any{
		"name":       "reads",
		"project_id": float64(3),
		"sessions":   []any{},
		"meta":       nil,
	}, body)
}

func TestDatasetDownload(t *testing.T) {
	archive := zipBytes(t, map[string]string{"a.txt": "a"})

	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "dataset/{id}", func(w http.ResponseWriter, r *http.Request) {
		apitest.JSON(w, http.StatusOK, datasetJSON(40, 1, 2, 3, 4))
	})
	srv.Handle(http.MethodGet, "session/export", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})
	env := newTestEnv(t, srv)
	ctx := context.Background()

	d, err := FetchDataset(ctx, env, 40)
	require.NoError(t, err)

	require.NoError(t, d.Download(ctx, false, 2))
	assert.Equal(t, 4, srv.Count(http.MethodGet, "session/export"))

	for _, s := range d.Samples {
		link := filepath.Join(d.Path(), filepath.Base(s.ZipPath()))
		target, err := os.Readlink(link)
		require.NoError(t, err)
		assert.Equal(t, s.ZipPath(), target)
	}

	require.NoError(t, d.Download(ctx, false, 0))
	assert.Equal(t, 4, srv.Count(http.MethodGet, "session/export"), "cached samples are not downloaded again")
}

func TestDatasetDownloadFailure(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "dataset/{id}", func(w http.ResponseWriter, r *http.Request) {
		apitest.JSON(w, http.StatusOK, datasetJSON(41, 1))
	})
	srv.Handle(http.MethodGet, "session/export", apitest.Status(http.StatusNotFound))
	env := newTestEnv(t, srv)

	d, err := FetchDataset(context.Background(), env, 41)
	require.NoError(t, err)

	err = d.Download(context.Background(), false, 1)
	assert.ErrorContains(t, err, "dataset 41")
}

func TestDatasetAdd(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodPut, "dataset/{id}", apitest.Status(http.StatusOK))
	env := newTestEnv(t, srv)
	ctx := context.Background()

	d := &Dataset{ID: 50}
	d.bind(env)

	require.NoError(t, d.Add(ctx, newSample(env, 1)))
	assert.Equal(t, 1, d.Count())

	var body map[string]any
	require.NoError(t, json.Unmarshal(srv.Requests()[0].Body, &body))
	assert.Equal(t, []any{float64(1)}, body["sessions"])

	deleted := newSample(env, 2)
	deleted.IsDeleted = true
	assert.ErrorIs(t, d.Add(ctx, deleted), ErrSampleDeleted)

	d.IsLocked = true
	assert.ErrorIs(t, d.Add(ctx, newSample(env, 3)), ErrDatasetLocked)

	assert.Equal(t, 1, d.Count())
	assert.Len(t, srv.Requests(), 1)
}

func TestDatasetRename(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodPut, "dataset/{id}", apitest.Sequence(
		apitest.Status(http.StatusOK),
		apitest.Status(http.StatusForbidden),
	))
	env := newTestEnv(t, srv)

	d := &Dataset{ID: 60, Name: "old"}
	d.bind(env)

	require.NoError(t, d.Rename(context.Background(), "new"))
	assert.Equal(t, "new", d.Name)

	assert.Error(t, d.Rename(context.Background(), "newer"))
	assert.Equal(t, "new", d.Name)
}

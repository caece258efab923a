package entity

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomech/coretex/internal/api"
	"github.com/biomech/coretex/internal/api/apitest"
)

func newSample(env *Env, id int) *Sample {
	s := &Sample{ID: id, Name: "sample-" + strconv.Itoa(id)}
	s.Bind(env)
	return s
}

func TestSampleDownloadAndUnzip(t *testing.T) {
	archive := zipBytes(t, map[string]string{"image.png": "png", "annotations.json": "{}"})

	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "session/export", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})
	env := newTestEnv(t, srv)
	s := newSample(env, 7)
	ctx := context.Background()

	require.NoError(t, s.Download(ctx, false))
	require.NoError(t, s.Download(ctx, false))
	assert.Equal(t, 1, srv.Count(http.MethodGet, "session/export"))
	assert.Equal(t, "7", srv.Requests()[0].Query.Get("id"))

	require.NoError(t, s.Download(ctx, true))
	assert.Equal(t, 2, srv.Count(http.MethodGet, "session/export"))

	require.NoError(t, s.Unzip(ctx, false))
	_, err := os.Stat(s.JoinPath("image.png"))
	require.NoError(t, err)

	img, err := s.ImagePath()
	require.NoError(t, err)
	assert.Equal(t, s.JoinPath("image.png"), img)
}

func TestSampleUnzipRedownloadsCorruptArchive(t *testing.T) {
	archive := zipBytes(t, map[string]string{"data.csv": "a,b"})

	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "session/export", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})
	env := newTestEnv(t, srv)
	s := newSample(env, 8)

	require.NoError(t, os.WriteFile(s.ZipPath(), []byte("not a zip"), 0o644))

	require.NoError(t, s.Unzip(context.Background(), false))
	assert.Equal(t, 1, srv.Count(http.MethodGet, "session/export"))

	data, err := os.ReadFile(s.JoinPath("data.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b", string(data))
}

func TestSampleUnzipFailsTwice(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "session/export", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("still not a zip"))
	})
	env := newTestEnv(t, srv)
	s := newSample(env, 9)
	require.NoError(t, os.WriteFile(s.ZipPath(), []byte("not a zip"), 0o644))

	err := s.Unzip(context.Background(), false)
	assert.ErrorIs(t, err, ErrBadZip)
	assert.Equal(t, 1, srv.Count(http.MethodGet, "session/export"))
}

func TestSampleUnzipCached(t *testing.T) {
	srv := apitest.New(t)
	env := newTestEnv(t, srv)
	s := newSample(env, 10)
	require.NoError(t, os.MkdirAll(s.Path(), 0o755))

	assert.NoError(t, s.Unzip(context.Background(), false))
	assert.Empty(t, srv.Requests())
}

func TestImagePathSkipsThumbnails(t *testing.T) {
	srv := apitest.New(t)
	s := newSample(newTestEnv(t, srv), 11)
	require.NoError(t, os.MkdirAll(s.Path(), 0o755))

	_, err := s.ImagePath()
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(s.JoinPath("thumbnail.png"), nil, 0o644))
	require.NoError(t, os.WriteFile(s.JoinPath("photo.jpg"), nil, 0o644))

	img, err := s.ImagePath()
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", filepath.Base(img))
}

func TestCreateImageSample(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodPost, "session/import", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		apitest.JSON(w, http.StatusOK, map[string]any{
			"id":   5,
			"name": header.Filename + "@" + r.FormValue("dataset_id"),
		})
	})
	env := newTestEnv(t, srv)

	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))

	s, err := CreateImageSample(context.Background(), env, 3, path)
	require.NoError(t, err)
	assert.Equal(t, 5, s.ID)
	assert.Equal(t, "cat@3", s.Name)
	assert.Equal(t, env.Storage.SamplePath(5), s.Path())
}

func TestCreateCustomSample(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodPost, api.UploadStartEndpoint, func(w http.ResponseWriter, r *http.Request) {
		apitest.JSON(w, http.StatusOK, map[string]any{"id": "upload-1"})
	})
	srv.Handle(http.MethodPost, api.UploadChunkEndpoint, apitest.Status(http.StatusOK))
	srv.Handle(http.MethodPost, "session/import", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("file_id") != "upload-1" || r.FormValue("dataset_id") != "3" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		apitest.JSON(w, http.StatusOK, map[string]any{"id": 6, "name": r.FormValue("name")})
	})
	env := newTestEnv(t, srv)

	path := filepath.Join(t.TempDir(), "reads.zip")
	require.NoError(t, os.WriteFile(path, zipBytes(t, map[string]string{"r1.fastq": "@"}), 0o644))

	s, err := CreateCustomSample(context.Background(), env, "reads", 3, path, "")
	require.NoError(t, err)
	assert.Equal(t, 6, s.ID)
	assert.Equal(t, "reads", s.Name)
}

func TestSaveAndLoadAnnotation(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodPost, "session/save-annotations", apitest.Status(http.StatusOK))
	s := newSample(newTestEnv(t, srv), 12)

	a, err := s.LoadAnnotation()
	require.NoError(t, err)
	assert.Nil(t, a)

	want := &ImageAnnotation{
		Name:   "image.png",
		Width:  4,
		Height: 4,
		Instances: []SegmentationInstance{{
			ClassID:       uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e"),
			BBox:          BBox{Width: 2, Height: 2},
			Segmentations: []Segmentation{{0, 0, 2, 0, 2, 2, 0, 2}},
		}},
	}
	require.NoError(t, s.SaveAnnotation(context.Background(), want))

	got, err := s.LoadAnnotation()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	var body struct {
		ID   int             `json:"id"`
		Data ImageAnnotation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(srv.Requests()[0].Body, &body))
	assert.Equal(t, 12, body.ID)
	assert.Equal(t, *want, body.Data)
}

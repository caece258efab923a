package api_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomech/coretex/internal/api"
	"github.com/biomech/coretex/internal/api/apitest"
)

func TestChunkUploadSession(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodPost, api.UploadStartEndpoint, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, float64(10), body["size"])
		apitest.JSON(w, http.StatusOK, map[string]any{"id": "upload-1"})
	})
	srv.Handle(http.MethodPost, api.UploadChunkEndpoint, apitest.Status(http.StatusOK))

	path := filepath.Join(t.TempDir(), "weights.zip")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	session, err := api.NewChunkUploadSession(srv.Client(), 4, path, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), session.ChunkCount())

	id, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "upload-1", id)

	type chunk struct{ start, end, content string }
	var got []chunk
	for _, r := range srv.Requests() {
		if r.Endpoint != api.UploadChunkEndpoint {
			continue
		}
		form := parseMultipart(t, r)
		assert.Equal(t, "upload-1", form.Value["id"][0])
		assert.Equal(t, "application/zip", form.File["file"][0].Header.Get("Content-Type"))
		got = append(got, chunk{form.Value["start"][0], form.Value["end"][0], readFormFile(t, form.File["file"][0])})
	}

	// end is inclusive on the wire.
	assert.Equal(t, []chunk{
		{"0", "3", "0123"},
		{"4", "7", "4567"},
		{"8", "9", "89"},
	}, got)
}

func TestChunkUploadSession_Validation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	unknown := filepath.Join(t.TempDir(), "data.nosuchext")
	require.NoError(t, os.WriteFile(unknown, []byte("x"), 0o644))
	client := api.New("http://localhost/")

	tests := []struct {
		name      string
		chunkSize int64
		path      string
		mime      string
		contains  string
	}{
		{"zero chunk", 0, path, "application/octet-stream", "invalid chunk size"},
		{"too large chunk", api.MaxChunkSize + 1, path, "application/octet-stream", "invalid chunk size"},
		{"missing file", 1, path + ".missing", "application/octet-stream", "failed to stat"},
		{"unknown mime", 1, unknown, "", "mime type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := api.NewChunkUploadSession(client, tt.chunkSize, tt.path, tt.mime)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}

	_, err := api.NewChunkUploadSession(client, api.MaxChunkSize, path, "application/octet-stream")
	assert.NoError(t, err)
}

func TestChunkUploadSession_StartFails(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodPost, api.UploadStartEndpoint, apitest.Status(http.StatusBadRequest))

	path := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	session, err := api.NewChunkUploadSession(srv.Client(), 2, path, "")
	require.NoError(t, err)

	_, err = session.Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to start chunked upload"))
	assert.Equal(t, 0, srv.Count(http.MethodPost, api.UploadChunkEndpoint))
}

func TestChunkUploadSession_InvalidID(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodPost, api.UploadStartEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		apitest.JSON(w, http.StatusOK, map[string]any{"id": 12})
	})

	path := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	session, err := api.NewChunkUploadSession(srv.Client(), 2, path, "")
	require.NoError(t, err)
	_, err = session.Run(context.Background())
	assert.ErrorContains(t, err, `field "id"`)
}

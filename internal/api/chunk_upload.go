package api

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

// MaxChunkSize is the largest chunk the upload endpoint accepts.
const MaxChunkSize = 128 * 1024 * 1024

// Chunked upload endpoints.
const (
	UploadStartEndpoint = "upload/start"
	UploadChunkEndpoint = "upload/chunk"
)

// ChunkUploadSession uploads a file in chunks of ChunkSize bytes and
// returns the upload id the platform assigns. Large artifacts and sample
// archives go through it.
type ChunkUploadSession struct {
	client    *Client
	chunkSize int64
	path      string
	size      int64
	mimeType  string
}

// NewChunkUploadSession validates chunkSize (1..MaxChunkSize) and stats
// path. An empty mimeType is guessed from the extension.
func NewChunkUploadSession(client *Client, chunkSize int64, path, mimeType string) (*ChunkUploadSession, error) {
	if chunkSize <= 0 || chunkSize > MaxChunkSize {
		return nil, fmt.Errorf("invalid chunk size %d: must be in range 1-%d", chunkSize, MaxChunkSize)
	}

	info, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if mimeType == "" {
		mimeType, err = GuessMimeType(path)
		if err != nil {
			return nil, err
		}
	}

	return &ChunkUploadSession{
		client:    client,
		chunkSize: chunkSize,
		path:      path,
		size:      info.Size(),
		mimeType:  mimeType,
	}, nil
}

// ChunkCount is the number of chunk requests Run sends.
func (s *ChunkUploadSession) ChunkCount() int64 {
	n := s.size / s.chunkSize
	if s.size%s.chunkSize != 0 {
		n++
	}
	return n
}

// Run starts the upload and sends every chunk in order.
func (s *ChunkUploadSession) Run(ctx context.Context) (string, error) {
	s.client.logger.Debug("starting chunked upload", zap.String("path", s.path), zap.Int64("size", s.size))

	id, err := s.start(ctx)
	if err != nil {
		return "", err
	}

	for i := int64(0); i < s.ChunkCount(); i++ {
		start := i * s.chunkSize
		end := min(start+s.chunkSize, s.size)
		if err := s.uploadChunk(ctx, id, start, end); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (s *ChunkUploadSession) start(ctx context.Context) (string, error) {
	resp, err := s.client.Post(ctx, UploadStartEndpoint, map[string]any{"size": s.size})
	if err != nil {
		return "", err
	}
	if resp.HasFailed() {
		return "", NewRequestError(resp, fmt.Sprintf("failed to start chunked upload for %q", s.path))
	}

	id, ok := resp.JSON()["id"].(string)
	if !ok {
		return "", fmt.Errorf("invalid API response: invalid value %q for field \"id\"", string(resp.Body))
	}
	return id, nil
}

// uploadChunk sends bytes [start, end). The API expects an inclusive end.
func (s *ChunkUploadSession) uploadChunk(ctx context.Context, id string, start, end int64) error {
	file := File{
		Field:    "file",
		Name:     filepath.Base(s.path),
		MimeType: s.mimeType,
		Open: func() (io.ReadCloser, error) {
			f, err := os.Open(s.path)
			if err != nil {
				return nil, err
			}
			return &sectionCloser{SectionReader: io.NewSectionReader(f, start, end-start), f: f}, nil
		},
	}
	fields := map[string]string{
		"id":    id,
		"start": strconv.FormatInt(start, 10),
		"end":   strconv.FormatInt(end-1, 10),
	}

	resp, err := s.client.Upload(ctx, UploadChunkEndpoint, []File{file}, fields)
	if err != nil {
		return err
	}
	if resp.HasFailed() {
		return NewRequestError(resp, fmt.Sprintf("failed to upload file chunk with byte range %d-%d", start, end))
	}

	s.client.logger.Debug("uploaded chunk", zap.Int64("start", start), zap.Int64("end", end))
	return nil
}

type sectionCloser struct {
	*io.SectionReader
	f *os.File
}

func (s *sectionCloser) Close() error { return s.f.Close() }

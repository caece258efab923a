package entity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.zip")
	require.NoError(t, os.WriteFile(src, zipBytes(t, map[string]string{
		"top.txt":        "top",
		"nested/deep.go": "package deep",
	}), 0o644))

	assert.True(t, IsZip(src))

	dest := filepath.Join(dir, "out")
	require.NoError(t, Extract(src, dest))

	data, err := os.ReadFile(filepath.Join(dest, "nested", "deep.go"))
	require.NoError(t, err)
	assert.Equal(t, "package deep", string(data))
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(src, zipBytes(t, map[string]string{"../escape.txt": "x"}), 0o644))

	assert.Error(t, Extract(src, filepath.Join(dir, "out")))

	_, err := os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractBadZip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(src, []byte("nope"), 0o644))

	assert.False(t, IsZip(src))
	assert.ErrorIs(t, Extract(src, t.TempDir()), ErrBadZip)
}

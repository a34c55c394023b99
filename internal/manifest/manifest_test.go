package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnbrewery/wnbimport/internal/hasher"
)

func TestBuildSortsByPath(t *testing.T) {
	m := Build("/root", []FileEntry{
		{Path: "b.jpg", Hash: "b", Size: 2},
		{Path: "a.jpg", Hash: "a", Size: 1},
	}, time.Now().UTC())

	require.Len(t, m.Files, 2)
	assert.Equal(t, "a.jpg", m.Files[0].Path)
	assert.Equal(t, "b.jpg", m.Files[1].Path)
	assert.Equal(t, int64(3), m.TotalBytes)
	assert.Equal(t, 2, m.FileCount)
	assert.Equal(t, Algorithm, m.Algorithm)
	assert.Equal(t, HashLength, m.HashLength)
}

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := Build(dir, []FileEntry{{Path: "a.jpg", Hash: "abc", Size: 3}}, time.Now().UTC())

	require.NoError(t, Write(dir, m))
	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, m.Algorithm, loaded.Algorithm)
	assert.Equal(t, m.Files, loaded.Files)
}

func TestVerifyDetectsMissingAndInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	res, err := hasher.Hash(path, hasher.AlgorithmBlake3, hasher.DefaultBufferSize)
	require.NoError(t, err)
	shortHash := hasher.TruncateShort(res.Hash)

	m := Build(dir, []FileEntry{
		{Path: "a.jpg", Hash: shortHash, Size: int64(len("hello"))},
		{Path: "missing.jpg", Hash: "deadbeef", Size: 1},
	}, time.Now().UTC())

	result, err := Verify(dir, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, result.Matched)
	assert.Equal(t, []string{"missing.jpg"}, result.Missing)
	assert.Empty(t, result.Invalid)
	assert.False(t, result.OK())
}

func TestVerifyAllMatchIsOK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	res, err := hasher.Hash(path, hasher.AlgorithmBlake3, hasher.DefaultBufferSize)
	require.NoError(t, err)

	m := Build(dir, []FileEntry{
		{Path: "a.jpg", Hash: hasher.TruncateShort(res.Hash), Size: int64(len("hello"))},
	}, time.Now().UTC())

	result, err := Verify(dir, m)
	require.NoError(t, err)
	assert.True(t, result.OK())
}

func TestVerifyDetectsSizeMismatchAsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	m := Build(dir, []FileEntry{
		{Path: "a.jpg", Hash: "irrelevant", Size: 999},
	}, time.Now().UTC())

	result, err := Verify(dir, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, result.Invalid)
}

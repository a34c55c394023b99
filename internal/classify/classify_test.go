package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name string, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestClassifyJPEGMagic(t *testing.T) {
	path := write(t, "photo.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0})
	result, err := Classify(path)
	require.NoError(t, err)
	assert.Equal(t, CategoryImage, result.Category)
	assert.False(t, result.ExtensionMismatch)
}

func TestClassifyExtensionMismatch(t *testing.T) {
	path := write(t, "photo.txt", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0})
	result, err := Classify(path)
	require.NoError(t, err)
	assert.Equal(t, CategoryImage, result.Category)
	assert.Equal(t, ".jpg", result.DetectedExtension)
	assert.Equal(t, ".txt", result.DeclaredExtension)
	assert.True(t, result.ExtensionMismatch)
}

func TestClassifyMP4Ftyp(t *testing.T) {
	header := append([]byte{0, 0, 0, 0x18}, []byte("ftypisom")...)
	header = append(header, 0, 0, 0, 0)
	path := write(t, "clip.mp4", header)
	result, err := Classify(path)
	require.NoError(t, err)
	assert.Equal(t, CategoryVideo, result.Category)
}

func TestClassifySidecarByExtensionOnly(t *testing.T) {
	path := write(t, "clip.srt", []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"))
	result, err := Classify(path)
	require.NoError(t, err)
	assert.Equal(t, CategorySidecar, result.Category)
	assert.False(t, result.ExtensionMismatch)
}

func TestClassifyFallsBackToExtension(t *testing.T) {
	path := write(t, "raw.cr2", []byte{0, 1, 2, 3})
	result, err := Classify(path)
	require.NoError(t, err)
	assert.Equal(t, CategoryImage, result.Category)
}

func TestClassifyUnknownIsOther(t *testing.T) {
	path := write(t, "mystery.xyz", []byte{0, 1, 2, 3})
	result, err := Classify(path)
	require.NoError(t, err)
	assert.Equal(t, CategoryOther, result.Category)
}

func TestClassifyWAVRiff(t *testing.T) {
	header := append([]byte("RIFF"), 0, 0, 0, 0)
	header = append(header, []byte("WAVE")...)
	path := write(t, "sound.wav", header)
	result, err := Classify(path)
	require.NoError(t, err)
	assert.Equal(t, CategoryAudio, result.Category)
}

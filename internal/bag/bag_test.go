package bag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInPlaceLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("world!"), 0o644))

	summary, err := CreateInPlace(dir, SHA256)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "bagit.txt"))
	assert.FileExists(t, filepath.Join(dir, "bag-info.txt"))
	assert.FileExists(t, filepath.Join(dir, "manifest-sha256.txt"))
	assert.FileExists(t, filepath.Join(dir, "tagmanifest-sha256.txt"))
	assert.DirExists(t, filepath.Join(dir, "data"))
	assert.FileExists(t, filepath.Join(dir, "data", "a.txt"))

	assert.Equal(t, int64(len("hello")+len("world!")), summary.PayloadBytes)
	assert.Equal(t, 2, summary.PayloadFiles)

	bagitContent, err := os.ReadFile(filepath.Join(dir, "bagit.txt"))
	require.NoError(t, err)
	assert.Equal(t, "BagIt-Version: 1.0\nTag-File-Character-Encoding: UTF-8\n", string(bagitContent))
}

func TestCreateInPlacePayloadOxum(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("12345"), 0o644))

	summary, err := CreateInPlace(dir, SHA256)
	require.NoError(t, err)
	assert.Equal(t, "5.1", summary.PayloadOxum)
}

func TestCreateCopyOutPreservesSource(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644))
	bagDir := t.TempDir()

	_, err := CreateCopyOut(src, bagDir, SHA256)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(src, "a.txt"))
	assert.FileExists(t, filepath.Join(bagDir, "data", "a.txt"))
}

func TestVerifyFreshBagPasses(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	_, err := CreateInPlace(dir, SHA256)
	require.NoError(t, err)

	result, err := Verify(dir, SHA256)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Empty(t, result.Missing)
	assert.Empty(t, result.Invalid)
	assert.Empty(t, result.Extra)
}

func TestVerifyDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	_, err := CreateInPlace(dir, SHA256)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "a.txt"), []byte("tampered"), 0o644))

	result, err := Verify(dir, SHA256)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Contains(t, result.Invalid, "a.txt")
}

func TestVerifyDetectsMissingAndExtra(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	_, err := CreateInPlace(dir, SHA256)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "data", "a.txt")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "extra.txt"), []byte("surprise"), 0o644))

	result, err := Verify(dir, SHA256)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Contains(t, result.Missing, "a.txt")
	assert.Contains(t, result.Extra, "extra.txt")
}

func TestManifestLinesSortedWithForwardSlashes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "z.txt"), []byte("z"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.txt"), []byte("a"), 0o644))

	lines, _, _, err := manifestLines(dir, SHA256)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "sub/a.txt")
	assert.Contains(t, lines[1], "z.txt")
}

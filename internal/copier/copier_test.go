package copier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnbrewery/wnbimport/internal/hasher"
	"github.com/wnbrewery/wnbimport/internal/ingesterr"
)

func TestCopyVerifiedMatchesSourceHash(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello\n"), 0o644))

	dst := filepath.Join(dir, "out", "dst.txt")
	result, err := Copy(context.Background(), src, dst, Options{Verify: true})
	require.NoError(t, err)

	expected, err := hasher.Hash(src, hasher.AlgorithmBlake3, 0)
	require.NoError(t, err)

	assert.Equal(t, expected.Hash, result.SourceHash)
	assert.Equal(t, expected.Hash, result.DestHash)
	assert.True(t, result.Verified)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	// no .partial left behind
	_, err = os.Stat(dst + partialSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestCopyExistsErrorWithoutOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("b"), 0o644))

	_, err := Copy(context.Background(), src, dst, Options{})
	require.Error(t, err)
	kind, ok := ingesterr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ingesterr.KindExists, kind)
}

func TestCopyOverwriteAllowed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	_, err := Copy(context.Background(), src, dst, Options{Overwrite: true})
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestCopyZeroByteFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "empty.bin")
	dst := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(src, []byte{}, 0o644))

	result, err := Copy(context.Background(), src, dst, Options{Verify: true})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Size)
}

func TestMoveRemovesSourceOnlyAfterVerify(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("movable"), 0o644))

	_, err := Move(context.Background(), src, dst, Options{})
	require.NoError(t, err)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "movable", string(data))
}

func TestCleanStalePartialRemovesLeftover(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(dst+partialSuffix, []byte("stale"), 0o644))

	require.NoError(t, CleanStalePartial(dst))

	_, err := os.Stat(dst + partialSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanStalePartialNoOpWhenMissing(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.txt")
	assert.NoError(t, CleanStalePartial(dst))
}

func TestCopyCancelledContext(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Copy(ctx, src, dst, Options{})
	require.Error(t, err)

	_, statErr := os.Stat(dst + partialSuffix)
	assert.True(t, os.IsNotExist(statErr))
}

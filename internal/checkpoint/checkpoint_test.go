package checkpoint

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnbrewery/wnbimport/internal/session"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := session.New("/src", dir)
	s.Files = append(s.Files, &session.FileState{SourcePath: "/src/a.jpg", RelativePath: "a.jpg", Status: session.FileStatusHashed})

	require.NoError(t, Write(s))
	assert.True(t, Exists(dir))

	loaded, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)
	require.Len(t, loaded.Files, 1)
	assert.Equal(t, session.FileStatusHashed, loaded.Files[0].Status)
}

func TestDeleteTolerantOfAbsence(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, Delete(dir))
}

func TestDeleteRemovesFile(t *testing.T) {
	dir := t.TempDir()
	s := session.New("/src", dir)
	require.NoError(t, Write(s))
	require.True(t, Exists(dir))

	require.NoError(t, Delete(dir))
	assert.False(t, Exists(dir))
}

func TestReadRejectsNewerSchema(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir)
	newerJSON := `{"schemaVersion": 999, "id": "x", "status": "pending"}`
	require.NoError(t, os.WriteFile(path, []byte(newerJSON), 0o644))

	_, err := Read(dir)
	require.Error(t, err)
}

func TestCounterTriggersAtIntervals(t *testing.T) {
	var c Counter
	due := false
	for i := 0; i < HashCheckpointInterval; i++ {
		due = c.RecordHashed()
	}
	assert.True(t, due)

	due = false
	for i := 0; i < CopyCheckpointInterval-1; i++ {
		due = c.RecordCopied()
	}
	assert.False(t, due)
	assert.True(t, c.RecordCopied())
}

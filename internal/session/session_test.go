package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStateMonotonicTransitions(t *testing.T) {
	fs := &FileState{Status: FileStatusPending}

	require.NoError(t, fs.SetStatus(FileStatusHashed))
	require.NoError(t, fs.SetStatus(FileStatusCopied))
	require.NoError(t, fs.SetStatus(FileStatusValidated))

	assert.Equal(t, FileStatusValidated, fs.Status)
}

func TestFileStateRejectsSkippingStages(t *testing.T) {
	fs := &FileState{Status: FileStatusPending}
	err := fs.SetStatus(FileStatusCopied)
	assert.Error(t, err)
	assert.Equal(t, FileStatusPending, fs.Status)
}

func TestFileStateTerminalStatesAreSticky(t *testing.T) {
	fs := &FileState{Status: FileStatusHashed}
	require.NoError(t, fs.SetStatus(FileStatusSkipped))
	assert.Equal(t, FileStatusSkipped, fs.Status)

	err := fs.SetStatus(FileStatusCopied)
	assert.Error(t, err)
	assert.Equal(t, FileStatusSkipped, fs.Status)
}

func TestFileStateMarkError(t *testing.T) {
	fs := &FileState{Status: FileStatusHashed}
	fs.MarkError(errors.New("disk full"))
	assert.Equal(t, FileStatusError, fs.Status)
	assert.Equal(t, "disk full", fs.Error)
}

func TestNewIDMonotonicPrefix(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32) // 16 bytes hex-encoded
	// the first 6 bytes (12 hex chars) are the millisecond timestamp
	assert.LessOrEqual(t, a[:12], b[:12])
}

func TestSessionSortedFiles(t *testing.T) {
	s := New("/src", "/dst")
	s.Files = []*FileState{
		{RelativePath: "b.txt"},
		{RelativePath: "a.txt"},
		{RelativePath: "c/d.txt"},
	}

	sorted := s.SortedFiles()
	require.Len(t, sorted, 3)
	assert.Equal(t, "a.txt", sorted[0].RelativePath)
	assert.Equal(t, "b.txt", sorted[1].RelativePath)
	assert.Equal(t, "c/d.txt", sorted[2].RelativePath)
}

func TestSessionTerminalFiles(t *testing.T) {
	s := New("/src", "/dst")
	s.Files = []*FileState{
		{RelativePath: "a", Status: FileStatusValidated},
		{RelativePath: "b", Status: FileStatusCopied},
		{RelativePath: "c", Status: FileStatusSkipped},
		{RelativePath: "d", Status: FileStatusError},
	}

	validatedOnly := s.TerminalFiles(false)
	require.Len(t, validatedOnly, 1)
	assert.Equal(t, "a", validatedOnly[0].RelativePath)

	withCopied := s.TerminalFiles(true)
	require.Len(t, withCopied, 2)
}

func TestSessionAllTerminal(t *testing.T) {
	s := New("/src", "/dst")
	s.Files = []*FileState{
		{RelativePath: "a", Status: FileStatusValidated},
		{RelativePath: "b", Status: FileStatusSkipped},
	}
	assert.True(t, s.AllTerminal(true))

	s.Files = append(s.Files, &FileState{RelativePath: "c", Status: FileStatusHashed})
	assert.False(t, s.AllTerminal(true))

	s.Files[2].Status = FileStatusCopied
	assert.False(t, s.AllTerminal(true))
	assert.True(t, s.AllTerminal(false))
}

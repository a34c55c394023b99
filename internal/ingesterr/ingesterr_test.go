package ingesterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFatalTransient(t *testing.T) {
	cases := []struct {
		kind      Kind
		fatal     bool
		transient bool
	}{
		{KindRead, false, true},
		{KindWrite, false, true},
		{KindRename, false, true},
		{KindStat, false, true},
		{KindVerifyMismatch, false, false},
		{KindAlgorithmUnavailable, true, false},
		{KindCheckpointWrite, true, false},
		{KindExtractorUnavailable, false, false},
		{KindExtractorTimeout, false, false},
		{KindExtractorCrash, false, false},
		{KindSchemaValidation, true, false},
		{KindExists, false, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.fatal, c.kind.Fatal(), "Fatal() for %v", c.kind)
		assert.Equal(t, c.transient, c.kind.Transient(), "Transient() for %v", c.kind)
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := New(KindWrite, "/dest/a.txt", "write failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "write failed")
	assert.Contains(t, err.Error(), "/dest/a.txt")

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindWrite, kind)

	assert.True(t, IsTransient(err))
	assert.False(t, IsFatal(err))
}

func TestKindOfNonIngestErr(t *testing.T) {
	_, ok := KindOf(errors.New("plain error"))
	assert.False(t, ok)
	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestErrorWithoutPath(t *testing.T) {
	err := New(KindAlgorithmUnavailable, "", "sha3 not supported", nil)
	assert.Equal(t, "AlgorithmUnavailable: sha3 not supported", err.Error())
	assert.True(t, IsFatal(err))
}

package pipeline

import (
	"context"

	"github.com/wnbrewery/wnbimport/internal/checkpoint"
	"github.com/wnbrewery/wnbimport/internal/hasher"
	"github.com/wnbrewery/wnbimport/internal/session"
)

// FindCheckpoint reports whether an interrupted session's checkpoint exists
// at destination, letting a caller discover a resumable session without
// knowing its path in advance.
func FindCheckpoint(destination string) bool {
	return checkpoint.Exists(destination)
}

// Resume reads the checkpoint at destination, re-validates any file left in
// `copied` status (it may have been partially written when the process
// died, per spec.md §4.9), and continues the run.
func Resume(ctx context.Context, destination string, opts Options) (*session.Session, error) {
	s, err := checkpoint.Read(destination)
	if err != nil {
		return nil, err
	}

	s.Lock()
	for _, fs := range s.Files {
		if fs.Status != session.FileStatusCopied {
			continue
		}
		res, hashErr := hasher.Hash(fs.DestPath, hasher.AlgorithmBlake3, hasher.DefaultBufferSize)
		if hashErr != nil || res.Hash != fs.HashFull {
			fs.Status = session.FileStatusHashed // re-enter the copy stage
			fs.DestHashFull = ""
		}
	}
	s.Unlock()

	return New().RunResumed(ctx, s, opts)
}

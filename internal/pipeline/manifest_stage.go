package pipeline

import (
	"context"
	"time"

	"github.com/wnbrewery/wnbimport/internal/manifest"
	"github.com/wnbrewery/wnbimport/internal/session"
)

// runGeneratingManifest emits the destination-wide manifest once every file
// has reached a terminal status (spec.md §4.9: "never run until every file
// is in a terminal state").
func (p *Pipeline) runGeneratingManifest(ctx context.Context, s *session.Session, opts Options) error {
	if err := p.setStatus(s, session.StatusGeneratingManifest); err != nil {
		return err
	}

	files := s.TerminalFiles(!opts.Verify)

	entries := make([]manifest.FileEntry, 0, len(files))
	for _, fs := range files {
		if fs.HashShort == "" {
			continue
		}
		entries = append(entries, manifest.FileEntry{
			Path: fs.RelativePath,
			Hash: fs.HashShort,
			Size: fs.Size,
		})
	}

	m := manifest.Build(s.Destination, entries, time.Now().UTC())
	return manifest.Write(s.Destination, m)
}

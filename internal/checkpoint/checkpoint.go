// Package checkpoint persists and restores a session to a single JSON file
// at the destination root, per spec.md §4.9: written periodically during a
// run, deleted on clean completion, and read on resume.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/wnbrewery/wnbimport/internal/ingesterr"
	"github.com/wnbrewery/wnbimport/internal/session"
)

// Filename is the checkpoint's fixed name under the destination root.
const Filename = ".wnb-import-session.json"

// PathFor returns the checkpoint path for a given destination root.
func PathFor(destination string) string {
	return filepath.Join(destination, Filename)
}

// HashCheckpointInterval and CopyCheckpointInterval are the per-stage
// counters spec.md §4.9 mandates: a checkpoint write every 100 hashed files
// and every 50 copied files, in addition to one on every stage transition.
const (
	HashCheckpointInterval = 100
	CopyCheckpointInterval = 50
)

// Write serializes a Session to its checkpoint file. The write is not held
// across destination I/O: callers build the Session snapshot first, then
// call Write, matching spec.md §5's "write lock MUST NOT be held across I/O
// to the destination".
func Write(s *session.Session) error {
	path := PathFor(s.Destination)

	s.Lock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.Unlock()
	if err != nil {
		return ingesterr.New(ingesterr.KindCheckpointWrite, path, "failed to marshal session", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ingesterr.New(ingesterr.KindCheckpointWrite, path, "failed to write checkpoint", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return ingesterr.New(ingesterr.KindCheckpointWrite, path, "failed to finalize checkpoint", err)
	}
	return nil
}

// Delete removes the checkpoint file, tolerating its absence.
func Delete(destination string) error {
	path := PathFor(destination)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return ingesterr.New(ingesterr.KindWrite, path, "failed to delete checkpoint", err)
	}
	return nil
}

// Exists reports whether a checkpoint file is present at destination.
func Exists(destination string) bool {
	_, err := os.Stat(PathFor(destination))
	return err == nil
}

// Read loads and validates the checkpoint at destination. A checkpoint
// written by a newer, incompatible schema is a fatal SchemaValidationError
// per spec.md §7 — the caller is expected to start a fresh session rather
// than guess at forward compatibility.
func Read(destination string) (*session.Session, error) {
	path := PathFor(destination)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ingesterr.New(ingesterr.KindRead, path, "failed to read checkpoint", err)
	}

	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, ingesterr.New(ingesterr.KindSchemaValidation, path, "failed to parse checkpoint", err)
	}

	if s.SchemaVersion > session.SchemaVersion {
		return nil, ingesterr.New(ingesterr.KindSchemaValidation, path,
			"checkpoint was written by a newer schema version; start a fresh session", nil)
	}

	return &s, nil
}

// Counter tracks per-stage progress and reports whether a checkpoint write
// is due, per the intervals above.
type Counter struct {
	hashed  int
	copied  int
}

// RecordHashed increments the hashed counter and reports whether it crossed
// a checkpoint interval boundary.
func (c *Counter) RecordHashed() bool {
	c.hashed++
	return c.hashed%HashCheckpointInterval == 0
}

// RecordCopied increments the copied counter and reports whether it crossed
// a checkpoint interval boundary.
func (c *Counter) RecordCopied() bool {
	c.copied++
	return c.copied%CopyCheckpointInterval == 0
}

// Package session defines the in-memory and on-disk shape of an ingestion
// session: the Session, its per-file FileState records, and the monotonic
// status transitions the pipeline enforces over them.
package session

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"
)

// SchemaVersion is bumped whenever the Session's on-disk shape changes in a
// way older readers cannot tolerate. Checkpoint resume refuses to read a
// checkpoint whose SchemaVersion is newer than this build understands.
const SchemaVersion = 1

// Status is the stage enumeration of spec.md §4.9.
type Status string

const (
	StatusPending             Status = "pending"
	StatusScanning            Status = "scanning"
	StatusDetectingDevice     Status = "detecting-device"
	StatusDetectingRelated    Status = "detecting-related"
	StatusHashing             Status = "hashing"
	StatusCopying             Status = "copying"
	StatusValidating          Status = "validating"
	StatusRenaming            Status = "renaming"
	StatusExtractingMetadata  Status = "extracting-metadata"
	StatusGeneratingSidecars  Status = "generating-sidecars"
	StatusGeneratingManifest  Status = "generating-manifest"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
	StatusPaused              Status = "paused"
)

// FileStatus is the per-file status enumeration of spec.md §3.
type FileStatus string

const (
	FileStatusPending   FileStatus = "pending"
	FileStatusHashed    FileStatus = "hashed"
	FileStatusCopied    FileStatus = "copied"
	FileStatusValidated FileStatus = "validated"
	FileStatusSkipped   FileStatus = "skipped"
	FileStatusError     FileStatus = "error"
)

// fileStatusRank gives the monotonic success ordering used to validate
// transitions: pending < hashed < copied < validated.
var fileStatusRank = map[FileStatus]int{
	FileStatusPending:   0,
	FileStatusHashed:    1,
	FileStatusCopied:    2,
	FileStatusValidated: 3,
}

// CanTransition reports whether moving a FileState from `from` to `to` is a
// legal success transition. skipped and error are terminal and are handled
// by the caller outside this monotonic ladder.
func CanTransition(from, to FileStatus) bool {
	fromRank, fromOK := fileStatusRank[from]
	toRank, toOK := fileStatusRank[to]
	if !fromOK || !toOK {
		return false
	}
	return toRank == fromRank+1
}

// CopiedCompanion records a companion file preserved alongside its primary,
// as described by spec.md §4.6/§4.7.
type CopiedCompanion struct {
	SourcePath     string `json:"sourcePath"`
	DestPath       string `json:"destPath"`
	Extension      string `json:"extension"`
	Hash           string `json:"hash"`
	Size           int64  `json:"size"`
	ContentBase64  string `json:"contentBase64,omitempty"`
	Embeddable     bool   `json:"-"`
}

// FileState is the mutable per-file record held in memory and checkpointed,
// per spec.md §3.
type FileState struct {
	SourcePath   string `json:"sourcePath"`
	RelativePath string `json:"relativePath"`
	Size         int64  `json:"size"`

	HashFull     string `json:"hashFull,omitempty"`
	HashShort    string `json:"hashShort,omitempty"`
	DestHashFull string `json:"destHashFull,omitempty"`

	DestPath     string `json:"destPath,omitempty"`
	OriginalName string `json:"originalName"`
	FinalName    string `json:"finalName,omitempty"`

	Category          string `json:"category,omitempty"`
	MIMEType          string `json:"mimeType,omitempty"`
	DetectedExtension string `json:"detectedExtension,omitempty"`
	DeclaredExtension string `json:"declaredExtension,omitempty"`
	ExtensionMismatch bool   `json:"extensionMismatch,omitempty"`

	IsPrimary    bool     `json:"isPrimary"`
	RelatedFiles []string `json:"relatedFiles,omitempty"`

	CopiedCompanions []CopiedCompanion `json:"copiedCompanions,omitempty"`

	Metadata   map[string]any `json:"metadata,omitempty"`
	Structured map[string]any `json:"structured,omitempty"`

	Status FileStatus `json:"status"`
	Error  string     `json:"error,omitempty"`

	mu sync.Mutex
}

// SetStatus applies a monotonic transition, returning an error if the move
// is illegal. skipped and error are accepted from any non-terminal state.
func (fs *FileState) SetStatus(to FileStatus) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.Status == FileStatusSkipped || fs.Status == FileStatusError {
		return fmt.Errorf("cannot transition %s: already terminal (%s)", fs.SourcePath, fs.Status)
	}
	if to == FileStatusSkipped || to == FileStatusError {
		fs.Status = to
		return nil
	}
	if !CanTransition(fs.Status, to) {
		return fmt.Errorf("illegal transition for %s: %s -> %s", fs.SourcePath, fs.Status, to)
	}
	fs.Status = to
	return nil
}

// MarkError is a convenience for SetStatus(FileStatusError) that also
// records the error string.
func (fs *FileState) MarkError(err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.Status = FileStatusError
	if err != nil {
		fs.Error = err.Error()
	}
}

// Counters holds the aggregate progress counters of spec.md §3.
type Counters struct {
	TotalFiles      int   `json:"totalFiles"`
	ProcessedFiles  int   `json:"processedFiles"`
	DuplicateFiles  int   `json:"duplicateFiles"`
	RenamedFiles    int   `json:"renamedFiles"`
	SidecarFiles    int   `json:"sidecarFiles"`
	ErrorFiles      int   `json:"errorFiles"`
	TotalBytes      int64 `json:"totalBytes"`
	ProcessedBytes  int64 `json:"processedBytes"`
}

// Session is the owning root of one ingestion run, per spec.md §3.
type Session struct {
	SchemaVersion int    `json:"schemaVersion"`
	ID            string `json:"id"`
	Status        Status `json:"status"`
	Source        string `json:"source"`
	Destination   string `json:"destination"`

	Counters Counters `json:"counters"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`

	Files []*FileState `json:"files"`

	BatchID   string `json:"batchId,omitempty"`
	BatchName string `json:"batchName,omitempty"`

	SourceDevice       string `json:"sourceDevice,omitempty"`
	SourceType         string `json:"sourceType,omitempty"`
	SourceVolume       string `json:"sourceVolume,omitempty"`
	SourceVolumeSerial string `json:"sourceVolumeSerial,omitempty"`

	mu sync.Mutex
}

// New creates a fresh Session with a ULID-shaped identifier: a
// millisecond-precision monotonic timestamp prefix followed by random bytes,
// both hex-encoded, so ids sort lexicographically by creation time.
func New(source, destination string) *Session {
	return &Session{
		SchemaVersion: SchemaVersion,
		ID:            NewID(),
		Status:        StatusPending,
		Source:        source,
		Destination:   destination,
		StartedAt:     time.Now().UTC(),
		Files:         nil,
	}
}

// NewID returns a ULID-shaped identifier: a 48-bit millisecond timestamp
// followed by 80 bits of crypto/rand, hex-encoded (monotonic + random, as
// spec.md §3 requires for Session.id).
func NewID() string {
	var ts [6]byte
	ms := uint64(time.Now().UTC().UnixMilli())
	ts[0] = byte(ms >> 40)
	ts[1] = byte(ms >> 32)
	ts[2] = byte(ms >> 24)
	ts[3] = byte(ms >> 16)
	ts[4] = byte(ms >> 8)
	ts[5] = byte(ms)

	var rnd [10]byte
	if _, err := rand.Read(rnd[:]); err != nil {
		// crypto/rand failure is effectively unrecoverable; fall back to a
		// time-derived value so NewID never panics.
		binary.BigEndian.PutUint64(rnd[:8], uint64(time.Now().UnixNano()))
	}

	return fmt.Sprintf("%x%x", ts[:], rnd[:])
}

// Lock acquires the session's single mutation lock. Pipeline workers update
// session.Files entries and counters directly while holding this lock; they
// do not hand results back to a single driving goroutine.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// SetStatus records a stage transition.
func (s *Session) SetStatus(status Status) {
	s.Lock()
	defer s.Unlock()
	s.Status = status
}

// Complete marks the session completed (or failed) and stamps CompletedAt.
func (s *Session) Complete(status Status, err error) {
	s.Lock()
	defer s.Unlock()
	s.Status = status
	now := time.Now().UTC()
	s.CompletedAt = &now
	if err != nil {
		s.Error = err.Error()
	}
}

// SortedFiles returns the session's files sorted by RelativePath, leaving
// the original slice untouched.
func (s *Session) SortedFiles() []*FileState {
	s.Lock()
	defer s.Unlock()
	out := make([]*FileState, len(s.Files))
	copy(out, s.Files)
	sort.Slice(out, func(i, j int) bool {
		return out[i].RelativePath < out[j].RelativePath
	})
	return out
}

// TerminalFiles returns the files whose status is validated (or copied, the
// caller-decided fallback when verification was disabled) — the set spec.md
// §3 requires the manifest to contain exactly.
func (s *Session) TerminalFiles(includeCopiedAsTerminal bool) []*FileState {
	s.Lock()
	defer s.Unlock()
	out := make([]*FileState, 0, len(s.Files))
	for _, f := range s.Files {
		if f.Status == FileStatusValidated {
			out = append(out, f)
			continue
		}
		if includeCopiedAsTerminal && f.Status == FileStatusCopied {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RelativePath < out[j].RelativePath
	})
	return out
}

// AllTerminal reports whether every file in the session has reached a
// terminal status (validated, copied-without-verify, skipped, or error) —
// the precondition spec.md §4.9 places on running the manifest/bag emitters.
func (s *Session) AllTerminal(verify bool) bool {
	s.Lock()
	defer s.Unlock()
	for _, f := range s.Files {
		switch f.Status {
		case FileStatusValidated, FileStatusSkipped, FileStatusError:
			continue
		case FileStatusCopied:
			if !verify {
				continue
			}
			return false
		default:
			return false
		}
	}
	return true
}

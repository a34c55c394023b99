// Package manifest emits and verifies the directory-wide manifest document
// described in spec.md §4.8: a single JSON file listing every preserved
// file's path, hash, size, and mtime.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wnbrewery/wnbimport/internal/hasher"
	"github.com/wnbrewery/wnbimport/internal/ingesterr"
)

// Version is the manifest document's schema version.
const Version = 1

// Algorithm is always "blake3" with HashLength 16: the manifest records the
// truncated short hash, not the full 64-hex digest (Open Question decision,
// see DESIGN.md).
const (
	Algorithm  = "blake3"
	HashLength = 16
)

// FileEntry is one row of the manifest's files array.
type FileEntry struct {
	Path  string    `json:"path"`
	Hash  string    `json:"hash"`
	Size  int64     `json:"size"`
	Mtime *time.Time `json:"mtime,omitempty"`
}

// Manifest is the JSON document written at the destination root.
type Manifest struct {
	Version    int         `json:"version"`
	Generated  time.Time   `json:"generated"`
	Algorithm  string      `json:"algorithm"`
	HashLength int         `json:"hashLength"`
	Root       string      `json:"root"`
	FileCount  int         `json:"fileCount"`
	TotalBytes int64       `json:"totalBytes"`
	Files      []FileEntry `json:"files"`
}

// DefaultFilename is the manifest's default name at the destination root.
const DefaultFilename = "manifest.json"

// Build assembles a Manifest from entries, sorting by path using byte-wise
// ordering (spec.md §4.8) and computing fileCount/totalBytes.
func Build(root string, entries []FileEntry, generated time.Time) Manifest {
	sorted := make([]FileEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var total int64
	for _, e := range sorted {
		total += e.Size
	}

	return Manifest{
		Version:    Version,
		Generated:  generated,
		Algorithm:  Algorithm,
		HashLength: HashLength,
		Root:       root,
		FileCount:  len(sorted),
		TotalBytes: total,
		Files:      sorted,
	}
}

// Write serializes m as indented JSON to <root>/manifest.json.
func Write(root string, m Manifest) error {
	path := filepath.Join(root, DefaultFilename)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return ingesterr.New(ingesterr.KindWrite, path, "failed to marshal manifest", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ingesterr.New(ingesterr.KindWrite, path, "failed to write manifest", err)
	}
	return nil
}

// Load reads and parses <root>/manifest.json.
func Load(root string) (Manifest, error) {
	path := filepath.Join(root, DefaultFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, ingesterr.New(ingesterr.KindRead, path, "failed to read manifest", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, ingesterr.New(ingesterr.KindSchemaValidation, path, "failed to parse manifest", err)
	}
	return m, nil
}

// VerifyResult reports the outcome of re-checking a manifest's entries
// against the files actually present under root.
type VerifyResult struct {
	Matched []string
	Missing []string
	Invalid []string
}

// OK reports whether every entry matched.
func (v VerifyResult) OK() bool {
	return len(v.Missing) == 0 && len(v.Invalid) == 0
}

// Verify recomputes each entry's BLAKE3-16 hash and compares size and hash
// against the manifest, per spec.md §8 testable property 4.
func Verify(root string, m Manifest) (VerifyResult, error) {
	var result VerifyResult
	for _, e := range m.Files {
		full := filepath.Join(root, filepath.FromSlash(e.Path))
		info, err := os.Stat(full)
		if err != nil {
			result.Missing = append(result.Missing, e.Path)
			continue
		}
		if info.Size() != e.Size {
			result.Invalid = append(result.Invalid, e.Path)
			continue
		}
		res, err := hasher.Hash(full, hasher.AlgorithmBlake3, hasher.DefaultBufferSize)
		if err != nil {
			return VerifyResult{}, err
		}
		if hasher.TruncateShort(res.Hash) != e.Hash {
			result.Invalid = append(result.Invalid, e.Path)
			continue
		}
		result.Matched = append(result.Matched, e.Path)
	}
	return result, nil
}

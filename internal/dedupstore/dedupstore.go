// Package dedupstore supplies the pipeline's known-hash set for content-
// addressed dedup, per spec.md §4.9: a caller-supplied set or external
// catalogue database, a full destination scan, or no set at all, in that
// priority order.
package dedupstore

import (
	"context"

	"github.com/wnbrewery/wnbimport/internal/hasher"
	"github.com/wnbrewery/wnbimport/internal/ingesterr"
	"github.com/wnbrewery/wnbimport/internal/scanner"
)

// Source is the interface the pipeline's hashing stage consults to decide
// whether a freshly computed source hash is already present at the
// destination.
type Source interface {
	// Load populates the source's internal known-hash set. Called once
	// before the hashing stage begins.
	Load(ctx context.Context) error
	// Contains reports whether hash (blake3 full hex) is already known.
	Contains(hash string) bool
}

// StaticSet wraps a caller-supplied set of known hashes — priority (a) in
// spec.md §4.9, e.g. fetched ahead of time from an external database.
type StaticSet struct {
	hashes map[string]struct{}
}

// NewStaticSet builds a StaticSet from a slice of full blake3 hex hashes.
func NewStaticSet(hashes []string) *StaticSet {
	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return &StaticSet{hashes: set}
}

// Load is a no-op: the set was already supplied at construction.
func (s *StaticSet) Load(ctx context.Context) error { return nil }

// Contains reports membership.
func (s *StaticSet) Contains(hash string) bool {
	_, ok := s.hashes[hash]
	return ok
}

// DestinationScan hashes every file under a destination tree once, at Load
// time, and serves Contains from the resulting in-memory set — priority (b)
// in spec.md §4.9.
type DestinationScan struct {
	root   string
	hashes map[string]struct{}
}

// NewDestinationScan returns a Source that will hash every file under root
// when Load is called.
func NewDestinationScan(root string) *DestinationScan {
	return &DestinationScan{root: root, hashes: make(map[string]struct{})}
}

// Load walks root and computes each regular file's full BLAKE3 hash.
func (d *DestinationScan) Load(ctx context.Context) error {
	entries, err := scanner.Scan(ctx, d.root, scanner.Options{})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return ingesterr.New(ingesterr.KindRead, d.root, "destination scan cancelled", ctx.Err())
		}
		res, err := hasher.Hash(e.AbsPath, hasher.AlgorithmBlake3, hasher.DefaultBufferSize)
		if err != nil {
			return err
		}
		d.hashes[res.Hash] = struct{}{}
	}
	return nil
}

// Contains reports membership.
func (d *DestinationScan) Contains(hash string) bool {
	_, ok := d.hashes[hash]
	return ok
}

// Empty is the "no dedup" source — priority (c) in spec.md §4.9.
type Empty struct{}

// Load is a no-op.
func (Empty) Load(ctx context.Context) error { return nil }

// Contains always reports false.
func (Empty) Contains(hash string) bool { return false }

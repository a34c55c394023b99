// Package scanner performs deterministic directory traversal, producing a
// lexicographically sorted sequence of regular files reachable from a root,
// honoring skip rules and never following symlinks, per spec.md §4.3.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/wnbrewery/wnbimport/internal/ingesterr"
	"github.com/wnbrewery/wnbimport/internal/skiprules"
)

// Entry is one discovered regular file.
type Entry struct {
	AbsPath      string
	RelativePath string
	Size         int64
}

// Options configures a scan.
type Options struct {
	Matcher skiprules.Matcher
}

// Scan walks root depth-first, sorting entries within each directory before
// recursing so the overall order is deterministic regardless of the
// underlying filesystem's readdir order. Symlinks are never followed — a
// symlink to a regular file is skipped, left out of the result without any report, per
// spec.md §8's boundary behavior ("A source path that is a symlink to a
// regular file is skipped by the scanner").
func Scan(ctx context.Context, root string, opts Options) ([]Entry, error) {
	matcher := opts.Matcher
	if matcher == nil {
		matcher = skiprules.NoOp{}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, ingesterr.New(ingesterr.KindStat, root, "failed to resolve root", err)
	}

	var entries []Entry
	if err := walk(ctx, absRoot, absRoot, matcher, &entries); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelativePath < entries[j].RelativePath
	})
	return entries, nil
}

func walk(ctx context.Context, root, dir string, matcher skiprules.Matcher, out *[]Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return ingesterr.New(ingesterr.KindStat, dir, "failed to read directory", err)
	}

	sort.Slice(dirEntries, func(i, j int) bool {
		return dirEntries[i].Name() < dirEntries[j].Name()
	})

	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		childPath := filepath.Join(dir, de.Name())
		relPath, err := filepath.Rel(root, childPath)
		if err != nil {
			relPath = de.Name()
		}
		relPath = filepath.ToSlash(relPath)

		isDir := de.IsDir()
		if matcher.Match(relPath, isDir) {
			continue
		}

		info, err := de.Info()
		if err != nil {
			// Race: entry vanished between readdir and stat. The entry is
			// skipped without an error and the scan continues.
			continue
		}

		if info.Mode()&os.ModeSymlink != 0 {
			// Symlinks are never traversed or reported, per spec.md §4.3/§8.
			continue
		}

		if de.IsDir() {
			if err := walk(ctx, root, childPath, matcher, out); err != nil {
				return err
			}
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		*out = append(*out, Entry{
			AbsPath:      childPath,
			RelativePath: relPath,
			Size:         info.Size(),
		})
	}

	return nil
}

// Package skiprules decides which paths the scanner should leave out of an
// ingestion run: OS metadata artifacts the archive has no reason to
// preserve (resource-fork shadow files, thumbnail caches, folder settings),
// optionally hidden files, and any path matching a user-supplied glob.
// Pattern syntax is gitignore-like (exact segment match, directory-only
// trailing slash, "!" negation, "**" via doublestar) — adapted from the
// teacher's own matcher, generalized to use a real glob engine instead of a
// hand-rolled one.
package skiprules

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/wnbrewery/wnbimport/internal/logger"
)

// DefaultOSMetadataPatterns are skipped ahead of any user pattern, per
// spec.md §4.3 ("OS metadata files (e.g. resource forks, folder metadata
// artifacts, Windows thumbnail caches)").
var DefaultOSMetadataPatterns = []string{
	".DS_Store",
	"._*",
	"Thumbs.db",
	"thumbs.db",
	"desktop.ini",
	".Spotlight-V100",
	".Trashes",
	".fseventsd",
	"System Volume Information",
}

// Matcher decides whether a path should be excluded from a scan.
type Matcher interface {
	// Match reports whether path (relative to the scan root, forward-slash
	// normalized) should be excluded. isDir tells directory-only patterns
	// whether to apply.
	Match(path string, isDir bool) bool
}

type pattern struct {
	raw        string
	isDirOnly  bool
	isNegation bool
	glob       string
}

// Set is a compiled collection of skip patterns.
type Set struct {
	patterns       []pattern
	includeHidden  bool
}

// Options configures matcher construction.
type Options struct {
	// Patterns are additional user-supplied exclusion globs.
	Patterns []string
	// IncludeHidden, if true, does not skip dotfiles by default (dotfiles
	// are otherwise skipped unless explicitly un-skipped by a negation
	// pattern or this flag).
	IncludeHidden bool
	// LoadDefaultFiles, if true, loads .wnbimportignore and .gitignore from
	// RootDir itself; parent and sub-directories are not searched.
	LoadDefaultFiles bool
	// RootDir is where LoadDefaultFiles looks for ignore files.
	RootDir string
	// CustomIgnoreFile is an optional explicit ignore file path. Its
	// patterns join one set with all the others: a matching "!" pattern
	// un-skips a path whichever source it came from, and sources have no
	// other precedence between them.
	CustomIgnoreFile string
}

// New compiles a Set from explicit patterns plus the built-in OS metadata
// table. It never returns an error for missing optional ignore files — only
// for a CustomIgnoreFile that was specified but unreadable.
func New(opts Options) (*Set, error) {
	all := append([]string{}, DefaultOSMetadataPatterns...)
	all = append(all, opts.Patterns...)

	if opts.CustomIgnoreFile != "" {
		custom, err := loadFile(opts.CustomIgnoreFile, true)
		if err != nil {
			return nil, fmt.Errorf("failed to load custom ignore file: %w", err)
		}
		all = append(all, custom...)
	}

	if opts.LoadDefaultFiles && opts.RootDir != "" {
		for _, name := range []string{".wnbimportignore", ".gitignore"} {
			found, err := loadFile(filepath.Join(opts.RootDir, name), false)
			if err != nil {
				return nil, err
			}
			all = append(all, found...)
		}
	}

	s := &Set{includeHidden: opts.IncludeHidden}
	for _, raw := range all {
		p := strings.TrimSpace(raw)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		pat := pattern{raw: p}
		if strings.HasPrefix(p, "!") {
			pat.isNegation = true
			p = strings.TrimPrefix(p, "!")
		}
		if strings.HasSuffix(p, "/") {
			pat.isDirOnly = true
			p = strings.TrimSuffix(p, "/")
		}
		p = filepath.ToSlash(p)
		if !strings.Contains(p, "/") && !strings.Contains(p, "*") {
			// bare name: match at any depth, like gitignore
			p = "**/" + p
		}
		pat.glob = p
		s.patterns = append(s.patterns, pat)
	}
	return s, nil
}

// Match implements Matcher.
func (s *Set) Match(path string, isDir bool) bool {
	norm := filepath.ToSlash(path)
	base := filepath.Base(norm)

	if !s.includeHidden && strings.HasPrefix(base, ".") && base != "." && base != ".." {
		// Hidden files are skipped by default unless a negation overrides
		// them below; track separately so an explicit "!.foo" still works.
	}

	matched := false
	matchedNegation := false
	for _, pat := range s.patterns {
		if pat.isDirOnly && !isDir {
			continue
		}
		ok, _ := doublestar.Match(pat.glob, norm)
		if !ok {
			ok, _ = doublestar.Match(pat.glob, base)
		}
		if !ok {
			// a path beneath a matched directory is covered too, like gitignore
			ok, _ = doublestar.Match(pat.glob+"/**", norm)
		}
		if ok {
			if pat.isNegation {
				matchedNegation = true
			} else {
				matched = true
			}
		}
	}

	if matchedNegation {
		return false
	}
	if matched {
		return true
	}

	if !s.includeHidden && strings.HasPrefix(base, ".") && base != "." && base != ".." {
		return true
	}
	return false
}

func loadFile(path string, required bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil, nil
		}
		if !required {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("failed to close ignore file", "path", path, "error", cerr)
		}
	}()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// NoOp is a Matcher that never excludes anything.
type NoOp struct{}

// Match always returns false.
func (NoOp) Match(string, bool) bool { return false }

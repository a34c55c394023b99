// Package companion resolves the side files that must be preserved alongside
// a primary media file — telemetry, thumbnails, proxy video, per-clip XML —
// per spec.md §4.6.
package companion

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/wnbrewery/wnbimport/internal/ingesterr"
)

// EmbedSizeLimit is the size, in bytes, above which a companion's content is
// never inlined into the primary's record regardless of extension.
const EmbedSizeLimit = 10 * 1024 * 1024 // 10 MiB

// embedDenyList holds extensions that are never inlined even under the size
// limit: low-res proxy video and RAW-variant binaries the archive keeps as
// plain copied files rather than base64 blobs in a record.
var embedDenyList = map[string]bool{
	".mov":  true,
	".mp4":  true,
	".mxf":  true,
	".rmf":  true,
	".raw":  true,
}

// Companion is one side file discovered next to a primary.
type Companion struct {
	SourcePath string
	Extension  string
	Size       int64
	Embeddable bool
}

// Listing caches a directory's entries so that resolving companions for many
// files in the same directory costs one readdir, not one per file.
type Listing struct {
	dir     string
	byStem  map[string][]os.DirEntry
	entries []os.DirEntry
}

// Cache amortizes directory listings across a batch job: D readdirs total
// across K files spanning D directories, not K, per spec.md §4.6.
type Cache struct {
	listings map[string]*Listing
}

// NewCache returns an empty per-directory listing cache.
func NewCache() *Cache {
	return &Cache{listings: make(map[string]*Listing)}
}

func (c *Cache) listingFor(dir string) (*Listing, error) {
	if l, ok := c.listings[dir]; ok {
		return l, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ingesterr.New(ingesterr.KindRead, dir, "failed to list directory for companion discovery", err)
	}
	l := &Listing{dir: dir, byStem: make(map[string][]os.DirEntry)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stem := strings.ToLower(stemOf(e.Name()))
		l.byStem[stem] = append(l.byStem[stem], e)
	}
	l.entries = entries
	c.listings[dir] = l
	return l, nil
}

// Resolve returns the companions of primaryPath using the cache, loading the
// containing directory's listing at most once.
func (c *Cache) Resolve(primaryPath string) ([]Companion, error) {
	dir := filepath.Dir(primaryPath)
	listing, err := c.listingFor(dir)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(primaryPath)
	stem := strings.ToLower(stemOf(base))

	seen := make(map[string]bool)
	var out []Companion

	addCandidate := func(e os.DirEntry) error {
		name := e.Name()
		if strings.EqualFold(name, base) {
			return nil
		}
		if seen[name] {
			return nil
		}
		seen[name] = true
		full := filepath.Join(dir, name)
		info, err := e.Info()
		if err != nil {
			return ingesterr.New(ingesterr.KindStat, full, "failed to stat companion candidate", err)
		}
		ext := strings.ToLower(filepath.Ext(name))
		out = append(out, Companion{
			SourcePath: full,
			Extension:  ext,
			Size:       info.Size(),
			Embeddable: info.Size() <= EmbedSizeLimit && !embedDenyList[ext],
		})
		return nil
	}

	for _, e := range listing.byStem[stem] {
		if err := addCandidate(e); err != nil {
			return nil, err
		}
	}

	for _, e := range listing.entries {
		if manufacturerSuffixMatch(base, e.Name()) {
			if err := addCandidate(e); err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SourcePath < out[j].SourcePath })
	return out, nil
}

// manufacturerSuffixMaxLen bounds the suffix length manufacturerSuffixMatch
// accepts, per spec.md §4.6.
const manufacturerSuffixMaxLen = 6

// globMetaChars are the doublestar characters that must be escaped when a
// filename stem is spliced into a glob pattern as a literal prefix.
const globMetaChars = `\*?[]{}!`

// manufacturerSuffixMatch recognizes camera-firmware pairings such as a
// primary "CLIP0001.MP4" pairing with a sidecar "CLIP0001M01.XML" — the
// sidecar's stem starts with the primary's stem and appends a short
// manufacturer suffix (one to manufacturerSuffixMaxLen letters or digits, in
// any order) before its own extension. The suffix is matched with a doublestar glob built from the
// escaped primary stem, rather than a hand-rolled character scan.
func manufacturerSuffixMatch(primaryName, candidateName string) bool {
	primaryStem := strings.ToLower(stemOf(primaryName))
	candidateStem := strings.ToLower(stemOf(candidateName))
	if primaryStem == "" || candidateStem == primaryStem {
		return false
	}
	if !strings.HasPrefix(candidateStem, primaryStem) {
		return false
	}
	suffixLen := len(candidateStem) - len(primaryStem)
	if suffixLen < 1 || suffixLen > manufacturerSuffixMaxLen {
		return false
	}

	pattern := escapeGlobLiteral(primaryStem) + strings.Repeat("[a-z0-9]", suffixLen)
	ok, err := doublestar.Match(pattern, candidateStem)
	return err == nil && ok
}

// escapeGlobLiteral backslash-escapes doublestar metacharacters so an
// arbitrary filename stem can be spliced into a glob pattern as a literal.
func escapeGlobLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(globMetaChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stemOf(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext)
}

// Package bag emits and verifies RFC 8493 ("BagIt") preservation packages,
// per spec.md §4.8: bagit.txt, bag-info.txt with Payload-Oxum, one payload
// manifest, one tag manifest, and a data/ directory holding the payload.
package bag

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wnbrewery/wnbimport/internal/hasher"
	"github.com/wnbrewery/wnbimport/internal/ingesterr"
)

// Algorithm is one of the two digest algorithms a bag manifest may declare.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

func (a Algorithm) hasherAlgorithm() hasher.Algorithm {
	if a == SHA512 {
		return hasher.AlgorithmSHA512
	}
	return hasher.AlgorithmSHA256
}

const bagitContents = "BagIt-Version: 1.0\nTag-File-Character-Encoding: UTF-8\n"

const (
	bagitFilename = "bagit.txt"
	infoFilename  = "bag-info.txt"
	dataDirname   = "data"
)

func manifestFilename(alg Algorithm) string    { return fmt.Sprintf("manifest-%s.txt", alg) }
func tagManifestFilename(alg Algorithm) string  { return fmt.Sprintf("tagmanifest-%s.txt", alg) }

// Summary describes a freshly created bag.
type Summary struct {
	BagDir       string
	Algorithm    Algorithm
	PayloadBytes int64
	PayloadFiles int
	PayloadOxum  string
}

// CreateInPlace turns dir's existing contents into a bag in place: every
// entry currently directly under dir is moved under dir/data/, then the tag
// files are written alongside.
func CreateInPlace(dir string, alg Algorithm) (Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Summary{}, ingesterr.New(ingesterr.KindRead, dir, "failed to list bag source directory", err)
	}

	dataDir := filepath.Join(dir, dataDirname)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return Summary{}, ingesterr.New(ingesterr.KindWrite, dataDir, "failed to create data directory", err)
	}

	for _, e := range entries {
		if e.Name() == dataDirname {
			continue
		}
		src := filepath.Join(dir, e.Name())
		dst := filepath.Join(dataDir, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return Summary{}, ingesterr.New(ingesterr.KindRename, src, "failed to move payload into data directory", err)
		}
	}

	return writeBag(dir, alg)
}

// CreateCopyOut writes a fresh bag tree at bagDir, copying every regular
// file under sourceDir into bagDir/data, preserving relative paths.
func CreateCopyOut(sourceDir, bagDir string, alg Algorithm) (Summary, error) {
	dataDir := filepath.Join(bagDir, dataDirname)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return Summary{}, ingesterr.New(ingesterr.KindWrite, dataDir, "failed to create data directory", err)
	}

	err := filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dataDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return copyFile(path, dst)
	})
	if err != nil {
		return Summary{}, ingesterr.New(ingesterr.KindWrite, bagDir, "failed to copy payload into bag", err)
	}

	return writeBag(bagDir, alg)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	buf := make([]byte, 256*1024)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	return out.Sync()
}

func writeBag(bagDir string, alg Algorithm) (Summary, error) {
	dataDir := filepath.Join(bagDir, dataDirname)
	lines, totalBytes, fileCount, err := manifestLines(dataDir, alg)
	if err != nil {
		return Summary{}, err
	}

	manifestPath := filepath.Join(bagDir, manifestFilename(alg))
	if err := writeLines(manifestPath, lines); err != nil {
		return Summary{}, err
	}

	oxum := fmt.Sprintf("%d.%d", totalBytes, fileCount)

	bagitPath := filepath.Join(bagDir, bagitFilename)
	if err := os.WriteFile(bagitPath, []byte(bagitContents), 0o644); err != nil {
		return Summary{}, ingesterr.New(ingesterr.KindWrite, bagitPath, "failed to write bagit.txt", err)
	}

	infoPath := filepath.Join(bagDir, infoFilename)
	infoContents := fmt.Sprintf(
		"Payload-Oxum: %s\nBag-Size: %s\nBagging-Date: %s\n",
		oxum, humanize.Bytes(uint64(totalBytes)), time.Now().UTC().Format("2006-01-02"),
	)
	if err := os.WriteFile(infoPath, []byte(infoContents), 0o644); err != nil {
		return Summary{}, ingesterr.New(ingesterr.KindWrite, infoPath, "failed to write bag-info.txt", err)
	}

	tagLines, err := tagManifestLines(bagDir, alg)
	if err != nil {
		return Summary{}, err
	}
	tagPath := filepath.Join(bagDir, tagManifestFilename(alg))
	if err := writeLines(tagPath, tagLines); err != nil {
		return Summary{}, err
	}

	return Summary{
		BagDir:       bagDir,
		Algorithm:    alg,
		PayloadBytes: totalBytes,
		PayloadFiles: fileCount,
		PayloadOxum:  oxum,
	}, nil
}

// manifestLines walks dataDir and returns "<hex>  <relpath>" lines sorted by
// relpath, with forward-slash separators regardless of platform.
func manifestLines(dataDir string, alg Algorithm) (lines []string, totalBytes int64, fileCount int, err error) {
	type entry struct {
		rel  string
		hash string
		size int64
	}
	var entries []entry

	walkErr := filepath.Walk(dataDir, func(path string, info os.FileInfo, werr error) error {
		if werr != nil {
			return werr
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dataDir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		res, hashErr := hasher.Hash(path, alg.hasherAlgorithm(), hasher.DefaultBufferSize)
		if hashErr != nil {
			return hashErr
		}
		entries = append(entries, entry{rel: rel, hash: res.Hash, size: info.Size()})
		return nil
	})
	if walkErr != nil {
		return nil, 0, 0, ingesterr.New(ingesterr.KindRead, dataDir, "failed to hash bag payload", walkErr)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s  %s", e.hash, e.rel))
		totalBytes += e.size
		fileCount++
	}
	return lines, totalBytes, fileCount, nil
}

func tagManifestLines(bagDir string, alg Algorithm) ([]string, error) {
	tagFiles := []string{bagitFilename, infoFilename, manifestFilename(alg)}
	var lines []string
	for _, name := range tagFiles {
		path := filepath.Join(bagDir, name)
		res, err := hasher.Hash(path, alg.hasherAlgorithm(), hasher.DefaultBufferSize)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fmt.Sprintf("%s  %s", res.Hash, name))
	}
	return lines, nil
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return ingesterr.New(ingesterr.KindWrite, path, "failed to create manifest file", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return ingesterr.New(ingesterr.KindWrite, path, "failed to write manifest line", err)
		}
	}
	if err := w.Flush(); err != nil {
		return ingesterr.New(ingesterr.KindWrite, path, "failed to flush manifest file", err)
	}
	return f.Sync()
}

// VerifyResult separates a verification failure's cause so a caller can
// distinguish corruption (invalid) from tampering (extra/missing), per
// spec.md §4.8.
type VerifyResult struct {
	Matched         []string
	Missing         []string
	Invalid         []string
	Extra           []string
	PayloadOxumOK   bool
	TagManifestOK   bool
}

// OK reports whether the bag matched its recorded manifests exactly.
func (v VerifyResult) OK() bool {
	return len(v.Missing) == 0 && len(v.Invalid) == 0 && len(v.Extra) == 0 && v.PayloadOxumOK && v.TagManifestOK
}

// Verify recomputes both manifests for the bag at bagDir and compares them
// to the recorded ones.
func Verify(bagDir string, alg Algorithm) (VerifyResult, error) {
	var result VerifyResult

	recorded, err := readManifest(filepath.Join(bagDir, manifestFilename(alg)))
	if err != nil {
		return VerifyResult{}, err
	}

	dataDir := filepath.Join(bagDir, dataDirname)
	actualLines, totalBytes, fileCount, err := manifestLines(dataDir, alg)
	if err != nil {
		return VerifyResult{}, err
	}
	actual := parseLines(actualLines)

	for relpath, expectedHash := range recorded {
		actualHash, present := actual[relpath]
		if !present {
			result.Missing = append(result.Missing, relpath)
			continue
		}
		if actualHash != expectedHash {
			result.Invalid = append(result.Invalid, relpath)
			continue
		}
		result.Matched = append(result.Matched, relpath)
	}
	for relpath := range actual {
		if _, expected := recorded[relpath]; !expected {
			result.Extra = append(result.Extra, relpath)
		}
	}
	sort.Strings(result.Matched)
	sort.Strings(result.Missing)
	sort.Strings(result.Invalid)
	sort.Strings(result.Extra)

	info, err := readBagInfo(filepath.Join(bagDir, infoFilename))
	if err != nil {
		return VerifyResult{}, err
	}
	expectedOxum := fmt.Sprintf("%d.%d", totalBytes, fileCount)
	result.PayloadOxumOK = info["Payload-Oxum"] == expectedOxum

	tagLines, err := tagManifestLines(bagDir, alg)
	if err != nil {
		return VerifyResult{}, err
	}
	recordedTag, err := readManifest(filepath.Join(bagDir, tagManifestFilename(alg)))
	if err != nil {
		return VerifyResult{}, err
	}
	actualTag := parseLines(tagLines)
	result.TagManifestOK = len(recordedTag) == len(actualTag)
	if result.TagManifestOK {
		for name, hash := range recordedTag {
			if actualTag[name] != hash {
				result.TagManifestOK = false
				break
			}
		}
	}

	return result, nil
}

func readManifest(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ingesterr.New(ingesterr.KindRead, path, "failed to read manifest", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return parseLines(lines), nil
}

func parseLines(lines []string) map[string]string {
	out := make(map[string]string, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "  ", 2)
		if len(parts) != 2 {
			continue
		}
		out[parts[1]] = parts[0]
	}
	return out
}

func readBagInfo(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ingesterr.New(ingesterr.KindRead, path, "failed to read bag-info.txt", err)
	}
	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) != 2 {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

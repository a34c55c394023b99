// Package pipeline implements the ingestion state machine of spec.md §4.9:
// it sequences scanning, relating, hashing, copying, validating, renaming,
// metadata extraction, sidecar generation, and manifest generation over a
// session, checkpointing as it goes and fanning out bounded worker pools
// per storage-class concurrency.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/wnbrewery/wnbimport/internal/checkpoint"
	"github.com/wnbrewery/wnbimport/internal/classify"
	"github.com/wnbrewery/wnbimport/internal/companion"
	"github.com/wnbrewery/wnbimport/internal/copier"
	"github.com/wnbrewery/wnbimport/internal/dedupstore"
	"github.com/wnbrewery/wnbimport/internal/extract"
	"github.com/wnbrewery/wnbimport/internal/hasher"
	"github.com/wnbrewery/wnbimport/internal/ingesterr"
	"github.com/wnbrewery/wnbimport/internal/logger"
	"github.com/wnbrewery/wnbimport/internal/related"
	"github.com/wnbrewery/wnbimport/internal/scanner"
	"github.com/wnbrewery/wnbimport/internal/session"
	"github.com/wnbrewery/wnbimport/internal/skiprules"
	"github.com/wnbrewery/wnbimport/internal/storageclass"
)

// Progress is a point-in-time snapshot handed to Options.OnProgress once
// after each stage finishes; it is not emitted per file (spec.md §4.9's "invokes a progress
// callback"; the callback's payload shape is this package's decision, per
// SPEC_FULL.md §10).
type Progress struct {
	Stage          session.Status
	TotalFiles     int
	ProcessedFiles int
	ErrorFiles     int
	DuplicateFiles int
}

// Options configures one pipeline run.
type Options struct {
	Verify           bool
	Rename           bool
	ExtractMetadata  bool
	GenerateSidecars bool
	GenerateManifest bool

	Matcher     skiprules.Matcher
	DedupSource dedupstore.Source
	Extractors  []extract.Extractor

	BatchID   string
	BatchName string

	SourceDevice       string
	SourceType         string
	SourceVolume       string
	SourceVolumeSerial string

	ToolVersion    string
	ImportUser     string
	ImportHost     string
	ImportPlatform string

	OnProgress func(Progress)
}

// Pipeline is the stateless driver; all mutable state lives on the Session
// it produces.
type Pipeline struct{}

// New returns a ready-to-use Pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Run executes a full ingestion: scan, relate, hash, dedup, copy, validate,
// rename, extract metadata, emit sidecars, emit the manifest. It always
// returns a non-nil *session.Session; a nil error with status `failed` does
// not occur — fatal errors are both returned and recorded on the session.
func (p *Pipeline) Run(ctx context.Context, source, destination string, opts Options) (*session.Session, error) {
	return p.RunResumed(ctx, session.New(source, destination), opts)
}

// RunResumed continues an existing session (fresh or loaded from a
// checkpoint) from wherever its files' statuses indicate work remains.
func (p *Pipeline) RunResumed(ctx context.Context, s *session.Session, opts Options) (*session.Session, error) {
	s.SourceDevice = opts.SourceDevice
	s.SourceType = opts.SourceType
	s.SourceVolume = opts.SourceVolume
	s.SourceVolumeSerial = opts.SourceVolumeSerial
	s.BatchID = opts.BatchID
	s.BatchName = opts.BatchName

	if opts.DedupSource == nil {
		opts.DedupSource = dedupstore.Empty{}
	}

	if err := os.MkdirAll(s.Destination, 0o755); err != nil {
		err = ingesterr.New(ingesterr.KindWrite, s.Destination, "failed to create destination directory", err)
		s.Complete(session.StatusFailed, err)
		return s, err
	}

	stages := []func(context.Context, *session.Session, Options) error{
		p.runScanning,
		p.runDetectingRelated,
		p.runHashing,
		p.runCopying,
	}
	if opts.Rename {
		stages = append(stages, p.runRenaming)
	}
	if opts.ExtractMetadata {
		stages = append(stages, p.runExtractingMetadata)
	}
	if opts.GenerateSidecars {
		stages = append(stages, p.runGeneratingSidecars)
	}
	if opts.GenerateManifest {
		stages = append(stages, p.runGeneratingManifest)
	}

	for _, stage := range stages {
		if ctx.Err() != nil {
			s.Complete(session.StatusPaused, nil)
			return s, p.checkpointOrFail(s)
		}
		if err := stage(ctx, s, opts); err != nil {
			// Stage functions only return non-nil for fatal conditions;
			// per-file errors are absorbed into FileState.error and counters.
			s.Complete(session.StatusFailed, err)
			_ = checkpoint.Write(s)
			return s, err
		}
		p.emitProgress(s, opts)
	}

	if s.AllTerminal(opts.Verify) {
		s.Complete(session.StatusCompleted, nil)
	}
	if err := checkpoint.Delete(s.Destination); err != nil {
		return s, err
	}
	return s, nil
}

func (p *Pipeline) checkpointOrFail(s *session.Session) error {
	if err := checkpoint.Write(s); err != nil {
		s.Complete(session.StatusFailed, err)
		return err
	}
	return nil
}

func (p *Pipeline) emitProgress(s *session.Session, opts Options) {
	if opts.OnProgress == nil {
		return
	}
	s.Lock()
	pr := Progress{
		Stage:          s.Status,
		TotalFiles:     s.Counters.TotalFiles,
		ProcessedFiles: s.Counters.ProcessedFiles,
		ErrorFiles:     s.Counters.ErrorFiles,
		DuplicateFiles: s.Counters.DuplicateFiles,
	}
	s.Unlock()
	opts.OnProgress(pr)
}

func (p *Pipeline) setStatus(s *session.Session, status session.Status) error {
	s.SetStatus(status)
	return checkpoint.Write(s)
}

// runScanning walks the source tree and seeds Session.Files. Already-seeded
// files (resume) are left untouched.
func (p *Pipeline) runScanning(ctx context.Context, s *session.Session, opts Options) error {
	if err := p.setStatus(s, session.StatusScanning); err != nil {
		return err
	}
	if len(s.Files) > 0 {
		return nil // resumed session already has its file list
	}

	entries, err := scanner.Scan(ctx, s.Source, scanner.Options{Matcher: opts.Matcher})
	if err != nil {
		return err
	}

	s.Lock()
	for _, e := range entries {
		s.Files = append(s.Files, &session.FileState{
			SourcePath:   e.AbsPath,
			RelativePath: e.RelativePath,
			Size:         e.Size,
			OriginalName: filepath.Base(e.AbsPath),
			Status:       session.FileStatusPending,
		})
	}
	s.Counters.TotalFiles = len(s.Files)
	for _, f := range s.Files {
		s.Counters.TotalBytes += f.Size
	}
	s.Unlock()

	return nil
}

// runDetectingRelated groups files sharing a (directory, basename) key and
// marks exactly one primary per group.
func (p *Pipeline) runDetectingRelated(ctx context.Context, s *session.Session, opts Options) error {
	if err := p.setStatus(s, session.StatusDetectingRelated); err != nil {
		return err
	}

	s.Lock()
	byPath := make(map[string]*session.FileState, len(s.Files))
	paths := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		byPath[f.SourcePath] = f
		paths = append(paths, f.SourcePath)
	}
	s.Unlock()

	groups := related.Resolve(paths)

	s.Lock()
	for _, g := range groups {
		for _, member := range g.Members {
			fs := byPath[member]
			if fs == nil {
				continue
			}
			fs.IsPrimary = member == g.Primary
			if len(g.Members) > 1 {
				for _, other := range g.Members {
					if other != member {
						fs.RelatedFiles = append(fs.RelatedFiles, other)
					}
				}
			}
		}
	}
	s.Unlock()

	return nil
}

// runHashing computes each pending file's source hash, applies dedup, and
// advances status to hashed or skipped. Work is fanned out per the storage
// class of the session's source path.
func (p *Pipeline) runHashing(ctx context.Context, s *session.Session, opts Options) error {
	if err := p.setStatus(s, session.StatusHashing); err != nil {
		return err
	}

	if err := opts.DedupSource.Load(ctx); err != nil {
		return err
	}

	profile := storageclass.ProfileFor(storageclass.Classify(s.Source))
	counter := &checkpoint.Counter{}

	return p.forEachPending(ctx, s, session.FileStatusPending, profile.HashConcurrency, func(fs *session.FileState) error {
		res, err := hasher.Hash(fs.SourcePath, hasher.AlgorithmBlake3, profile.BlockSize)
		if err != nil {
			p.recordFileError(s, fs, err)
			return nil
		}

		cls, clsErr := classify.Classify(fs.SourcePath)
		if clsErr != nil {
			logger.Warn("failed to classify file", "path", fs.SourcePath, "error", clsErr)
		}

		s.Lock()
		fs.HashFull = res.Hash
		fs.HashShort = hasher.TruncateShort(res.Hash)
		if clsErr == nil {
			fs.Category = string(cls.Category)
			fs.MIMEType = cls.MIMEType
			fs.DetectedExtension = cls.DetectedExtension
			fs.DeclaredExtension = cls.DeclaredExtension
			fs.ExtensionMismatch = cls.ExtensionMismatch
		}
		dup := opts.DedupSource.Contains(fs.HashFull)
		if dup {
			_ = fs.SetStatus(session.FileStatusSkipped)
			s.Counters.DuplicateFiles++
		} else {
			_ = fs.SetStatus(session.FileStatusHashed)
		}
		s.Unlock()

		if counter.RecordHashed() {
			_ = checkpoint.Write(s)
		}
		return nil
	})
}

// runCopying copies every hashed file to its destination path, verifying
// per opts.Verify, and advances status to copied (and validated, when
// verification succeeded).
func (p *Pipeline) runCopying(ctx context.Context, s *session.Session, opts Options) error {
	if err := p.setStatus(s, session.StatusCopying); err != nil {
		return err
	}

	profile := storageclass.ProfileFor(storageclass.Classify(s.Destination))
	counter := &checkpoint.Counter{}
	companions := companion.NewCache()
	var companionsMu sync.Mutex

	err := p.forEachPending(ctx, s, session.FileStatusHashed, profile.CopyConcurrency, func(fs *session.FileState) error {
		destPath := filepath.Join(s.Destination, fs.RelativePath)

		res, err := copier.Copy(ctx, fs.SourcePath, destPath, copier.Options{
			Algorithm: hasher.AlgorithmBlake3,
			BlockSize: profile.BlockSize,
			Verify:    opts.Verify,
			Overwrite: false,
		})
		if err != nil {
			p.recordFileError(s, fs, err)
			return nil
		}

		var companionResults []companion.Companion
		if fs.IsPrimary {
			companionsMu.Lock()
			companionResults, err = companions.Resolve(fs.SourcePath)
			companionsMu.Unlock()
			if err != nil {
				p.recordFileError(s, fs, err)
				return nil
			}
		}

		s.Lock()
		fs.DestPath = destPath
		fs.DestHashFull = res.DestHash
		for _, c := range companionResults {
			companionDest := filepath.Join(filepath.Dir(destPath), filepath.Base(c.SourcePath))
			fs.CopiedCompanions = append(fs.CopiedCompanions, session.CopiedCompanion{
				SourcePath: c.SourcePath,
				DestPath:   companionDest,
				Extension:  c.Extension,
				Size:       c.Size,
				Embeddable: c.Embeddable,
			})
		}
		if opts.Verify && res.Verified {
			_ = fs.SetStatus(session.FileStatusCopied)
			_ = fs.SetStatus(session.FileStatusValidated)
		} else {
			_ = fs.SetStatus(session.FileStatusCopied)
		}
		s.Counters.ProcessedFiles++
		s.Counters.ProcessedBytes += fs.Size
		if len(fs.CopiedCompanions) > 0 {
			s.Counters.SidecarFiles += len(fs.CopiedCompanions)
		}
		s.Unlock()

		if counter.RecordCopied() {
			_ = checkpoint.Write(s)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, c := range companionCopyList(s) {
		if err := copyCompanionFile(ctx, c); err != nil {
			// Companion copy failures are per-file: this companion is left
			// uncopied, the rest are still copied, and the session is not failed.
			logger.Warn("failed to copy companion file", "path", c.src, "error", err)
			continue
		}
	}

	return nil
}

// companionCopyList and copyCompanionFile are split out so runCopying's
// main loop stays readable; they physically copy each discovered companion
// next to its primary's destination.
func companionCopyList(s *session.Session) []companionCopy {
	s.Lock()
	defer s.Unlock()
	var out []companionCopy
	for _, fs := range s.Files {
		for _, c := range fs.CopiedCompanions {
			out = append(out, companionCopy{src: c.SourcePath, dst: c.DestPath})
		}
	}
	return out
}

type companionCopy struct {
	src string
	dst string
}

func copyCompanionFile(ctx context.Context, c companionCopy) error {
	if _, err := os.Stat(c.dst); err == nil {
		return nil // already copied (resume)
	}
	_, err := copier.Copy(ctx, c.src, c.dst, copier.Options{
		Algorithm: hasher.AlgorithmBlake3,
		BlockSize: hasher.DefaultBufferSize,
		Verify:    false,
		Overwrite: false,
	})
	return err
}

// runRenaming renames each copied or validated file's destination to its content
// hash plus original extension.
func (p *Pipeline) runRenaming(ctx context.Context, s *session.Session, opts Options) error {
	if err := p.setStatus(s, session.StatusRenaming); err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()
	for _, fs := range s.Files {
		if fs.Status != session.FileStatusValidated && fs.Status != session.FileStatusCopied {
			continue
		}
		if fs.DestPath == "" {
			continue
		}
		ext := filepath.Ext(fs.OriginalName)
		finalName := fs.HashShort + ext
		finalPath := filepath.Join(filepath.Dir(fs.DestPath), finalName)
		if finalPath == fs.DestPath {
			continue
		}
		if err := os.Rename(fs.DestPath, finalPath); err != nil {
			fs.Error = ingesterr.New(ingesterr.KindRename, fs.DestPath, "failed to rename destination file", err).Error()
			s.Counters.ErrorFiles++
			continue
		}
		fs.DestPath = finalPath
		fs.FinalName = finalName
		s.Counters.RenamedFiles++
	}
	return nil
}

// runExtractingMetadata runs the configured external extractors against
// every copied file, merging their output into FileState.Metadata.
func (p *Pipeline) runExtractingMetadata(ctx context.Context, s *session.Session, opts Options) error {
	if err := p.setStatus(s, session.StatusExtractingMetadata); err != nil {
		return err
	}
	if len(opts.Extractors) == 0 {
		return nil
	}

	return p.forEachByStatus(ctx, s, []session.FileStatus{session.FileStatusCopied, session.FileStatusValidated}, extract.DefaultConcurrency, func(fs *session.FileState) error {
		results, _ := extract.RunAll(ctx, opts.Extractors, fs.Category, fs.SourcePath)
		if len(results) == 0 {
			return nil
		}
		s.Lock()
		if fs.Metadata == nil {
			fs.Metadata = make(map[string]any)
		}
		for name, res := range results {
			for k, v := range res.Fields {
				fs.Metadata[name+"_"+k] = v
			}
			if len(res.Structured) > 0 {
				if fs.Structured == nil {
					fs.Structured = make(map[string]any)
				}
				for k, v := range res.Structured {
					fs.Structured[k] = v
				}
			}
		}
		s.Unlock()
		return nil
	})
}

// runGeneratingSidecars is implemented in sidecars.go.
// runGeneratingManifest is implemented in manifest_stage.go.

// recordFileError marks a file errored and increments the session's error
// counter, without failing the session (spec.md §7: "per-file errors ...
// never fail the session").
func (p *Pipeline) recordFileError(s *session.Session, fs *session.FileState, err error) {
	s.Lock()
	fs.MarkError(err)
	s.Counters.ErrorFiles++
	s.Unlock()
}

// forEachPending fans work for files currently in `want` status out across
// a bounded worker pool, honoring cancellation.
func (p *Pipeline) forEachPending(ctx context.Context, s *session.Session, want session.FileStatus, concurrency int, fn func(*session.FileState) error) error {
	return p.forEachByStatus(ctx, s, []session.FileStatus{want}, concurrency, fn)
}

func (p *Pipeline) forEachByStatus(ctx context.Context, s *session.Session, want []session.FileStatus, concurrency int, fn func(*session.FileState) error) error {
	if concurrency < 1 {
		concurrency = 1
	}

	s.Lock()
	wantSet := make(map[session.FileStatus]bool, len(want))
	for _, st := range want {
		wantSet[st] = true
	}
	var targets []*session.FileState
	for _, fs := range s.Files {
		if wantSet[fs.Status] {
			targets = append(targets, fs)
		}
	}
	s.Unlock()

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for _, fs := range targets {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(fs *session.FileState) {
			defer wg.Done()
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			if err := fn(fs); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}(fs)
	}
	wg.Wait()

	return firstErr
}

package pipeline

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"time"

	"github.com/wnbrewery/wnbimport/internal/classify"
	"github.com/wnbrewery/wnbimport/internal/ingesterr"
	"github.com/wnbrewery/wnbimport/internal/record"
	"github.com/wnbrewery/wnbimport/internal/session"
)

// sidecarExtension is appended to a destination file's basename to locate
// its per-file record, per spec.md §4.7.
const sidecarExtension = ".xmp"

// runGeneratingSidecars emits one record per copied/validated file, as a
// sibling of its destination file. No record is written for a file in the
// error or skipped state (spec.md §4.9 ordering guarantee).
func (p *Pipeline) runGeneratingSidecars(ctx context.Context, s *session.Session, opts Options) error {
	if err := p.setStatus(s, session.StatusGeneratingSidecars); err != nil {
		return err
	}

	return p.forEachByStatus(ctx, s, []session.FileStatus{session.FileStatusCopied, session.FileStatusValidated}, 4, func(fs *session.FileState) error {
		rec := buildRecord(s, fs, opts)

		data, err := record.EncodeXMP(rec)
		if err != nil {
			p.recordFileError(s, fs, err)
			return nil
		}

		sidecarPath := fs.DestPath + sidecarExtension
		if err := os.WriteFile(sidecarPath, data, 0o644); err != nil {
			p.recordFileError(s, fs, ingesterr.New(ingesterr.KindWrite, sidecarPath, "failed to write sidecar record", err))
			return nil
		}
		return nil
	})
}

func buildRecord(s *session.Session, fs *session.FileState, opts Options) *record.Record {
	now := time.Now().UTC()

	r := &record.Record{
		SchemaVersion:     record.SchemaVersion,
		SidecarCreated:    now,
		SidecarUpdated:    now,
		ContentHash:       fs.HashShort,
		ContentHashFull:   fs.HashFull,
		HashAlgorithm:     "blake3",
		FileSize:          fs.Size,
		Verified:          opts.Verify && fs.Status == session.FileStatusValidated,
		SourceHash:        fs.HashFull,
		DestHash:          fs.DestHashFull,
		FileCategory:      fs.Category,
		DetectedMimeType:  fs.MIMEType,
		DeclaredExtension: fs.DeclaredExtension,
		SourcePath:        fs.SourcePath,
		SourceFilename:    filepath.Base(fs.SourcePath),
		SourceHost:        opts.ImportHost,
		SourceVolume:      s.SourceVolume,
		SourceVolumeSerial: s.SourceVolumeSerial,
		SourceType:        s.SourceType,
		ImportTimestamp:   now,
		SessionID:         s.ID,
		ToolVersion:       opts.ToolVersion,
		ImportUser:        opts.ImportUser,
		ImportHost:        opts.ImportHost,
		ImportPlatform:    opts.ImportPlatform,
		ImportMethod:      "copy",
		BatchID:           s.BatchID,
		BatchName:         s.BatchName,
		RelatedFiles:      fs.RelatedFiles,
		IsPrimaryFile:     fs.IsPrimary,
		FirstSeen:         now,
	}

	if fs.DestHashFull != "" {
		r.SetHashMatch(fs.HashFull == fs.DestHashFull)
	}

	if fs.FinalName != "" {
		r.WasRenamed = true
		r.DestFilename = fs.FinalName
		r.RenameReason = "content-addressed canonical name"
	}

	for k, v := range fs.Metadata {
		if str, ok := v.(string); ok {
			if r.RawMetadata == nil {
				r.RawMetadata = make(map[string]string)
			}
			r.RawMetadata[k] = str
		}
	}

	if len(fs.Structured) > 0 {
		switch classify.Category(fs.Category) {
		case classify.CategoryImage:
			r.Photo = fs.Structured
		case classify.CategoryVideo:
			r.Video = fs.Structured
		case classify.CategoryAudio:
			r.Audio = fs.Structured
		case classify.CategoryDocument:
			r.Document = fs.Structured
		}
	}

	for _, c := range fs.CopiedCompanions {
		cc := record.CopiedCompanion{
			SourcePath: c.SourcePath,
			DestPath:   c.DestPath,
			Extension:  c.Extension,
			Hash:       c.Hash,
			Size:       c.Size,
		}
		if c.Embeddable {
			if data, err := os.ReadFile(c.DestPath); err == nil {
				cc.ContentBase64 = base64.StdEncoding.EncodeToString(data)
			}
		}
		r.CopiedCompanions = append(r.CopiedCompanions, cc)
	}

	r.AppendEvent(record.CustodyEvent{
		EventID:        s.ID + "-ingest-" + fs.HashShort,
		EventTimestamp: now,
		EventAction:    record.EventIngestion,
		EventOutcome:   record.OutcomeSuccess,
		EventHost:      opts.ImportHost,
		EventUser:      opts.ImportUser,
		EventTool:      "wnbimport/" + opts.ToolVersion,
		EventHash:      fs.HashFull,
		EventHashAlgorithm: "blake3",
	}, now)

	return r
}

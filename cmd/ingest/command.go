// Package ingest provides the "ingest" command: scan a source tree, hash,
// copy, verify, and optionally rename/extract/sidecar/manifest it into a
// destination tree.
package ingest

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"runtime"
	"time"

	"github.com/wnbrewery/wnbimport/internal/config"
	"github.com/wnbrewery/wnbimport/internal/dedupstore"
	"github.com/wnbrewery/wnbimport/internal/logger"
	"github.com/wnbrewery/wnbimport/internal/pipeline"
	"github.com/wnbrewery/wnbimport/internal/session"
	"github.com/wnbrewery/wnbimport/internal/skiprules"
	"github.com/wnbrewery/wnbimport/version"

	"github.com/google/uuid"
	rootcmd "github.com/wnbrewery/wnbimport/cmd"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source] [destination]",
	Short: "Ingest a source tree into a destination tree",
	Long: `Ingest scans a source tree, hashes and copies every file into a
destination tree with end-to-end verification, deduplicates by content
hash, and emits a per-file chain-of-custody record plus a directory-wide
manifest. An interrupted run leaves a checkpoint that "wnbimport resume"
continues.`,
	Args: cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		source := args[0]
		destination := args[1]
		log := logger.With("source", source, "destination", destination, "command", "ingest")

		cfg, err := config.Load(source)
		if err != nil {
			log.Warn("failed to load config, using defaults", "error", err)
			cfg = config.Defaults()
		}

		noVerify, _ := c.Flags().GetBool("no-verify")
		rename, _ := c.Flags().GetBool("rename")
		extractMetadata, _ := c.Flags().GetBool("extract-metadata")
		noSidecars, _ := c.Flags().GetBool("no-sidecars")
		noManifest, _ := c.Flags().GetBool("no-manifest")
		noDedup, _ := c.Flags().GetBool("no-dedup")
		dedupDatabase, _ := c.Flags().GetString("dedup-database")
		excludePatterns, _ := c.Flags().GetStringArray("exclude")
		customIgnoreFile, _ := c.Flags().GetString("ignore-file")
		batchID, _ := c.Flags().GetString("batch-id")
		batchName, _ := c.Flags().GetString("batch-name")
		sourceDevice, _ := c.Flags().GetString("source-device")
		sourceType, _ := c.Flags().GetString("source-type")
		sourceVolume, _ := c.Flags().GetString("source-volume")
		sourceVolumeSerial, _ := c.Flags().GetString("source-volume-serial")

		matcher, err := skiprules.New(skiprules.Options{
			Patterns:         excludePatterns,
			LoadDefaultFiles: true,
			RootDir:          source,
			CustomIgnoreFile: customIgnoreFile,
		})
		if err != nil {
			log.Error("failed to build skip-rule matcher", "error", err)
			return fmt.Errorf("failed to build skip-rule matcher: %w", err)
		}

		var dedupSource dedupstore.Source = dedupstore.Empty{}
		dedupEnabled := cfg.DedupEnabled && !noDedup
		if dedupEnabled {
			if dedupDatabase == "" {
				dedupDatabase = cfg.DedupDatabase
			}
			if dedupDatabase != "" {
				bolt, boltErr := dedupstore.NewBoltSource(dedupDatabase)
				if boltErr != nil {
					log.Error("failed to open dedup database", "error", boltErr)
					return fmt.Errorf("failed to open dedup database %q: %w", dedupDatabase, boltErr)
				}
				dedupSource = bolt
			} else {
				dedupSource = dedupstore.NewDestinationScan(destination)
			}
		}

		importUser := currentUsername()
		importHost, _ := os.Hostname()

		if batchID == "" {
			batchID = uuid.NewString()
		}

		opts := pipeline.Options{
			Verify:             !noVerify && cfg.Verify,
			Rename:             rename || cfg.Rename,
			ExtractMetadata:    extractMetadata,
			GenerateSidecars:   !noSidecars,
			GenerateManifest:   !noManifest,
			Matcher:            matcher,
			DedupSource:        dedupSource,
			BatchID:            batchID,
			BatchName:          orDefault(batchName, cfg.BatchName),
			SourceDevice:       sourceDevice,
			SourceType:         sourceType,
			SourceVolume:       sourceVolume,
			SourceVolumeSerial: sourceVolumeSerial,
			ToolVersion:        version.VERSION,
			ImportUser:         importUser,
			ImportHost:         importHost,
			ImportPlatform:     runtime.GOOS,
			OnProgress: func(p pipeline.Progress) {
				log.Info("progress",
					"stage", p.Stage,
					"processed", p.ProcessedFiles,
					"total", p.TotalFiles,
					"errors", p.ErrorFiles,
					"duplicates", p.DuplicateFiles,
				)
			},
		}

		log.Info("starting ingestion")
		start := time.Now()

		s, err := pipeline.New().Run(context.Background(), source, destination, opts)
		duration := time.Since(start)

		if s != nil {
			printSummary(c, s, duration)
		}

		if err != nil {
			log.Error("ingestion failed", "error", err, "duration", duration)
			return err
		}
		if s != nil && s.Counters.ErrorFiles > 0 {
			return &rootcmd.PerFileErrors{Count: s.Counters.ErrorFiles}
		}
		return nil
	},
}

func printSummary(c *cobra.Command, s *session.Session, duration time.Duration) {
	fmt.Fprintf(c.OutOrStdout(), "Session %s: %s\n", s.ID, s.Status)
	fmt.Fprintf(c.OutOrStdout(), "  processed: %d/%d files (%d duplicates, %d errors)\n",
		s.Counters.ProcessedFiles, s.Counters.TotalFiles, s.Counters.DuplicateFiles, s.Counters.ErrorFiles)
	fmt.Fprintf(c.OutOrStdout(), "  duration: %s\n", duration.Round(time.Millisecond))
}

func currentUsername() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func init() {
	ingestCmd.Flags().Bool("no-verify", false, "Skip post-copy hash verification")
	ingestCmd.Flags().Bool("rename", false, "Rename each destination file to its content hash plus original extension")
	ingestCmd.Flags().Bool("extract-metadata", false, "Run configured metadata extractors against copied files")
	ingestCmd.Flags().Bool("no-sidecars", false, "Do not emit a per-file chain-of-custody sidecar record")
	ingestCmd.Flags().Bool("no-manifest", false, "Do not emit a directory-wide manifest")
	ingestCmd.Flags().Bool("no-dedup", false, "Disable content-hash deduplication")
	ingestCmd.Flags().String("dedup-database", "", "Path to a bbolt catalogue database of previously seen hashes")
	ingestCmd.Flags().StringArrayP("exclude", "e", []string{}, "Exclude patterns (gitignore-style). Can be specified multiple times.")
	ingestCmd.Flags().StringP("ignore-file", "i", "", "Path to a custom ignore file, added to the other skip patterns. .wnbimportignore and .gitignore are loaded automatically from the source root.")
	ingestCmd.Flags().String("batch-id", "", "Identifier grouping this run with other cards from the same shoot")
	ingestCmd.Flags().String("batch-name", "", "Human-readable name for the batch")
	ingestCmd.Flags().String("source-device", "", "Camera or recorder model the source media came from")
	ingestCmd.Flags().String("source-type", "", "Source media type (e.g. sd-card, cf-card, external-drive)")
	ingestCmd.Flags().String("source-volume", "", "Source volume label")
	ingestCmd.Flags().String("source-volume-serial", "", "Source volume serial number")

	rootcmd.Register(ingestCmd)
}

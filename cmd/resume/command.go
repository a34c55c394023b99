// Package resume provides the "resume" command: continue an ingestion
// session that was interrupted, from the checkpoint left at its
// destination.
package resume

import (
	"context"
	"fmt"
	"os/user"
	"runtime"
	"time"

	"github.com/wnbrewery/wnbimport/internal/logger"
	"github.com/wnbrewery/wnbimport/internal/pipeline"
	"github.com/wnbrewery/wnbimport/internal/skiprules"
	"github.com/wnbrewery/wnbimport/version"

	rootcmd "github.com/wnbrewery/wnbimport/cmd"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [destination]",
	Short: "Resume an interrupted ingestion from its checkpoint",
	Long: `Resume reads the checkpoint left at destination by an interrupted
"wnbimport ingest" run, re-validates any file left in the copied state,
and continues the run from wherever it stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		destination := args[0]
		log := logger.With("destination", destination, "command", "resume")

		if !pipeline.FindCheckpoint(destination) {
			log.Error("no checkpoint found at destination")
			return fmt.Errorf("no checkpoint found at %q", destination)
		}

		matcher, err := skiprules.New(skiprules.Options{LoadDefaultFiles: true, RootDir: destination})
		if err != nil {
			log.Error("failed to build skip-rule matcher", "error", err)
			return fmt.Errorf("failed to build skip-rule matcher: %w", err)
		}

		opts := pipeline.Options{
			Verify:           true,
			GenerateSidecars: true,
			GenerateManifest: true,
			Matcher:          matcher,
			ToolVersion:      version.VERSION,
			ImportUser:       currentUsername(),
			ImportPlatform:   runtime.GOOS,
			OnProgress: func(p pipeline.Progress) {
				log.Info("progress", "stage", p.Stage, "processed", p.ProcessedFiles, "total", p.TotalFiles, "errors", p.ErrorFiles)
			},
		}

		log.Info("resuming session")
		start := time.Now()

		s, err := pipeline.Resume(context.Background(), destination, opts)
		duration := time.Since(start)

		if s != nil {
			fmt.Fprintf(c.OutOrStdout(), "Session %s: %s\n", s.ID, s.Status)
			fmt.Fprintf(c.OutOrStdout(), "  processed: %d/%d files (%d errors)\n",
				s.Counters.ProcessedFiles, s.Counters.TotalFiles, s.Counters.ErrorFiles)
		}

		if err != nil {
			log.Error("resume failed", "error", err, "duration", duration)
			return err
		}
		if s != nil && s.Counters.ErrorFiles > 0 {
			return &rootcmd.PerFileErrors{Count: s.Counters.ErrorFiles}
		}
		return nil
	},
}

func currentUsername() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

func init() {
	rootcmd.Register(resumeCmd)
}

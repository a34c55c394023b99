// Package verifymanifest provides the "verify-manifest" command: check a
// directory-wide manifest.json against the files actually present on disk.
package verifymanifest

import (
	"fmt"
	"time"

	"github.com/wnbrewery/wnbimport/internal/logger"
	"github.com/wnbrewery/wnbimport/internal/manifest"

	rootcmd "github.com/wnbrewery/wnbimport/cmd"
	"github.com/spf13/cobra"
)

var verifyManifestCmd = &cobra.Command{
	Use:   "verify-manifest [root]",
	Short: "Verify a directory manifest against the files on disk",
	Long: `Verify-manifest loads manifest.json from root, recomputes each listed
file's truncated BLAKE3 digest, and reports any file missing from disk or
whose size or hash no longer matches the recorded entry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		root := args[0]
		log := logger.With("root", root, "command", "verify-manifest")

		m, err := manifest.Load(root)
		if err != nil {
			log.Error("failed to load manifest", "error", err)
			return fmt.Errorf("failed to load manifest at %q: %w", root, err)
		}

		log.Info("verifying manifest", "fileCount", m.FileCount)
		start := time.Now()

		result, err := manifest.Verify(root, m)
		duration := time.Since(start)
		if err != nil {
			log.Error("verify-manifest failed", "error", err, "duration", duration)
			return err
		}

		fmt.Fprintf(c.OutOrStdout(), "Manifest: %s\n", root)
		fmt.Fprintf(c.OutOrStdout(), "  matched: %d\n", len(result.Matched))
		fmt.Fprintf(c.OutOrStdout(), "  missing: %d\n", len(result.Missing))
		fmt.Fprintf(c.OutOrStdout(), "  invalid: %d\n", len(result.Invalid))

		for _, p := range result.Missing {
			fmt.Fprintf(c.OutOrStdout(), "  MISSING %s\n", p)
		}
		for _, p := range result.Invalid {
			fmt.Fprintf(c.OutOrStdout(), "  INVALID %s\n", p)
		}

		if !result.OK() {
			return &rootcmd.PerFileErrors{Count: len(result.Missing) + len(result.Invalid)}
		}
		return nil
	},
}

func init() {
	rootcmd.Register(verifyManifestCmd)
}

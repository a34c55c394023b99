// Package verifybag provides the "verify-bag" command: check a previously
// created BagIt package's payload against its manifest.
package verifybag

import (
	"fmt"
	"time"

	"github.com/wnbrewery/wnbimport/internal/bag"
	"github.com/wnbrewery/wnbimport/internal/logger"

	rootcmd "github.com/wnbrewery/wnbimport/cmd"
	"github.com/spf13/cobra"
)

var verifyBagCmd = &cobra.Command{
	Use:   "verify-bag [bag-dir]",
	Short: "Verify a BagIt package against its manifest",
	Long: `Verify-bag recomputes the digest of every payload file under a bag's
data/ directory and compares it against manifest-<alg>.txt, reporting any
file that is missing from disk, present but not listed in the manifest, or
present with a mismatching digest.`,
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		bagDir := args[0]
		log := logger.With("bagDir", bagDir, "command", "verify-bag")

		algFlag, _ := c.Flags().GetString("algorithm")
		alg := bag.SHA256
		if algFlag == "sha512" {
			alg = bag.SHA512
		}

		log.Info("verifying bag")
		start := time.Now()

		result, err := bag.Verify(bagDir, alg)
		duration := time.Since(start)
		if err != nil {
			log.Error("verify-bag failed", "error", err, "duration", duration)
			return fmt.Errorf("failed to verify bag at %q: %w", bagDir, err)
		}

		fmt.Fprintf(c.OutOrStdout(), "Bag: %s\n", bagDir)
		fmt.Fprintf(c.OutOrStdout(), "  matched: %d\n", len(result.Matched))
		fmt.Fprintf(c.OutOrStdout(), "  missing: %d\n", len(result.Missing))
		fmt.Fprintf(c.OutOrStdout(), "  invalid: %d\n", len(result.Invalid))
		fmt.Fprintf(c.OutOrStdout(), "  extra: %d\n", len(result.Extra))
		fmt.Fprintf(c.OutOrStdout(), "  payload-oxum ok: %v\n", result.PayloadOxumOK)
		fmt.Fprintf(c.OutOrStdout(), "  tag-manifest ok: %v\n", result.TagManifestOK)

		for _, p := range result.Missing {
			fmt.Fprintf(c.OutOrStdout(), "  MISSING %s\n", p)
		}
		for _, p := range result.Invalid {
			fmt.Fprintf(c.OutOrStdout(), "  INVALID %s\n", p)
		}
		for _, p := range result.Extra {
			fmt.Fprintf(c.OutOrStdout(), "  EXTRA %s\n", p)
		}

		if !result.OK() {
			return &rootcmd.PerFileErrors{Count: len(result.Missing) + len(result.Invalid) + len(result.Extra)}
		}
		return nil
	},
}

func init() {
	verifyBagCmd.Flags().String("algorithm", "sha256", "Digest algorithm the bag's manifest was created with (sha256, sha512)")
	rootcmd.Register(verifyBagCmd)
}

package verifymanifest

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	rootcmd "github.com/wnbrewery/wnbimport/cmd"
	"github.com/wnbrewery/wnbimport/internal/hasher"
	"github.com/wnbrewery/wnbimport/internal/logger"
	"github.com/wnbrewery/wnbimport/internal/manifest"
)

func init() {
	logger.Init("error", "text", io.Discard)
}

func writeSampleManifest(t *testing.T, root string) {
	t.Helper()
	content := []byte("payload bytes")
	if err := os.WriteFile(filepath.Join(root, "a.bin"), content, 0644); err != nil {
		t.Fatalf("failed to write sample file: %v", err)
	}
	res, err := hasher.Hash(filepath.Join(root, "a.bin"), hasher.AlgorithmBlake3, hasher.DefaultBufferSize)
	if err != nil {
		t.Fatalf("failed to hash sample file: %v", err)
	}
	m := manifest.Build(root, []manifest.FileEntry{
		{Path: "a.bin", Hash: hasher.TruncateShort(res.Hash), Size: int64(len(content))},
	}, time.Now().UTC())
	if err := manifest.Write(root, m); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

func TestVerifyManifestCmd_OK(t *testing.T) {
	root := t.TempDir()
	writeSampleManifest(t, root)

	var buf, errBuf bytes.Buffer
	cmd := rootcmd.GetRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs([]string{"verify-manifest", root})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("rootCmd.Execute() error = %v, stderr: %s", err, errBuf.String())
	}
	if !strings.Contains(buf.String(), "matched: 1") {
		t.Errorf("expected one matched entry, got: %q", buf.String())
	}
}

func TestVerifyManifestCmd_Missing(t *testing.T) {
	root := t.TempDir()
	writeSampleManifest(t, root)
	if err := os.Remove(filepath.Join(root, "a.bin")); err != nil {
		t.Fatalf("failed to remove sample file: %v", err)
	}

	cmd := rootcmd.GetRootCmd()
	cmd.SetArgs([]string{"verify-manifest", root})

	if err := cmd.Execute(); err == nil {
		t.Error("rootCmd.Execute() expected error for missing payload file")
	}
}

func TestVerifyManifestCmd_InvalidArgs(t *testing.T) {
	if verifyManifestCmd.Args == nil {
		t.Fatal("verifyManifestCmd should have Args validator set")
	}
	if err := verifyManifestCmd.Args(verifyManifestCmd, []string{}); err == nil {
		t.Error("expected error for no args")
	}
}

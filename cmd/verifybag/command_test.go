package verifybag

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	rootcmd "github.com/wnbrewery/wnbimport/cmd"
	"github.com/wnbrewery/wnbimport/internal/bag"
	"github.com/wnbrewery/wnbimport/internal/logger"
)

func init() {
	logger.Init("error", "text", io.Discard)
}

func TestVerifyBagCmd_OK(t *testing.T) {
	source := t.TempDir()
	if err := os.WriteFile(filepath.Join(source, "file.txt"), []byte("bag payload"), 0644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}

	bagDir := t.TempDir()
	if _, err := bag.CreateCopyOut(source, bagDir, bag.SHA256); err != nil {
		t.Fatalf("failed to create bag: %v", err)
	}

	var buf, errBuf bytes.Buffer
	cmd := rootcmd.GetRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs([]string{"verify-bag", bagDir})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("rootCmd.Execute() error = %v, stderr: %s", err, errBuf.String())
	}
	if !strings.Contains(buf.String(), "matched: 1") {
		t.Errorf("expected one matched payload entry, got: %q", buf.String())
	}
}

func TestVerifyBagCmd_TamperedPayload(t *testing.T) {
	source := t.TempDir()
	if err := os.WriteFile(filepath.Join(source, "file.txt"), []byte("bag payload"), 0644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}

	bagDir := t.TempDir()
	if _, err := bag.CreateCopyOut(source, bagDir, bag.SHA256); err != nil {
		t.Fatalf("failed to create bag: %v", err)
	}
	if err := os.WriteFile(filepath.Join(bagDir, "data", "file.txt"), []byte("tampered"), 0644); err != nil {
		t.Fatalf("failed to tamper payload: %v", err)
	}

	cmd := rootcmd.GetRootCmd()
	cmd.SetArgs([]string{"verify-bag", bagDir})

	if err := cmd.Execute(); err == nil {
		t.Error("rootCmd.Execute() expected error for tampered payload")
	}
}

func TestVerifyBagCmd_InvalidArgs(t *testing.T) {
	if verifyBagCmd.Args == nil {
		t.Fatal("verifyBagCmd should have Args validator set")
	}
	if err := verifyBagCmd.Args(verifyBagCmd, []string{}); err == nil {
		t.Error("expected error for no args")
	}
}

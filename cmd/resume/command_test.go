package resume

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	rootcmd "github.com/wnbrewery/wnbimport/cmd"
	"github.com/wnbrewery/wnbimport/internal/logger"
)

func init() {
	logger.Init("error", "text", io.Discard)
}

func TestResumeCmd_NoCheckpoint(t *testing.T) {
	destination := t.TempDir()

	var buf, errBuf bytes.Buffer
	cmd := rootcmd.GetRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs([]string{"resume", destination})

	if err := cmd.Execute(); err == nil {
		t.Error("rootCmd.Execute() expected error when no checkpoint exists")
	}
}

func TestResumeCmd_InvalidArgs(t *testing.T) {
	if resumeCmd.Args == nil {
		t.Fatal("resumeCmd should have Args validator set")
	}
	if err := resumeCmd.Args(resumeCmd, []string{}); err == nil {
		t.Error("expected error for no args")
	}
	if err := resumeCmd.Args(resumeCmd, []string{filepath.Join("a", "b")}); err != nil {
		t.Errorf("unexpected error for valid args: %v", err)
	}
}

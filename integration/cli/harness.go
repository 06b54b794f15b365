//go:build integration

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schaermu/shelf/internal/git"
	"github.com/schaermu/shelf/internal/testutil"
)

const defaultTimeout = 5 * time.Minute

// Harness runs a freshly built shelf binary against a scratch inventory.
type Harness struct {
	t      *testing.T
	binary string
	// Dir is the inventory the commands run in.
	Dir string
}

// NewHarness creates a harness with an empty scratch directory.
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	testutil.RequireGit(t)
	return &Harness{t: t, Dir: t.TempDir()}
}

// BuildBinary compiles cmd/shelf into a temporary directory.
func (h *Harness) BuildBinary(ctx context.Context) error {
	h.t.Helper()
	projectRoot, err := testutil.FindProjectRoot()
	if err != nil {
		return fmt.Errorf("get project root: %w", err)
	}

	h.binary = filepath.Join(h.t.TempDir(), "shelf")
	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binary, "./cmd/shelf")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: h.t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[build] "}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}

	h.t.Logf("Binary %s built successfully", h.binary)
	return nil
}

// Exec runs shelf with args in Dir, feeding stdin.
func (h *Harness) Exec(ctx context.Context, stdin string, args ...string) (string, string, int, error) {
	h.t.Helper()
	if h.binary == "" {
		return "", "", 0, fmt.Errorf("binary not built")
	}

	cmd := exec.CommandContext(ctx, h.binary, append([]string{"-C", h.Dir}, args...)...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return "", "", 0, fmt.Errorf("exec failed: %w", err)
		}
	}

	return stdout.String(), stderr.String(), exitCode, nil
}

// MustExec runs shelf and fails the test if it returns non-zero.
func (h *Harness) MustExec(ctx context.Context, stdin string, args ...string) string {
	h.t.Helper()
	stdout, stderr, exitCode, err := h.Exec(ctx, stdin, args...)
	if err != nil {
		h.t.Fatalf("exec failed: %v", err)
	}
	if exitCode != 0 {
		h.t.Fatalf("command failed with exit code %d\nstdout: %s\nstderr: %s\nargs: %v",
			exitCode, stdout, stderr, args)
	}
	return stdout
}

// Path joins parts below the inventory.
func (h *Harness) Path(parts ...string) string {
	return filepath.Join(append([]string{h.Dir}, parts...)...)
}

// ReadFile reads a file below the inventory.
func (h *Harness) ReadFile(parts ...string) string {
	h.t.Helper()
	data, err := os.ReadFile(h.Path(parts...))
	if err != nil {
		h.t.Fatalf("read file: %v", err)
	}
	return string(data)
}

// FileExists reports whether a path below the inventory exists.
func (h *Harness) FileExists(parts ...string) bool {
	_, err := os.Stat(h.Path(parts...))
	return err == nil
}

// LastCommit returns the message of the latest commit.
func (h *Harness) LastCommit() string {
	h.t.Helper()
	msg, err := git.NewShellClient().LastMessage(context.Background(), h.Dir)
	if err != nil {
		h.t.Fatalf("read last commit: %v", err)
	}
	return msg
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)

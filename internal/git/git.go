package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotARepository is returned when a directory is not inside a git work tree.
var ErrNotARepository = errors.New("not a git repository")

// Client provides the git operations an inventory needs
type Client interface {
	// Init creates a repository in dir unless one already exists there
	Init(ctx context.Context, dir string) error
	// TopLevel returns the root of the work tree containing dir
	TopLevel(ctx context.Context, dir string) (string, error)
	// StageAndCommit records paths in the index and creates one commit
	StageAndCommit(ctx context.Context, root string, paths []string, message string) error
	// Log returns the history of path, following renames
	Log(ctx context.Context, root, path string) (string, error)
}

// ShellClient implements Client by shelling out to the git command
type ShellClient struct {
	binary string
}

// NewShellClient creates a new git client that uses the git command
func NewShellClient() *ShellClient {
	return &ShellClient{binary: "git"}
}

// Init runs git init in dir, creating the directory if needed
func (c *ShellClient) Init(ctx context.Context, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.binary, "init", "--quiet", dir)
	if err := c.runCommand(cmd); err != nil {
		return fmt.Errorf("git init failed: %w", err)
	}
	return nil
}

// TopLevel resolves the work tree root for dir
func (c *ShellClient) TopLevel(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, c.binary, "-C", dir, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotARepository, dir)
	}
	return strings.TrimSpace(string(output)), nil
}

// StageAndCommit stages every path (additions, modifications and deletions)
// and commits the index with message.
func (c *ShellClient) StageAndCommit(ctx context.Context, root string, paths []string, message string) error {
	if len(paths) == 0 {
		return fmt.Errorf("nothing to commit")
	}

	var present, missing []string
	for _, p := range paths {
		if _, err := os.Lstat(p); err == nil {
			present = append(present, p)
		} else {
			missing = append(missing, p)
		}
	}

	if len(present) > 0 {
		args := append([]string{"-C", root, "add", "--all", "--"}, present...)
		if err := c.runCommand(exec.CommandContext(ctx, c.binary, args...)); err != nil {
			return fmt.Errorf("git add failed: %w", err)
		}
	}
	if len(missing) > 0 {
		// paths removed or renamed away during execution
		args := append([]string{"-C", root, "rm", "-r", "--cached", "--quiet", "--ignore-unmatch", "--"}, missing...)
		if err := c.runCommand(exec.CommandContext(ctx, c.binary, args...)); err != nil {
			return fmt.Errorf("git rm failed: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, c.binary, "-C", root, "commit", "--quiet", "--file", "-")
	cmd.Stdin = strings.NewReader(message)
	if err := c.runCommand(cmd); err != nil {
		return fmt.Errorf("git commit failed: %w", err)
	}
	return nil
}

// Log returns the commit history touching path, or the whole history when
// path is empty.
func (c *ShellClient) Log(ctx context.Context, root, path string) (string, error) {
	args := []string{"-C", root, "--no-pager", "log"}
	if path != "" {
		args = append(args, "--follow", "--", path)
	}
	output, err := exec.CommandContext(ctx, c.binary, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git log failed: %w: %s", err, string(output))
	}
	return string(output), nil
}

// LastMessage returns the full message of HEAD
func (c *ShellClient) LastMessage(ctx context.Context, root string) (string, error) {
	cmd := exec.CommandContext(ctx, c.binary, "-C", root, "log", "-1", "--format=%B")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git log failed: %w", err)
	}
	return strings.TrimRight(string(output), "\n"), nil
}

// runCommand executes a command and returns an error with stderr on failure
func (c *ShellClient) runCommand(cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

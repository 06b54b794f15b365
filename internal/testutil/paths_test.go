package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindProjectRoot(t *testing.T) {
	root, err := FindProjectRoot()
	if err != nil {
		t.Fatalf("FindProjectRoot returned error: %v", err)
	}
	if root == "" {
		t.Fatal("FindProjectRoot returned empty string")
	}

	goMod := filepath.Join(root, "go.mod")
	if _, err := os.Stat(goMod); err != nil {
		t.Fatalf("go.mod not found at %s: %v", goMod, err)
	}
}

func TestFindUp(t *testing.T) {
	root := t.TempDir()
	WriteFile(t, filepath.Join(root, "marker"), "")
	deep := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindUp(deep, "marker")
	if err != nil {
		t.Fatal(err)
	}
	if got != root {
		t.Errorf("FindUp = %s, want %s", got, root)
	}

	if _, err := FindUp(deep, "no-such-marker-file"); err == nil {
		t.Error("expected error for missing marker")
	}
}

func TestWriteFileAndGit(t *testing.T) {
	RequireGit(t)
	dir := t.TempDir()
	Git(t, dir, "init", "--quiet")

	WriteFile(t, filepath.Join(dir, "lab", "laptop_apple_macbookpro.0"), "---\ntype: laptop\n")
	Git(t, dir, "add", "--all")
	Git(t, dir, "commit", "--quiet", "-m", "add laptop")

	out := Git(t, dir, "log", "--format=%s")
	if strings.TrimSpace(out) != "add laptop" {
		t.Errorf("unexpected log: %q", out)
	}
}

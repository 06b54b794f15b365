package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/schaermu/shelf/internal/asset"
	"github.com/schaermu/shelf/internal/testutil"
)

// run executes the command line with stdin and returns everything written.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, stdin, args...)
	if err != nil {
		t.Fatalf("shelf %v: %v\n%s", args, err, out)
	}
	return out
}

func lastCommitMessage(t *testing.T, dir string) string {
	t.Helper()
	return testutil.Git(t, dir, "log", "-1", "--format=%B")
}

func newInventoryDir(t *testing.T) string {
	t.Helper()
	testutil.RequireGit(t)
	dir := t.TempDir()
	out := mustRun(t, "", "-C", dir, "init")
	if !strings.Contains(out, "Initialized shelf inventory") {
		t.Fatalf("unexpected init output: %q", out)
	}
	return dir
}

func TestSetupLogger(t *testing.T) {
	// Save original globals.
	origLevel, origFormat, origFile, origSink := logLevel, logFormat, logFile, logSink
	t.Cleanup(func() {
		logLevel, logFormat, logFile, logSink = origLevel, origFormat, origFile, origSink
	})

	for _, tc := range []struct {
		name      string
		logLevel  string
		logFormat string
		logFile   string
	}{
		{name: "debug/text", logLevel: "debug", logFormat: "text"},
		{name: "info/json", logLevel: "info", logFormat: "json"},
		{name: "warn/text", logLevel: "warn", logFormat: "text"},
		{name: "error/text", logLevel: "error", logFormat: "text"},
		{name: "unknown/text", logLevel: "unknown", logFormat: "text"},
		{name: "debug/file", logLevel: "debug", logFormat: "json", logFile: filepath.Join(t.TempDir(), "shelf.log")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			logLevel = tc.logLevel
			logFormat = tc.logFormat
			logFile = tc.logFile
			logSink = nil

			logger := setupLogger()
			if logger == nil {
				t.Fatal("setupLogger returned nil")
			}
			if tc.logFile == "" {
				return
			}

			logger.Debug("written to file", "key", "value")
			if logSink == nil {
				t.Fatal("expected a log sink for --log-file")
			}
			if err := logSink.Close(); err != nil {
				t.Fatal(err)
			}
			data, err := os.ReadFile(tc.logFile)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(data), "written to file") {
				t.Errorf("log file missing entry: %q", data)
			}
		})
	}
}

func TestSetupSignalHandler(t *testing.T) {
	ctx, cancel := setupSignalHandler()
	if ctx == nil {
		t.Fatal("setupSignalHandler returned nil context")
	}

	cancel()

	<-ctx.Done()
	if err := ctx.Err(); err == nil {
		t.Fatal("expected context error after cancel, got nil")
	}
}

func TestVersionCmd(t *testing.T) {
	out := mustRun(t, "", "version")
	if !strings.HasPrefix(out, "shelf dev\n") {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestWorkflow(t *testing.T) {
	dir := newInventoryDir(t)
	shelf := filepath.Join(dir, "shelf")

	mustRun(t, "", "-C", dir, "mkdir", "--yes", "shelf")
	if msg := lastCommitMessage(t, dir); !strings.Contains(msg, "mkdir [1]: shelf\n\n--- Inventory Operations ---\nNew directories:\n- shelf\n") {
		t.Errorf("unexpected mkdir commit:\n%s", msg)
	}

	out := mustRun(t, "", "-C", dir, "new", "--yes",
		"-k", "type=laptop", "-k", "make=apple", "-k", "model=macbookpro",
		"-k", "serial=1", "-k", "serial=2", "shelf")
	if !strings.Contains(out, "+++ shelf/laptop_apple_macbookpro.1") {
		t.Errorf("preview missing new asset:\n%s", out)
	}
	for _, name := range []string{"laptop_apple_macbookpro.1", "laptop_apple_macbookpro.2"} {
		if _, err := os.Stat(filepath.Join(shelf, name)); err != nil {
			t.Errorf("asset %s not created: %v", name, err)
		}
	}
	if msg := lastCommitMessage(t, dir); !strings.Contains(msg, "New assets:\n- shelf/laptop_apple_macbookpro.1\n- shelf/laptop_apple_macbookpro.2\n") {
		t.Errorf("unexpected new commit:\n%s", msg)
	}

	out = mustRun(t, "", "-C", dir, "get", "--format", "json", "-f", "serial=2")
	var got []map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if len(got) != 1 || got[0]["path"] != "shelf/laptop_apple_macbookpro.2" || got[0]["type"] != "laptop" {
		t.Errorf("unexpected get result: %v", got)
	}

	mustRun(t, "", "-C", shelf, "set", "--yes", "-m", "upgrade", "-k", "model=air", "laptop_apple_macbookpro.1")
	if _, err := os.Stat(filepath.Join(shelf, "laptop_apple_air.1")); err != nil {
		t.Errorf("asset not renamed: %v", err)
	}
	wantMsg := "upgrade\n\n--- Inventory Operations ---\n" +
		"Modified assets:\n- shelf/laptop_apple_macbookpro.1\n" +
		"Renamed assets:\n- shelf/laptop_apple_macbookpro.1 -> shelf/laptop_apple_air.1\n"
	if msg := strings.TrimRight(lastCommitMessage(t, dir), "\n") + "\n"; msg != wantMsg {
		t.Errorf("set commit mismatch (-want +got):\n%s", cmp.Diff(wantMsg, msg))
	}

	out = mustRun(t, "", "-C", dir, "cat", "shelf/laptop_apple_air.1")
	if want := "---\ntype: laptop\nmake: apple\nmodel: air\nserial: 1\n"; out != want {
		t.Errorf("cat mismatch (-want +got):\n%s", cmp.Diff(want, out))
	}

	out = mustRun(t, "", "-C", dir, "history", "shelf/laptop_apple_air.1")
	if !strings.Contains(out, "upgrade") || !strings.Contains(out, "New assets:") {
		t.Errorf("history should follow the rename:\n%s", out)
	}

	mustRun(t, "", "-C", dir, "rm", "--yes", "--quiet", "shelf")
	if _, err := os.Stat(shelf); !os.IsNotExist(err) {
		t.Errorf("directory should be removed, stat err = %v", err)
	}
	if msg := lastCommitMessage(t, dir); !strings.Contains(msg, "Removed directories:\n- shelf\n") {
		t.Errorf("unexpected rm commit:\n%s", msg)
	}
	if status := testutil.Git(t, dir, "status", "--porcelain"); status != "" {
		t.Errorf("work tree not clean after commits:\n%s", status)
	}
}

func TestMv(t *testing.T) {
	dir := newInventoryDir(t)
	mustRun(t, "", "-C", dir, "mkdir", "--yes", "a", "b")
	mustRun(t, "", "-C", dir, "new", "--yes", "-k", "type=t", "-k", "make=m", "-k", "model=x", "-k", "serial=1", "a")

	mustRun(t, "", "-C", dir, "mv", "--yes", "a/t_m_x.1", "b")
	if _, err := os.Stat(filepath.Join(dir, "b", "t_m_x.1")); err != nil {
		t.Errorf("asset not moved: %v", err)
	}

	mustRun(t, "", "-C", dir, "mv", "--yes", "b", "c")
	if _, err := os.Stat(filepath.Join(dir, "c", "t_m_x.1")); err != nil {
		t.Errorf("directory not renamed: %v", err)
	}
	if msg := lastCommitMessage(t, dir); !strings.Contains(msg, "Renamed directories:\n- b -> c\n") {
		t.Errorf("unexpected mv commit:\n%s", msg)
	}

	if _, err := run(t, "", "-C", dir, "mv", "--yes", "c/t_m_x.1", "c/other"); err == nil {
		t.Error("renaming an asset with mv should fail")
	}
}

func TestConfirmation(t *testing.T) {
	dir := newInventoryDir(t)
	before := lastCommitMessage(t, dir)

	out := mustRun(t, "n\n", "-C", dir, "mkdir", "declined")
	if !strings.Contains(out, "+ declined/") || !strings.Contains(out, savePrompt+" (y/n)") {
		t.Errorf("expected preview and prompt:\n%s", out)
	}
	if !strings.Contains(out, "No changes made.") {
		t.Errorf("expected discard notice:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "declined")); !os.IsNotExist(err) {
		t.Error("declined directory must not be created")
	}
	if lastCommitMessage(t, dir) != before {
		t.Error("declined change must not be committed")
	}

	mustRun(t, "y\n", "-C", dir, "mkdir", "accepted")
	if _, err := os.Stat(filepath.Join(dir, "accepted")); err != nil {
		t.Errorf("accepted directory missing: %v", err)
	}
}

func TestQuietRequiresYes(t *testing.T) {
	dir := newInventoryDir(t)
	if _, err := run(t, "", "-C", dir, "mkdir", "--quiet", "x"); err == nil || !strings.Contains(err.Error(), "--quiet requires --yes") {
		t.Errorf("expected --quiet error, got %v", err)
	}
}

func TestGet_NoMatches(t *testing.T) {
	dir := newInventoryDir(t)
	if _, err := run(t, "", "-C", dir, "get", "-f", "type=nothing"); !errors.Is(err, errNoMatches) {
		t.Errorf("expected errNoMatches, got %v", err)
	}
}

func TestGet_Formats(t *testing.T) {
	dir := newInventoryDir(t)
	mustRun(t, "", "-C", dir, "new", "--yes", "-k", "type=t", "-k", "make=m", "-k", "model=x", "-k", "serial=1", "-k", "owner=", ".")

	out := mustRun(t, "", "-C", dir, "get", "-k", "type", "-k", "owner", "-k", "color")
	for _, want := range []string{"type", "owner", "color", "<unset>"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "", "-C", dir, "get", "--format", "yaml", "-k", "serial", "-k", "path")
	if want := "- serial: 1\n  path: t_m_x.1\n"; out != want {
		t.Errorf("yaml mismatch (-want +got):\n%s", cmp.Diff(want, out))
	}

	out = mustRun(t, "", "-C", dir, "get", "--format", "toml", "-k", "type", "-k", "path")
	if !strings.Contains(out, "[[assets]]") || !strings.Contains(out, `path = "t_m_x.1"`) {
		t.Errorf("unexpected toml:\n%s", out)
	}

	if _, err := run(t, "", "-C", dir, "get", "--format", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestConfig(t *testing.T) {
	dir := newInventoryDir(t)

	if out := mustRun(t, "", "-C", dir, "config", "get", "assets.filename"); out != "{type}_{make}_{model}.{serial}\n" {
		t.Errorf("config get = %q", out)
	}

	mustRun(t, "", "-C", dir, "config", "set", "assets.filename", "{type}.{serial}")
	if msg := lastCommitMessage(t, dir); !strings.HasPrefix(msg, "config: set assets.filename") {
		t.Errorf("unexpected config commit: %q", msg)
	}

	out := mustRun(t, "", "-C", dir, "config", "list")
	if !strings.Contains(out, "assets.filename={type}.{serial}\n") {
		t.Errorf("config list missing value:\n%s", out)
	}

	if _, err := run(t, "", "-C", dir, "config", "set", "assets.filename", "plain"); err == nil {
		t.Error("expected validation error for a template without keys")
	}
}

func TestSet_Recursive(t *testing.T) {
	dir := newInventoryDir(t)
	mustRun(t, "", "-C", dir, "new", "--yes",
		"-k", "type=t", "-k", "make=m", "-k", "model=x", "-k", "serial=1", "-k", "serial=2",
		"-k", "directory=room/rack", ".")

	if _, err := run(t, "", "-C", dir, "set", "--yes", "-k", "owner=me", "room"); err == nil {
		t.Error("expected error for directory without --recursive")
	}
	if _, err := run(t, "", "-C", dir, "set", "--yes", "-k", "path=x", "room/rack/t_m_x.1"); err == nil {
		t.Error("expected error for pseudo-key")
	}

	mustRun(t, "", "-C", dir, "set", "--yes", "-R", "-k", "owner=me", "room")
	for _, name := range []string{"t_m_x.1", "t_m_x.2"} {
		a, err := asset.Load(filepath.Join(dir, "room", "rack", name))
		if err != nil {
			t.Fatal(err)
		}
		if v, _ := a.GetString("owner"); v != "me" {
			t.Errorf("%s owner = %q, want me", name, v)
		}
	}

	out := mustRun(t, "", "-C", dir, "set", "--yes", "-R", "-k", "owner=me", "room")
	if !strings.Contains(out, "No changes to commit.") {
		t.Errorf("expected no-op notice:\n%s", out)
	}
}

func TestSet_NestedKey(t *testing.T) {
	dir := newInventoryDir(t)
	mustRun(t, "", "-C", dir, "new", "--yes",
		"-k", "type=t", "-k", "make=m", "-k", "model=x", "-k", "serial=1",
		"-k", "specs.ram=8", "-k", "specs.cpu=m1", ".")

	mustRun(t, "", "-C", dir, "set", "--yes", "-k", "specs.ram=16", "t_m_x.1")

	a, err := asset.Load(filepath.Join(dir, "t_m_x.1"))
	if err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]string{"specs.ram": "16", "specs.cpu": "m1"} {
		if v, _ := a.GetString(key); v != want {
			t.Errorf("%s = %q, want %q", key, v, want)
		}
	}
}

func TestSet_ImpliedNameCollision(t *testing.T) {
	dir := newInventoryDir(t)
	mustRun(t, "", "-C", dir, "new", "--yes",
		"-k", "type=t", "-k", "make=m", "-k", "model=x", "-k", "serial=1", "-k", "serial=2",
		"-k", "directory=rack", ".")
	before := lastCommitMessage(t, dir)

	if _, err := run(t, "", "-C", dir, "set", "--yes", "-R", "-k", "serial=3", "rack"); err == nil {
		t.Fatal("expected error when two assets would share a name")
	}
	for _, name := range []string{"t_m_x.1", "t_m_x.2"} {
		if _, err := os.Stat(filepath.Join(dir, "rack", name)); err != nil {
			t.Errorf("%s should be untouched: %v", name, err)
		}
	}
	if lastCommitMessage(t, dir) != before {
		t.Error("nothing should be committed")
	}
}

func TestContentsFromPairs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    []map[string]any
		wantErr bool
	}{
		{
			name:  "single asset",
			pairs: []string{"type=laptop", "serial=7", "warranty=true"},
			want:  []map[string]any{{"type": "laptop", "serial": 7, "warranty": true}},
		},
		{
			name:  "repeated keys",
			pairs: []string{"type=laptop", "serial=a", "serial=b"},
			want: []map[string]any{
				{"type": "laptop", "serial": "a"},
				{"type": "laptop", "serial": "b"},
			},
		},
		{
			name:  "empty value",
			pairs: []string{"owner="},
			want:  []map[string]any{{"owner": ""}},
		},
		{
			name:    "mismatched counts",
			pairs:   []string{"serial=a", "serial=b", "model=x", "model=y", "model=z"},
			wantErr: true,
		},
		{
			name:    "missing equals",
			pairs:   []string{"type"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs, err := parseKeyValues(tt.pairs)
			var contents []*asset.Asset
			if err == nil {
				contents, err = contentsFromPairs(pairs)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			var got []map[string]any
			for _, s := range contents {
				got = append(got, s.Map())
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("contents mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeltaFromPairs(t *testing.T) {
	keys := asset.DefaultKeys()

	pairs, _ := parseKeyValues([]string{"model=air", "specs.ram=16"})
	delta, err := deltaFromPairs(pairs, keys)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := delta.Get("specs.ram"); v != 16 {
		t.Errorf("specs.ram = %v, want 16", v)
	}

	for _, bad := range [][]string{{"path=x"}, {"template=x"}, {"a=1", "a=2"}} {
		pairs, _ := parseKeyValues(bad)
		if _, err := deltaFromPairs(pairs, keys); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}

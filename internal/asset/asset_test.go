package asset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSetGet_DotNotation(t *testing.T) {
	a := New()
	a.Set("type", "laptop")
	a.Set("specs.cpu.cores", 8)

	v, ok := a.Get("specs.cpu.cores")
	if !ok || v != 8 {
		t.Fatalf("Get(specs.cpu.cores) = %v, %v; want 8, true", v, ok)
	}
	if _, ok := a.Get("specs.gpu"); ok {
		t.Error("Get(specs.gpu) should not exist")
	}
	if got := a.Keys(); !cmp.Equal(got, []string{"type", "specs"}) {
		t.Errorf("Keys() = %v", got)
	}
	if got := a.FlatKeys(); !cmp.Equal(got, []string{"type", "specs.cpu.cores"}) {
		t.Errorf("FlatKeys() = %v", got)
	}

	a.Delete("specs.cpu.cores")
	if a.Has("specs.cpu.cores") {
		t.Error("nested key should be deleted")
	}
}

func TestUpdate_KeepsOrder(t *testing.T) {
	a := New()
	a.Set("type", "laptop")
	a.Set("make", "apple")
	a.Set("model", "macbookpro")

	delta := New()
	delta.Set("owner", "alice")
	delta.Set("model", "macbookair")

	a.Update(delta)

	want := []string{"type", "make", "model", "owner"}
	if got := a.Keys(); !cmp.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if v, _ := a.GetString("model"); v != "macbookair" {
		t.Errorf("model = %q, want macbookair", v)
	}
}

func TestUpdate_MergesNestedMappings(t *testing.T) {
	a := New()
	a.Set("specs.ram", 8)
	a.Set("specs.cpu", "m1")
	a.Set("owner", "alice")

	delta := New()
	delta.Set("specs.ram", 16)
	delta.Set("specs.disk", 512)

	a.Update(delta)

	want := map[string]any{
		"specs": map[string]any{"ram": 16, "cpu": "m1", "disk": 512},
		"owner": "alice",
	}
	if diff := cmp.Diff(want, a.Map()); diff != "" {
		t.Errorf("Update() mismatch (-want +got):\n%s", diff)
	}
	if got, wantKeys := a.Keys(), []string{"specs", "owner"}; !cmp.Equal(got, wantKeys) {
		t.Errorf("Keys() = %v, want %v", got, wantKeys)
	}

	// A scalar replaces a mapping and the other way round.
	b := New()
	b.Set("specs", "none")
	b.Update(delta)
	if v, _ := b.Get("specs.ram"); v != 16 {
		t.Errorf("specs.ram = %v, want 16", v)
	}
	if b.Has("specs.cpu") {
		t.Error("specs.cpu should not exist")
	}
}

func TestClone_IsDeep(t *testing.T) {
	a := New()
	a.Set("nested.key", "value")
	a.Set("list", []any{"a", "b"})

	c := a.Clone()
	c.Set("nested.key", "changed")

	if v, _ := a.GetString("nested.key"); v != "value" {
		t.Errorf("original modified through clone: %q", v)
	}
}

func TestMarshal_StripsKeysAndPreservesOrder(t *testing.T) {
	a := New()
	a.Set("type", "laptop")
	a.Set("make", "apple")
	a.Set("serial", "0")
	a.SetPath("/inv/lab/laptop_apple.0")
	a.Set(KeyIsAssetDirectory, true)

	data, err := Marshal(a, DefaultKeys().NonPersisted())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	want := "---\ntype: laptop\nmake: apple\nserial: \"0\"\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("Marshal mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshal_Empty(t *testing.T) {
	a := New()
	a.SetPath("/inv/x")

	data, err := Marshal(a, []string{KeyPath})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "---\n" {
		t.Errorf("Marshal(empty) = %q, want %q", data, "---\n")
	}
}

func TestUnmarshal_RoundTrip(t *testing.T) {
	src := "---\nzeta: 1\nalpha: two\nnested:\n  b: true\n  a: [1, 2]\nempty: {}\n"
	a, err := Unmarshal([]byte(src))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got := a.Keys(); !cmp.Equal(got, []string{"zeta", "alpha", "nested", "empty"}) {
		t.Errorf("Keys() = %v", got)
	}

	data, err := Marshal(a, nil)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(a, back, nil) {
		t.Errorf("round trip changed content:\n%s", data)
	}
}

func TestUnmarshal_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "empty", input: "", wantErr: false},
		{name: "document start only", input: "---\n", wantErr: false},
		{name: "null", input: "~\n", wantErr: false},
		{name: "scalar", input: "just text\n", wantErr: true},
		{name: "sequence", input: "- a\n- b\n", wantErr: true},
		{name: "invalid", input: "key: [unclosed\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.input))
			if tt.wantErr {
				if !errors.Is(err, ErrNotAnAsset) {
					t.Errorf("expected ErrNotAnAsset, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	a := FromMap(map[string]any{"size": 13, "make": "apple"})
	b := FromMap(map[string]any{"make": "apple", "size": 13.0})
	b.SetPath("/somewhere")

	if !Equal(a, b, DefaultKeys().NonPersisted()) {
		t.Error("expected assets to be equal ignoring pseudo keys and number types")
	}

	b.Set("make", "lenovo")
	if Equal(a, b, DefaultKeys().NonPersisted()) {
		t.Error("expected assets to differ")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "laptop_apple_macbookpro.0")
	if err := os.WriteFile(path, []byte("---\ntype: laptop\n"), 0644); err != nil {
		t.Fatal(err)
	}

	a, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, _ := a.GetString("type"); v != "laptop" {
		t.Errorf("type = %q", v)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"x", "x"},
		{true, "true"},
		{false, "false"},
		{42, "42"},
		{1.5, "1.5"},
		{1.0, "1"},
		{New(), "{}"},
		{[]any{}, "[]"},
		{[]any{1, "a"}, "[1, a]"},
	}
	for _, tt := range tests {
		if got := Stringify(tt.in); got != tt.want {
			t.Errorf("Stringify(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsAssetDirectory(t *testing.T) {
	a := New()
	if a.IsAssetDirectory() {
		t.Error("empty asset is not an asset directory")
	}
	a.Set(KeyIsAssetDirectory, true)
	if !a.IsAssetDirectory() {
		t.Error("expected asset directory")
	}
}

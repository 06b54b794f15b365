package filter

import (
	"errors"
	"testing"

	"github.com/schaermu/shelf/internal/asset"
)

func TestNew(t *testing.T) {
	f, err := New("model=mac=book")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.Key != "model" || f.Value != "mac=book" {
		t.Errorf("got key=%q value=%q", f.Key, f.Value)
	}

	if _, err := New("no-equals"); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestParse_FailsOnFirstInvalid(t *testing.T) {
	if _, err := Parse([]string{"a=b", "broken"}); err == nil {
		t.Fatal("expected error")
	}
	filters, err := Parse([]string{"a=b", "c=d"})
	if err != nil {
		t.Fatal(err)
	}
	if len(filters) != 2 {
		t.Errorf("got %d filters, want 2", len(filters))
	}
}

func TestMatch_Unset(t *testing.T) {
	f, _ := New("serial=<unset>")

	tests := []struct {
		name  string
		asset *asset.Asset
		want  bool
	}{
		{name: "empty asset", asset: asset.New(), want: true},
		{name: "missing key", asset: asset.FromMap(map[string]any{"type": "laptop"}), want: true},
		{name: "null value", asset: asset.FromMap(map[string]any{"serial": nil}), want: true},
		{name: "empty string", asset: asset.FromMap(map[string]any{"serial": ""}), want: true},
		{name: "zero string", asset: asset.FromMap(map[string]any{"serial": "0"}), want: false},
		{name: "number", asset: asset.FromMap(map[string]any{"serial": 0}), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Match(tt.asset); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch_Types(t *testing.T) {
	a := asset.FromMap(map[string]any{
		"tags":    []any{"a"},
		"none":    []any{},
		"specs":   map[string]any{"cpu": 4},
		"nothing": map[string]any{},
		"type":    "laptop",
	})

	tests := []struct {
		expr string
		want bool
	}{
		{"tags=<list>", true},
		{"specs=<list>", false},
		{"specs=<dict>", true},
		{"type=<dict>", false},
		{"missing=<list>", false},
		{"none=[]", true},
		{"tags=[]", false},
		{"nothing={}", true},
		{"specs={}", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := New(tt.expr)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.Match(a); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch_RegexAndLiteral(t *testing.T) {
	a := asset.FromMap(map[string]any{
		"model":  "macbookpro",
		"serial": 1234,
		"weird":  "a(b",
	})

	tests := []struct {
		expr string
		want bool
	}{
		{"model=macbookpro", true},
		{"model=macbook.*", true},
		{"model=macbook", false}, // regex must match the whole value
		{"model=book", false},
		{"serial=1234", true},
		{"serial=12.*", true},
		{"weird=a(b", true}, // malformed regex falls back to literal equality
		{"weird=a(", false},
		{"missing=.*", false},
		{"model=<unset>", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := New(tt.expr)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.Match(a); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchAll(t *testing.T) {
	a := asset.FromMap(map[string]any{"type": "laptop", "make": "apple"})
	filters, err := Parse([]string{"type=laptop", "make=app.*"})
	if err != nil {
		t.Fatal(err)
	}
	if !MatchAll(a, filters) {
		t.Error("expected all filters to match")
	}

	more, _ := New("make=lenovo")
	if MatchAll(a, append(filters, more)) {
		t.Error("expected mismatch")
	}
}

func TestIsPseudo(t *testing.T) {
	f, _ := New("path=.*lab.*")
	if !f.IsPseudo(asset.DefaultKeys()) {
		t.Error("path filter should be pseudo")
	}
	g, _ := New("type=laptop")
	if g.IsPseudo(asset.DefaultKeys()) {
		t.Error("type filter should not be pseudo")
	}
}

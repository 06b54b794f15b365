package inventory

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/schaermu/shelf/internal/asset"
)

// Kind identifies one of the nine structural change types.
type Kind string

// Operation kinds.
const (
	KindNewDirectory    Kind = "new_directory"
	KindNewAsset        Kind = "new_asset"
	KindRemoveAsset     Kind = "remove_asset"
	KindModifyAsset     Kind = "modify_asset"
	KindRenameAsset     Kind = "rename_asset"
	KindRemoveDirectory Kind = "remove_directory"
	KindMoveDirectory   Kind = "move_directory"
	KindRenameDirectory Kind = "rename_directory"
	KindMoveAsset       Kind = "move_asset"
)

// Title returns the commit-message section header for the kind.
func (k Kind) Title() string {
	switch k {
	case KindNewDirectory:
		return "New directories:\n"
	case KindNewAsset:
		return "New assets:\n"
	case KindRemoveAsset:
		return "Removed assets:\n"
	case KindModifyAsset:
		return "Modified assets:\n"
	case KindRenameAsset:
		return "Renamed assets:\n"
	case KindRemoveDirectory:
		return "Removed directories:\n"
	case KindMoveDirectory:
		return "Moved directories:\n"
	case KindRenameDirectory:
		return "Renamed directories:\n"
	case KindMoveAsset:
		return "Moved assets:\n"
	}
	return string(k) + ":\n"
}

// Operation is a validated change waiting in the queue. The set of
// implementations is closed; each carries its own operands.
type Operation interface {
	Kind() Kind
	fmt.Stringer

	// execute applies the change and returns the paths to stage.
	execute(s Store) ([]string, error)
	// diff renders preview lines without touching the store.
	diff(s Store) []string
	// record returns the commit-message snippet.
	record(s Store) string
}

// NewDirectory creates an anchored directory.
type NewDirectory struct {
	Path string
}

// NewAsset writes a new asset at its path.
type NewAsset struct {
	Asset *asset.Asset
}

// RemoveAsset deletes an asset file or asset directory.
type RemoveAsset struct {
	Path string
}

// ModifyAsset replaces the content of Old with New in place.
type ModifyAsset struct {
	Old *asset.Asset
	New *asset.Asset
}

// RenameAsset renames an asset within its directory.
type RenameAsset struct {
	Src string
	Dst string
}

// RemoveDirectory deletes an empty inventory directory.
type RemoveDirectory struct {
	Path string
}

// MoveDirectory moves Src into DstDir.
type MoveDirectory struct {
	Src    string
	DstDir string
}

// RenameDirectory renames Src to Dst within the same parent.
type RenameDirectory struct {
	Src string
	Dst string
}

// MoveAsset moves Src into DstDir.
type MoveAsset struct {
	Src    string
	DstDir string
}

func (NewDirectory) Kind() Kind    { return KindNewDirectory }
func (NewAsset) Kind() Kind        { return KindNewAsset }
func (RemoveAsset) Kind() Kind     { return KindRemoveAsset }
func (ModifyAsset) Kind() Kind     { return KindModifyAsset }
func (RenameAsset) Kind() Kind     { return KindRenameAsset }
func (RemoveDirectory) Kind() Kind { return KindRemoveDirectory }
func (MoveDirectory) Kind() Kind   { return KindMoveDirectory }
func (RenameDirectory) Kind() Kind { return KindRenameDirectory }
func (MoveAsset) Kind() Kind       { return KindMoveAsset }

func (o NewDirectory) String() string    { return fmt.Sprintf("%s %s", o.Kind(), o.Path) }
func (o NewAsset) String() string        { return fmt.Sprintf("%s %s", o.Kind(), o.Asset.Path()) }
func (o RemoveAsset) String() string     { return fmt.Sprintf("%s %s", o.Kind(), o.Path) }
func (o ModifyAsset) String() string     { return fmt.Sprintf("%s %s", o.Kind(), o.Old.Path()) }
func (o RenameAsset) String() string     { return fmt.Sprintf("%s %s -> %s", o.Kind(), o.Src, o.Dst) }
func (o RemoveDirectory) String() string { return fmt.Sprintf("%s %s", o.Kind(), o.Path) }
func (o MoveDirectory) String() string   { return fmt.Sprintf("%s %s -> %s", o.Kind(), o.Src, o.DstDir) }
func (o RenameDirectory) String() string { return fmt.Sprintf("%s %s -> %s", o.Kind(), o.Src, o.Dst) }
func (o MoveAsset) String() string       { return fmt.Sprintf("%s %s -> %s", o.Kind(), o.Src, o.DstDir) }

// new_directory

func (o NewDirectory) execute(s Store) ([]string, error) {
	return s.CreateDirectory(o.Path)
}

func (o NewDirectory) diff(s Store) []string {
	return []string{"+ " + s.RelPath(o.Path) + "/"}
}

func (o NewDirectory) record(s Store) string {
	return snippet(s.RelPath(o.Path))
}

// new_asset

func (o NewAsset) execute(s Store) ([]string, error) {
	return s.WriteAsset(o.Asset)
}

func (o NewAsset) diff(s Store) []string {
	lines := []string{"+++ " + s.RelPath(o.Asset.Path())}
	for _, l := range contentLines(o.Asset, s.AssetKeys()) {
		lines = append(lines, "+"+strings.TrimSuffix(l, "\n"))
	}
	return lines
}

func (o NewAsset) record(s Store) string {
	return snippet(s.RelPath(o.Asset.Path()))
}

// remove_asset

func (o RemoveAsset) execute(s Store) ([]string, error) {
	return s.Remove(o.Path)
}

func (o RemoveAsset) diff(s Store) []string {
	return []string{"- " + s.RelPath(o.Path)}
}

func (o RemoveAsset) record(s Store) string {
	return snippet(s.RelPath(o.Path))
}

// modify_asset

func (o ModifyAsset) execute(s Store) ([]string, error) {
	return s.WriteAsset(o.New)
}

func (o ModifyAsset) diff(s Store) []string {
	rel := s.RelPath(o.Old.Path())
	ud := difflib.UnifiedDiff{
		A:        contentLines(o.Old, s.AssetKeys()),
		B:        contentLines(o.New, s.AssetKeys()),
		FromFile: rel,
		ToFile:   rel,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return []string{fmt.Sprintf("! %s: %v", rel, err)}
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func (o ModifyAsset) record(s Store) string {
	return snippet(s.RelPath(o.Old.Path()))
}

// rename_asset

func (o RenameAsset) execute(s Store) ([]string, error) {
	return s.Rename(o.Src, o.Dst)
}

func (o RenameAsset) diff(s Store) []string {
	return []string{arrow(s, o.Src, o.Dst)}
}

func (o RenameAsset) record(s Store) string {
	return snippet(arrow(s, o.Src, o.Dst))
}

// remove_directory

func (o RemoveDirectory) execute(s Store) ([]string, error) {
	return s.Remove(o.Path)
}

func (o RemoveDirectory) diff(s Store) []string {
	return []string{"- " + s.RelPath(o.Path) + "/"}
}

func (o RemoveDirectory) record(s Store) string {
	return snippet(s.RelPath(o.Path))
}

// move_directory

func (o MoveDirectory) dst() string {
	return filepath.Join(o.DstDir, filepath.Base(o.Src))
}

func (o MoveDirectory) execute(s Store) ([]string, error) {
	return s.Rename(o.Src, o.dst())
}

func (o MoveDirectory) diff(s Store) []string {
	return []string{arrow(s, o.Src, o.dst())}
}

func (o MoveDirectory) record(s Store) string {
	return snippet(arrow(s, o.Src, o.dst()))
}

// rename_directory

func (o RenameDirectory) execute(s Store) ([]string, error) {
	return s.Rename(o.Src, o.Dst)
}

func (o RenameDirectory) diff(s Store) []string {
	return []string{arrow(s, o.Src, o.Dst)}
}

func (o RenameDirectory) record(s Store) string {
	return snippet(arrow(s, o.Src, o.Dst))
}

// move_asset

func (o MoveAsset) dst() string {
	return filepath.Join(o.DstDir, filepath.Base(o.Src))
}

func (o MoveAsset) execute(s Store) ([]string, error) {
	return s.Rename(o.Src, o.dst())
}

func (o MoveAsset) diff(s Store) []string {
	return []string{arrow(s, o.Src, o.dst())}
}

func (o MoveAsset) record(s Store) string {
	return snippet(arrow(s, o.Src, o.dst()))
}

func snippet(s string) string {
	return "- " + s + "\n"
}

func arrow(s Store, src, dst string) string {
	return s.RelPath(src) + " -> " + s.RelPath(dst)
}

// contentLines renders the persisted YAML of a as lines, each with its newline.
func contentLines(a *asset.Asset, keys asset.Keys) []string {
	data, err := asset.Marshal(a, keys.NonPersisted())
	if err != nil {
		return []string{fmt.Sprintf("<unrenderable: %v>\n", err)}
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

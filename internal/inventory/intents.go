package inventory

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/schaermu/shelf/internal/asset"
)

// Outcome tells whether an intent queued work or found nothing to do.
type Outcome int

const (
	// Queued means an operation was added to the queue.
	Queued Outcome = iota
	// Unchanged means the request was valid but already satisfied.
	Unchanged
)

func (o Outcome) String() string {
	if o == Unchanged {
		return "unchanged"
	}
	return "queued"
}

// AddAsset queues the creation of a, which must carry its destination path.
// Missing parent directories are queued first. An asset directory either
// converts an existing directory (renaming it to the generated name) or
// creates a new one.
func (inv *Inventory) AddAsset(a *asset.Asset) error {
	return inv.atomically(func() error {
		p := a.Path()
		if p == "" {
			return fmt.Errorf("%w: asset has no path", ErrInvalidOperand)
		}
		if inv.store.IsAssetPath(p) || inv.pendingAsset(p) {
			return fmt.Errorf("%w: asset %s already exists", ErrInvalidOperand, p)
		}
		if !inv.store.IsInventoryPath(p) {
			return fmt.Errorf("%w: %s is not a valid inventory path", ErrInvalidOperand, p)
		}

		a = a.Clone()
		switch {
		case a.IsAssetDirectory() && inv.store.IsInventoryDir(p):
			name, err := inv.GenerateAssetName(a)
			if err != nil {
				return err
			}
			if name != filepath.Base(p) {
				dst := filepath.Join(filepath.Dir(p), name)
				if err := inv.RenameDirectory(p, dst); err != nil {
					return err
				}
				a.SetPath(dst)
			}
		case a.IsAssetDirectory() && inv.pendingDirectory(p):
		case a.IsAssetDirectory():
			if err := inv.AddDirectory(p); err != nil {
				return err
			}
		default:
			if inv.occupied(p) {
				return fmt.Errorf("%w: %s already exists", ErrInvalidOperand, p)
			}
			if err := inv.ensureDirectory(filepath.Dir(p)); err != nil {
				return err
			}
		}

		if err := inv.nameTaken(filepath.Base(a.Path()), ""); err != nil {
			return err
		}
		inv.enqueue(NewAsset{Asset: a})
		return nil
	})
}

// AddDirectory queues the creation of p, followed by any missing ancestors.
func (inv *Inventory) AddDirectory(p string) error {
	return inv.atomically(func() error {
		if !inv.store.IsInventoryPath(p) {
			return fmt.Errorf("%w: %s is not a valid inventory path", ErrInvalidOperand, p)
		}
		if inv.occupied(p) {
			return fmt.Errorf("%w: %s already exists", ErrInvalidOperand, p)
		}
		if inv.pendingGone(filepath.Dir(p)) {
			return fmt.Errorf("%w: %s is removed or moved by a queued operation", ErrInvalidOperation, filepath.Dir(p))
		}

		inv.enqueue(NewDirectory{Path: p})
		for dir := filepath.Dir(p); inv.store.IsInventoryPath(dir); dir = filepath.Dir(dir) {
			if inv.store.IsInventoryDir(dir) {
				break
			}
			if !inv.pendingDirectory(dir) {
				inv.enqueue(NewDirectory{Path: dir})
			}
			if dir == filepath.Dir(dir) {
				break
			}
		}
		return nil
	})
}

// ensureDirectory queues dir unless it exists or is already queued.
func (inv *Inventory) ensureDirectory(dir string) error {
	if inv.pendingDirectory(dir) {
		return nil
	}
	if inv.pendingGone(dir) {
		return fmt.Errorf("%w: %s is removed or moved by a queued operation", ErrInvalidOperation, dir)
	}
	if inv.store.IsInventoryDir(dir) {
		return nil
	}
	return inv.AddDirectory(dir)
}

// RemoveAsset queues the removal of the asset at p.
func (inv *Inventory) RemoveAsset(p string) error {
	if !inv.store.IsAssetPath(p) {
		return fmt.Errorf("%w: no such asset: %s", ErrNotAnAsset, p)
	}
	inv.enqueue(RemoveAsset{Path: p})
	return nil
}

// MoveAsset queues moving the asset at src into the directory dst.
func (inv *Inventory) MoveAsset(src, dst string) error {
	if !inv.store.IsAssetPath(src) {
		return fmt.Errorf("%w: no such asset: %s", ErrNotAnAsset, src)
	}
	if filepath.Dir(src) == filepath.Clean(dst) {
		return fmt.Errorf("%w: cannot move %s: destination %s is the current location", ErrInvalidOperand, src, dst)
	}
	if !inv.store.IsInventoryDir(dst) {
		return fmt.Errorf("%w: cannot move %s: destination %s is not an inventory directory", ErrInvalidOperand, src, dst)
	}
	if isWithin(dst, src) {
		return fmt.Errorf("%w: cannot move %s into itself", ErrInvalidOperation, src)
	}
	if inv.pendingGone(dst) {
		return fmt.Errorf("%w: cannot move %s: destination %s is removed or moved by a queued operation", ErrInvalidOperation, src, dst)
	}
	if target := filepath.Join(dst, filepath.Base(src)); inv.occupied(target) {
		return fmt.Errorf("%w: %s already exists", ErrInvalidOperand, target)
	}
	inv.enqueue(MoveAsset{Src: src, DstDir: dst})
	return nil
}

// RenameAsset queues renaming a to the name generated from its content.
// If name is given it must equal the generated name. It returns Unchanged,
// without error, when the asset already carries the generated name.
func (inv *Inventory) RenameAsset(a *asset.Asset, name string) (Outcome, error) {
	p := a.Path()
	if !inv.store.IsAssetPath(p) {
		return Unchanged, fmt.Errorf("%w: no such asset: %s", ErrNotAnAsset, p)
	}

	generated, err := inv.GenerateAssetName(a)
	if err != nil {
		return Unchanged, err
	}
	if name != "" && name != generated {
		return Unchanged, fmt.Errorf("%w: renaming asset %s to %s is invalid, the naming template yields %s",
			ErrInvalidOperand, filepath.Base(p), name, generated)
	}
	if filepath.Base(p) == generated {
		return Unchanged, nil
	}

	dst := filepath.Join(filepath.Dir(p), generated)
	if inv.occupied(dst) {
		return Unchanged, fmt.Errorf("%w: cannot rename asset %s to %s: already exists", ErrInvalidOperand, filepath.Base(p), dst)
	}
	if err := inv.nameTaken(generated, p); err != nil {
		return Unchanged, err
	}

	inv.enqueue(RenameAsset{Src: p, Dst: dst})
	return Queued, nil
}

// RenameAssetPath loads the asset at p and renames it.
func (inv *Inventory) RenameAssetPath(p, name string) (Outcome, error) {
	a, err := inv.load(p)
	if err != nil {
		return Unchanged, err
	}
	return inv.RenameAsset(a, name)
}

// ModifyAsset queues merging delta into a, followed by the rename the new
// content implies, if any. Pseudo and reserved keys in delta are ignored and
// nested mappings are merged key by key. When the merged content equals the
// current content no modify_asset operation is queued, though a rename may
// still be.
func (inv *Inventory) ModifyAsset(a *asset.Asset, delta *asset.Asset) error {
	return inv.atomically(func() error {
		p := a.Path()
		if !inv.store.IsAssetPath(p) {
			return fmt.Errorf("%w: no such asset: %s", ErrNotAnAsset, p)
		}

		keys := inv.store.AssetKeys()
		updated := a.Clone()
		updated.Update(delta.Without(keys.NonPersisted()...))

		if !asset.Equal(a, updated, keys.NonPersisted()) {
			inv.enqueue(ModifyAsset{Old: a, New: updated})
		}

		// The rename must execute after the modification, otherwise the
		// new content would land at the old path.
		_, err := inv.RenameAsset(updated, "")
		return err
	})
}

// ModifyAssetPath loads the asset at p and modifies it.
func (inv *Inventory) ModifyAssetPath(p string, delta *asset.Asset) error {
	a, err := inv.load(p)
	if err != nil {
		return err
	}
	return inv.ModifyAsset(a, delta)
}

// RemoveDirectory queues the removal of an empty inventory directory.
// Anchors and other structural entries do not count as content, and neither
// do entries an earlier queued operation removes or moves away. Anything a
// queued operation creates, moves or renames into p does count.
func (inv *Inventory) RemoveDirectory(p string) error {
	if !inv.store.IsInventoryDir(p) {
		return fmt.Errorf("%w: not an inventory directory: %s", ErrInvalidOperand, p)
	}
	if inv.store.IsAssetDir(p) {
		return fmt.Errorf("%w: %s is an asset directory, remove it as an asset", ErrInvalidOperation, p)
	}
	entries, err := inv.store.DirEntries(p)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p, err)
	}
	for _, name := range entries {
		if !inv.pendingRemoval(filepath.Join(p, name)) {
			return fmt.Errorf("%w: cannot remove inventory directory %s: not empty", ErrInvalidOperation, p)
		}
	}
	if inv.pendingArrival(p) {
		return fmt.Errorf("%w: cannot remove inventory directory %s: queued operations add content to it", ErrInvalidOperation, p)
	}
	inv.enqueue(RemoveDirectory{Path: p})
	return nil
}

// MoveDirectory queues moving src into the directory dst.
func (inv *Inventory) MoveDirectory(src, dst string) error {
	if !inv.store.IsInventoryDir(src) {
		return fmt.Errorf("%w: not an inventory directory: %s", ErrInvalidOperand, src)
	}
	if !inv.store.IsInventoryDir(dst) {
		return fmt.Errorf("%w: destination is not an inventory directory: %s", ErrInvalidOperand, dst)
	}
	if filepath.Dir(src) == filepath.Clean(dst) {
		return fmt.Errorf("%w: cannot move %s -> %s, consider renaming instead", ErrInvalidOperation, src, dst)
	}
	if isWithin(dst, src) {
		return fmt.Errorf("%w: cannot move %s into itself", ErrInvalidOperation, src)
	}
	if inv.pendingGone(dst) {
		return fmt.Errorf("%w: cannot move %s: destination %s is removed or moved by a queued operation", ErrInvalidOperation, src, dst)
	}
	if target := filepath.Join(dst, filepath.Base(src)); inv.occupied(target) {
		return fmt.Errorf("%w: %s already exists", ErrInvalidOperand, target)
	}
	inv.enqueue(MoveDirectory{Src: src, DstDir: dst})
	return nil
}

// RenameDirectory queues renaming src to dst, which must share its parent.
func (inv *Inventory) RenameDirectory(src, dst string) error {
	if !inv.store.IsInventoryDir(src) {
		return fmt.Errorf("%w: not an inventory directory: %s", ErrInvalidOperand, src)
	}
	if inv.store.IsAssetDir(src) {
		return fmt.Errorf("%w: renaming an asset directory must be done via RenameAsset", ErrInvalidOperand)
	}
	if !filepath.IsAbs(dst) {
		dst = filepath.Join(filepath.Dir(src), dst)
	}
	if filepath.Dir(src) != filepath.Dir(dst) {
		return fmt.Errorf("%w: cannot rename %s -> %s, consider moving instead", ErrInvalidOperation, src, dst)
	}
	if !inv.store.IsInventoryPath(dst) || inv.occupied(dst) {
		return fmt.Errorf("%w: not a valid destination: %s", ErrInvalidOperand, dst)
	}
	inv.enqueue(RenameDirectory{Src: src, Dst: dst})
	return nil
}

// GetAsset loads the asset at p.
func (inv *Inventory) GetAsset(p string) (*asset.Asset, error) {
	return inv.load(p)
}

func (inv *Inventory) load(p string) (*asset.Asset, error) {
	if !inv.store.IsAssetPath(p) {
		return nil, fmt.Errorf("%w: no such asset: %s", ErrNotAnAsset, p)
	}
	return inv.store.GetAssetContent(p)
}

// pendingDirectory reports whether a queued operation creates p.
func (inv *Inventory) pendingDirectory(p string) bool {
	for _, op := range inv.ops {
		if nd, ok := op.(NewDirectory); ok && nd.Path == p {
			return true
		}
	}
	return false
}

// pendingAsset reports whether a queued operation creates an asset at p.
func (inv *Inventory) pendingAsset(p string) bool {
	for _, op := range inv.ops {
		if na, ok := op.(NewAsset); ok && na.Asset.Path() == p {
			return true
		}
	}
	return false
}

// source returns the path op removes or moves away, or "".
func source(op Operation) string {
	switch o := op.(type) {
	case RemoveAsset:
		return o.Path
	case RemoveDirectory:
		return o.Path
	case MoveAsset:
		return o.Src
	case MoveDirectory:
		return o.Src
	case RenameAsset:
		return o.Src
	case RenameDirectory:
		return o.Src
	}
	return ""
}

// destination returns the path op brings into existence, or "" if it
// creates nothing.
func destination(op Operation) string {
	switch o := op.(type) {
	case NewAsset:
		return o.Asset.Path()
	case NewDirectory:
		return o.Path
	case MoveAsset:
		return filepath.Join(o.DstDir, filepath.Base(o.Src))
	case MoveDirectory:
		return filepath.Join(o.DstDir, filepath.Base(o.Src))
	case RenameAsset:
		return o.Dst
	case RenameDirectory:
		return o.Dst
	}
	return ""
}

// pendingTarget reports whether a queued operation creates, moves or renames
// something to p.
func (inv *Inventory) pendingTarget(p string) bool {
	for _, op := range inv.ops {
		if destination(op) == p {
			return true
		}
	}
	return false
}

// pendingArrival reports whether a queued operation puts anything below dir.
func (inv *Inventory) pendingArrival(dir string) bool {
	for _, op := range inv.ops {
		if d := destination(op); d != "" && d != dir && isWithin(d, dir) {
			return true
		}
	}
	return false
}

// occupied reports whether p is taken once the queue has run: it exists and
// is not removed or moved away first, or a queued operation puts something
// there.
func (inv *Inventory) occupied(p string) bool {
	if inv.store.Exists(p) && !inv.pendingRemoval(p) {
		return true
	}
	return inv.pendingTarget(p)
}

// pendingGone reports whether p or one of its ancestors is removed or moved
// away by a queued operation.
func (inv *Inventory) pendingGone(p string) bool {
	for _, op := range inv.ops {
		if src := source(op); src != "" && isWithin(p, src) {
			return true
		}
	}
	return false
}

// pendingRemoval reports whether a queued operation removes p or moves it away.
func (inv *Inventory) pendingRemoval(p string) bool {
	for _, op := range inv.ops {
		if source(op) == p {
			return true
		}
	}
	return false
}

// isWithin reports whether p equals dir or lies below it.
func isWithin(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

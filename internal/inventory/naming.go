package inventory

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"

	"github.com/schaermu/shelf/internal/asset"
	"github.com/schaermu/shelf/internal/config"
)

const (
	// FauxPrefix marks a generated placeholder serial.
	FauxPrefix = "faux"

	// DefaultFauxLength is the suffix length used for new assets.
	DefaultFauxLength = 6

	fauxAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateAssetName expands the configured naming template against a.
// Placeholders are written {key} and may use dot notation; {{ and }} stand
// for literal braces.
func (inv *Inventory) GenerateAssetName(a *asset.Asset) (string, error) {
	tmpl, ok := inv.store.GetConfig(config.KeyAssetFilename)
	if !ok || tmpl == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingConfig, config.KeyAssetFilename)
	}

	name, err := expandName(tmpl, a)
	if err != nil {
		return "", err
	}
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, filepath.Separator) {
		return "", fmt.Errorf("%w: generated asset name %q is not a valid file name", ErrInvalidOperand, name)
	}
	return name, nil
}

func expandName(tmpl string, a *asset.Asset) (string, error) {
	return scanTemplate(tmpl, func(key string) (string, error) {
		v, ok := a.Get(key)
		if !ok {
			return "", fmt.Errorf("%w: asset missing value for required field %q", ErrInvalidOperand, key)
		}
		return asset.Stringify(v), nil
	})
}

// NameKeys lists the keys referenced by a naming template, in order of
// first appearance.
func NameKeys(tmpl string) ([]string, error) {
	var keys []string
	_, err := scanTemplate(tmpl, func(key string) (string, error) {
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
		return "", nil
	})
	return keys, err
}

func scanTemplate(tmpl string, lookup func(key string) (string, error)) (string, error) {
	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated placeholder in naming template %q", ErrInvalidOperand, tmpl)
			}
			v, err := lookup(tmpl[i+1 : i+1+end])
			if err != nil {
				return "", err
			}
			b.WriteString(v)
			i += end + 1
		case c == '}':
			return "", fmt.Errorf("%w: single '}' in naming template %q", ErrInvalidOperand, tmpl)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// AssetPathsAvailable checks that new assets can be created at their paths.
// Nothing may exist or be queued there yet, names must be unique within the
// batch and across the whole inventory, and every path must lie in the
// inventory. It fails on the first violation.
func (inv *Inventory) AssetPathsAvailable(assets []*asset.Asset) error {
	existing, err := inv.existingNames()
	if err != nil {
		return err
	}

	batch := make(map[string]int)
	for _, a := range assets {
		if p := a.Path(); p != "" {
			batch[filepath.Base(p)]++
		}
	}

	for _, a := range assets {
		p := a.Path()
		if p == "" {
			continue
		}
		name := filepath.Base(p)
		if inv.occupied(p) {
			return fmt.Errorf("%w: %s already exists in inventory", ErrInvalidOperand, p)
		}
		if batch[name] > 1 {
			return fmt.Errorf("%w: multiple %s given, asset names must be unique", ErrInvalidOperand, name)
		}
		if !inv.store.IsInventoryPath(p) {
			return fmt.Errorf("%w: %s is not a valid asset path", ErrInvalidOperand, p)
		}
		if existing[name] {
			return fmt.Errorf("%w: asset name %q already exists in inventory", ErrInvalidOperand, name)
		}
	}
	return nil
}

// GetFauxSerials returns num distinct placeholder serials made of FauxPrefix
// and length random alphanumerics. None reuses a suffix found among existing
// faux-named assets.
func (inv *Inventory) GetFauxSerials(length, num int) ([]string, error) {
	if length < 4 {
		// 62^4 combinations is the lowest acceptable collision risk
		// between independent checkouts.
		return nil, fmt.Errorf("%w: faux serial length must be >= 4, got %d", ErrInvalidOperand, length)
	}
	if num < 1 {
		return nil, fmt.Errorf("%w: number of faux serials must be >= 1, got %d", ErrInvalidOperand, num)
	}

	names, err := inv.existingNames()
	if err != nil {
		return nil, err
	}
	used := make(map[string]bool)
	for name := range names {
		if i := strings.LastIndex(name, FauxPrefix); i >= 0 {
			used[name[i+len(FauxPrefix):]] = true
		}
	}

	serials := make([]string, 0, num)
	buf := make([]byte, length)
	for len(serials) < num {
		for i := range buf {
			buf[i] = fauxAlphabet[rand.IntN(len(fauxAlphabet))]
		}
		suffix := string(buf)
		if used[suffix] {
			continue
		}
		used[suffix] = true
		serials = append(serials, FauxPrefix+suffix)
	}
	return serials, nil
}

// nameTaken fails if an asset other than self uses name once the queue has
// run.
func (inv *Inventory) nameTaken(name, self string) error {
	names, err := inv.assetNames()
	if err != nil {
		return err
	}
	for p, n := range names {
		if p != self && n == name {
			return fmt.Errorf("%w: asset name %q already exists in inventory", ErrInvalidOperand, name)
		}
	}
	return nil
}

// existingNames returns the file names of all assets once the queue has run.
func (inv *Inventory) existingNames() (map[string]bool, error) {
	names, err := inv.assetNames()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}

// assetNames maps every asset to the file name it carries after the queue
// has run. Stored assets are keyed by their current path, queued new assets
// by their destination. Moves keep the name and are left out.
func (inv *Inventory) assetNames() (map[string]string, error) {
	paths, err := inv.store.AssetPaths()
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		names[p] = filepath.Base(p)
	}
	for _, op := range inv.ops {
		switch o := op.(type) {
		case NewAsset:
			names[o.Asset.Path()] = filepath.Base(o.Asset.Path())
		case RenameAsset:
			names[o.Src] = filepath.Base(o.Dst)
		case RemoveAsset:
			delete(names, o.Path)
		}
	}
	return names, nil
}

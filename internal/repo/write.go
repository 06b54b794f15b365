package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schaermu/shelf/internal/asset"
)

// WriteAsset persists a at its path and returns the file written. Asset
// directories store their content in AssetFileName. Pseudo and reserved keys
// are stripped.
func (r *Repo) WriteAsset(a *asset.Asset) ([]string, error) {
	p := a.Path()
	if p == "" {
		return nil, fmt.Errorf("asset has no path")
	}

	target := p
	if a.IsAssetDirectory() {
		target = filepath.Join(p, r.opts.AssetFileName)
	}

	data, err := asset.Marshal(a, r.opts.Keys.NonPersisted())
	if err != nil {
		return nil, err
	}

	r.logger.Debug("writing asset", "path", r.RelPath(target))
	if err := atomicWrite(target, data); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", target, err)
	}
	return []string{target}, nil
}

// CreateDirectory creates p and any missing parents, anchoring each one.
// It returns the anchors it created.
func (r *Repo) CreateDirectory(p string) ([]string, error) {
	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", p, err)
	}

	var anchors []string
	for dir := p; ; dir = filepath.Dir(dir) {
		if _, ok := r.within(dir); !ok {
			break
		}
		anchor := filepath.Join(dir, r.opts.AnchorName)
		if _, err := os.Stat(anchor); os.IsNotExist(err) {
			if err := atomicWrite(anchor, nil); err != nil {
				return nil, fmt.Errorf("failed to anchor %s: %w", dir, err)
			}
			anchors = append(anchors, anchor)
		}
		if dir == r.root {
			break
		}
	}

	r.logger.Debug("created directory", "path", r.RelPath(p), "anchors", len(anchors))
	return anchors, nil
}

// Remove deletes p, recursively for directories.
func (r *Repo) Remove(p string) ([]string, error) {
	r.logger.Debug("removing", "path", r.RelPath(p))
	if err := os.RemoveAll(p); err != nil {
		return nil, fmt.Errorf("failed to remove %s: %w", p, err)
	}
	return []string{p}, nil
}

// Rename moves src to dst and returns both paths.
func (r *Repo) Rename(src, dst string) ([]string, error) {
	r.logger.Debug("renaming", "src", r.RelPath(src), "dst", r.RelPath(dst))
	if _, err := os.Stat(dst); err == nil {
		return nil, fmt.Errorf("destination already exists: %s", dst)
	}
	if err := os.Rename(src, dst); err != nil {
		return nil, fmt.Errorf("failed to rename %s: %w", src, err)
	}
	return []string{src, dst}, nil
}

// atomicWrite writes data to a temporary file next to dst and renames it
// into place.
func atomicWrite(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".shelf-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Chmod(0644); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}

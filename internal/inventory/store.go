package inventory

import (
	"context"

	"github.com/schaermu/shelf/internal/asset"
)

// Store is the backing tree an Inventory validates against and mutates.
// All paths are absolute.
type Store interface {
	// IsInventoryPath reports whether p lies in the tree, outside metadata.
	IsInventoryPath(p string) bool
	// IsInventoryDir reports whether p is an existing, anchored directory.
	IsInventoryDir(p string) bool
	// IsAssetPath reports whether p is an existing asset.
	IsAssetPath(p string) bool
	// IsAssetDir reports whether p is a directory that is also an asset.
	IsAssetDir(p string) bool
	// Exists reports whether anything is present at p.
	Exists(p string) bool
	// GetAssetContent loads the asset at p.
	GetAssetContent(p string) (*asset.Asset, error)
	// GetConfig reads a configuration value.
	GetConfig(key string) (string, bool)
	// AssetPaths lists every asset in the tree.
	AssetPaths() ([]string, error)
	// AssetPathsUnder lists assets below dir up to depth (0 = unlimited).
	AssetPathsUnder(dir string, depth int) ([]string, error)
	// DirEntries lists the entries of dir other than anchor and asset file.
	DirEntries(dir string) ([]string, error)
	// LoadTemplate reads a named template for new assets.
	LoadTemplate(name string) (*asset.Asset, error)
	// AssetKeys returns the pseudo and reserved key classes.
	AssetKeys() asset.Keys
	// RelPath renders p relative to the root.
	RelPath(p string) string

	// WriteAsset persists an asset and returns the files written.
	WriteAsset(a *asset.Asset) ([]string, error)
	// CreateDirectory creates and anchors p and its missing parents.
	CreateDirectory(p string) ([]string, error)
	// Remove deletes p recursively.
	Remove(p string) ([]string, error)
	// Rename moves src to dst.
	Rename(src, dst string) ([]string, error)

	// StageAndCommit records paths in one atomic revision.
	StageAndCommit(ctx context.Context, paths []string, message string) error
}

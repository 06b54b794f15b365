// Package repo implements the inventory store on top of a git work tree.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schaermu/shelf/internal/asset"
	"github.com/schaermu/shelf/internal/config"
	"github.com/schaermu/shelf/internal/git"
)

// Options describes the layout conventions of an inventory.
type Options struct {
	// MetaDir is the metadata directory at the root.
	MetaDir string
	// AnchorName marks a directory as part of the inventory.
	AnchorName string
	// AssetFileName holds the content of an asset directory.
	AssetFileName string
	// Keys classifies pseudo and reserved asset keys.
	Keys asset.Keys
}

// DefaultOptions returns the layout used by shelf inventories.
func DefaultOptions() Options {
	return Options{
		MetaDir:       config.DirName,
		AnchorName:    ".anchor",
		AssetFileName: ".shelf-asset.yaml",
		Keys:          asset.DefaultKeys(),
	}
}

// Repo is an inventory rooted in a git work tree.
type Repo struct {
	root   string
	opts   Options
	cfg    *config.Config
	git    git.Client
	logger *slog.Logger
}

// Open locates the inventory containing dir and loads its configuration.
// A missing configuration file is tolerated; lookups then report no value.
func Open(dir string, gitClient git.Client, logger *slog.Logger) (*Repo, error) {
	opts := DefaultOptions()
	root, err := FindRoot(dir, opts.MetaDir)
	if err != nil {
		return nil, err
	}

	r := &Repo{root: root, opts: opts, git: gitClient, logger: logger}
	if err := r.reloadConfig(); err != nil {
		return nil, err
	}

	logger.Debug("opened inventory", "root", root)
	return r, nil
}

// Init turns dir into an inventory: a git repository with a default
// configuration, an empty template and an anchored root, committed at once.
func Init(ctx context.Context, dir string, gitClient git.Client, logger *slog.Logger) (*Repo, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	opts := DefaultOptions()
	if _, err := os.Stat(filepath.Join(root, opts.MetaDir)); err == nil {
		return nil, fmt.Errorf("%s is already an inventory", root)
	}

	logger.Info("initializing inventory", "root", root)
	if err := gitClient.Init(ctx, root); err != nil {
		return nil, err
	}
	if _, err := gitClient.TopLevel(ctx, root); err != nil {
		return nil, err
	}

	cfgPath, err := config.WriteDefault(root)
	if err != nil {
		return nil, err
	}

	r := &Repo{root: root, opts: opts, git: gitClient, logger: logger}
	if err := r.reloadConfig(); err != nil {
		return nil, err
	}

	tmpl := r.TemplatePath(config.DefaultTemplate)
	if err := os.MkdirAll(filepath.Dir(tmpl), 0755); err != nil {
		return nil, fmt.Errorf("failed to create templates directory: %w", err)
	}
	if err := atomicWrite(tmpl, []byte("---\n")); err != nil {
		return nil, fmt.Errorf("failed to write template: %w", err)
	}

	anchors, err := r.CreateDirectory(root)
	if err != nil {
		return nil, err
	}

	paths := append([]string{cfgPath, tmpl}, anchors...)
	if err := r.StageAndCommit(ctx, paths, "Initialize as a shelf inventory"); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repo) reloadConfig() error {
	cfg, err := config.Load(r.root)
	if err != nil {
		if errors.Is(err, config.ErrNoConfig) {
			r.logger.Warn("inventory has no configuration", "path", config.Path(r.root))
			r.cfg = nil
			return nil
		}
		return err
	}
	r.cfg = cfg
	return nil
}

// Root returns the absolute inventory root.
func (r *Repo) Root() string {
	return r.root
}

// Options returns the layout conventions of the inventory.
func (r *Repo) Options() Options {
	return r.opts
}

// Config returns the loaded configuration, or nil if there is none.
func (r *Repo) Config() *config.Config {
	return r.cfg
}

// RelPath returns p relative to the root, using "/" separators.
func (r *Repo) RelPath(p string) string {
	rel, err := filepath.Rel(r.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// IsMetadataPath reports whether p lies in .git or the metadata directory.
func (r *Repo) IsMetadataPath(p string) bool {
	rel, ok := r.within(p)
	if !ok {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == ".git" || part == r.opts.MetaDir {
			return true
		}
	}
	return false
}

// IsInventoryPath reports whether p lies within the root, outside metadata,
// and is not itself an anchor or asset-directory content file.
func (r *Repo) IsInventoryPath(p string) bool {
	if _, ok := r.within(p); !ok {
		return false
	}
	if r.IsMetadataPath(p) {
		return false
	}
	name := filepath.Base(p)
	return name != r.opts.AnchorName && name != r.opts.AssetFileName
}

// IsInventoryDir reports whether p is an existing, anchored inventory directory.
func (r *Repo) IsInventoryDir(p string) bool {
	if !r.IsInventoryPath(p) {
		return false
	}
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(p, r.opts.AnchorName))
	return err == nil
}

// IsAssetDir reports whether p is an inventory directory that is also an asset.
func (r *Repo) IsAssetDir(p string) bool {
	if !r.IsInventoryDir(p) {
		return false
	}
	_, err := os.Stat(filepath.Join(p, r.opts.AssetFileName))
	return err == nil
}

// IsAssetPath reports whether p is an existing asset file or asset directory.
func (r *Repo) IsAssetPath(p string) bool {
	if !r.IsInventoryPath(p) || isHidden(filepath.Base(p)) {
		return false
	}
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	if info.Mode().IsRegular() {
		return true
	}
	return r.IsAssetDir(p)
}

// GetAssetContent loads the asset at p with its pseudo and reserved keys set.
func (r *Repo) GetAssetContent(p string) (*asset.Asset, error) {
	if !r.IsAssetPath(p) {
		return nil, fmt.Errorf("%w: %s", asset.ErrNotAnAsset, p)
	}

	file := p
	isDir := r.IsAssetDir(p)
	if isDir {
		file = filepath.Join(p, r.opts.AssetFileName)
	}

	a, err := asset.Load(file)
	if err != nil {
		return nil, err
	}
	a.SetPath(p)
	if isDir {
		a.Set(asset.KeyIsAssetDirectory, true)
	}
	return a, nil
}

// GetConfig returns the configuration value for key.
func (r *Repo) GetConfig(key string) (string, bool) {
	return r.cfg.Get(key)
}

// AssetPaths lists every asset of the inventory in lexical order.
func (r *Repo) AssetPaths() ([]string, error) {
	return r.AssetPathsUnder(r.root, 0)
}

// AssetPathsUnder lists the assets below dir up to depth (0 = unlimited).
// If dir is itself an asset it is listed first.
func (r *Repo) AssetPathsUnder(dir string, depth int) ([]string, error) {
	paths, err := discoverAssets(dir, r.opts.AssetFileName, depth)
	if err != nil {
		return nil, fmt.Errorf("failed to discover assets: %w", err)
	}

	out := make([]string, 0, len(paths)+1)
	if dir != r.root && r.IsAssetDir(dir) {
		out = append(out, dir)
	}
	for _, p := range paths {
		if r.IsAssetPath(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// DirEntries returns the names in dir other than the anchor and asset file.
func (r *Repo) DirEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Name() == r.opts.AnchorName || e.Name() == r.opts.AssetFileName {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// TemplatePath returns the location of the named template.
func (r *Repo) TemplatePath(name string) string {
	return filepath.Join(r.root, r.opts.MetaDir, config.TemplatesDir, name)
}

// LoadTemplate reads the named template as an asset.
func (r *Repo) LoadTemplate(name string) (*asset.Asset, error) {
	if name == "" || strings.ContainsRune(name, filepath.Separator) {
		return nil, fmt.Errorf("invalid template name %q", name)
	}
	a, err := asset.Load(r.TemplatePath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("template %q does not exist", name)
		}
		return nil, fmt.Errorf("failed to load template %q: %w", name, err)
	}
	return a, nil
}

// StageAndCommit records paths in one git commit.
func (r *Repo) StageAndCommit(ctx context.Context, paths []string, message string) error {
	r.logger.Debug("committing", "paths", len(paths))
	if err := r.git.StageAndCommit(ctx, r.root, paths, message); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// History returns the git log of p.
func (r *Repo) History(ctx context.Context, p string) (string, error) {
	return r.git.Log(ctx, r.root, p)
}

// within returns p relative to the root, and whether it lies inside it.
func (r *Repo) within(p string) (string, bool) {
	if !filepath.IsAbs(p) {
		return "", false
	}
	rel, err := filepath.Rel(r.root, filepath.Clean(p))
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// AssetKeys returns the pseudo and reserved key classes.
func (r *Repo) AssetKeys() asset.Keys {
	return r.opts.Keys
}

// Exists reports whether anything is present at p.
func (r *Repo) Exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

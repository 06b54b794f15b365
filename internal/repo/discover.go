package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotAnInventory is returned when no inventory root is found above a path.
var ErrNotAnInventory = errors.New("not a shelf inventory")

// FindRoot walks up from dir until it finds a directory holding metaDir.
func FindRoot(dir, metaDir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for cur := abs; ; {
		if info, err := os.Stat(filepath.Join(cur, metaDir)); err == nil && info.IsDir() {
			return cur, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("%w (or any parent directory): %s", ErrNotAnInventory, abs)
		}
		cur = parent
	}
}

// isHidden reports whether a file name is hidden. Hidden entries are never
// assets: they cover .git, the metadata directory, anchors and asset files.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// discoverAssets finds assets below dir. A file that is not hidden is an asset;
// a directory holding assetFile is an asset directory and is listed as well.
// depth limits recursion (1 = direct children); 0 means unlimited.
func discoverAssets(dir, assetFile string, depth int) ([]string, error) {
	var assets []string
	base := strings.Count(filepath.Clean(dir), string(filepath.Separator))

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if path != dir && isHidden(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		level := strings.Count(filepath.Clean(path), string(filepath.Separator)) - base
		if depth > 0 && level > depth {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			assets = append(assets, path)
			return nil
		}
		if path != dir {
			if _, err := os.Stat(filepath.Join(path, assetFile)); err == nil {
				assets = append(assets, path)
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return assets, nil
}

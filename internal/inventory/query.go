package inventory

import (
	"fmt"
	"sort"

	"github.com/schaermu/shelf/internal/asset"
	"github.com/schaermu/shelf/internal/filter"
)

// Query returns the assets below paths (up to depth, 0 = unlimited) that
// match every filter, sorted by path. Filters on pseudo-keys are evaluated
// before any content is read.
func (inv *Inventory) Query(paths []string, depth int, filters []*filter.Filter) ([]*asset.Asset, error) {
	if depth < 0 {
		return nil, fmt.Errorf("%w: depth must be >= 0, got %d", ErrInvalidOperand, depth)
	}

	seen := make(map[string]bool)
	var candidates []string
	for _, p := range paths {
		if !inv.store.IsInventoryDir(p) && !inv.store.IsAssetPath(p) {
			return nil, fmt.Errorf("%w: %s is neither an inventory directory nor an asset", ErrInvalidOperand, p)
		}
		found, err := inv.store.AssetPathsUnder(p, depth)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				candidates = append(candidates, f)
			}
		}
	}
	sort.Strings(candidates)

	keys := inv.store.AssetKeys()
	var pseudo, content []*filter.Filter
	for _, f := range filters {
		if f.IsPseudo(keys) {
			pseudo = append(pseudo, f)
		} else {
			content = append(content, f)
		}
	}

	var out []*asset.Asset
	for _, p := range candidates {
		stub := asset.New()
		stub.SetPath(p)
		if !filter.MatchAll(stub, pseudo) {
			continue
		}

		a, err := inv.store.GetAssetContent(p)
		if err != nil {
			return nil, err
		}
		if !filter.MatchAll(a, content) {
			continue
		}
		out = append(out, a)
	}

	inv.logger.Debug("query finished", "candidates", len(candidates), "matches", len(out))
	return out, nil
}

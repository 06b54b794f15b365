package inventory

import (
	"fmt"
	"path/filepath"

	"github.com/schaermu/shelf/internal/asset"
	"github.com/schaermu/shelf/internal/config"
)

// PrepareAssets builds new assets ready for AddAsset, one per entry of contents.
// Each starts from a template (the reserved "template" key of its content, else
// tmpl, else the configured default), is overlaid with the content, placed in its
// "directory" key or dir, gets faux serials where serial is "faux", and is
// named by the naming template. The batch is checked with AssetPathsAvailable.
func (inv *Inventory) PrepareAssets(dir, tmpl string, contents []*asset.Asset) ([]*asset.Asset, error) {
	if len(contents) == 0 {
		return nil, fmt.Errorf("%w: no asset content given", ErrInvalidOperand)
	}

	assets := make([]*asset.Asset, 0, len(contents))
	fauxCount := 0
	for _, content := range contents {
		a, err := inv.fromTemplate(tmpl, content)
		if err != nil {
			return nil, err
		}

		target := dir
		if v, ok := content.GetString(asset.KeyDirectory); ok && v != "" {
			target = v
			if !filepath.IsAbs(target) && dir != "" {
				target = filepath.Join(dir, target)
			}
		}
		if target == "" {
			return nil, fmt.Errorf("%w: no directory given for new asset", ErrInvalidOperand)
		}
		target = filepath.Clean(target)
		if !inv.store.IsInventoryPath(target) {
			return nil, fmt.Errorf("%w: %s is not a valid inventory path", ErrInvalidOperand, target)
		}
		a.SetPath(target)

		if v, ok := a.GetString("serial"); ok && v == FauxPrefix {
			fauxCount++
		}
		assets = append(assets, a)
	}

	if fauxCount > 0 {
		serials, err := inv.GetFauxSerials(DefaultFauxLength, fauxCount)
		if err != nil {
			return nil, err
		}
		for _, a := range assets {
			if v, ok := a.GetString("serial"); ok && v == FauxPrefix {
				a.Set("serial", serials[0])
				serials = serials[1:]
			}
		}
	}

	for _, a := range assets {
		name, err := inv.GenerateAssetName(a)
		if err != nil {
			return nil, err
		}
		a.SetPath(filepath.Join(a.Path(), name))
	}

	if err := inv.AssetPathsAvailable(assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// fromTemplate loads the template for content and overlays content on it. Only
// is_asset_directory survives among the reserved keys.
func (inv *Inventory) fromTemplate(tmpl string, content *asset.Asset) (*asset.Asset, error) {
	name := tmpl
	if v, ok := content.GetString(asset.KeyTemplate); ok && v != "" {
		name = v
	}
	if name == "" {
		if v, ok := inv.store.GetConfig(config.KeyDefaultTemplate); ok {
			name = v
		} else {
			name = config.DefaultTemplate
		}
	}

	a, err := inv.store.LoadTemplate(name)
	if err != nil {
		return nil, err
	}

	keys := inv.store.AssetKeys()
	a.Update(content.Without(keys.Pseudo...))
	a.Delete(asset.KeyTemplate)
	a.Delete(asset.KeyDirectory)
	return a, nil
}

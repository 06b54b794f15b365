package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/schaermu/shelf/internal/asset"
	"github.com/schaermu/shelf/internal/config"
	"github.com/schaermu/shelf/internal/filter"
	"github.com/schaermu/shelf/internal/inventory"
	"github.com/schaermu/shelf/internal/ui"
)

// Output formats of get.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTOML  = "toml"
)

var errNoMatches = errors.New("no assets matching the filters were found")

func newGetCmd() *cobra.Command {
	var (
		keys    []string
		filters []string
		depth   int
		format  string
	)
	cmd := &cobra.Command{
		Use:   "get [-k KEY]... [-f KEY=VALUE]... [PATH...]",
		Short: "Query assets and print selected keys",
		Long: `Get lists the assets below PATH (default: the working directory) that match
every filter, printing the requested keys. Keys default to those used in asset
names, plus path.

Filter values are regular expressions matched against the whole value. The
special values <unset>, <list> and <dict> match missing or empty values, lists
and mappings; [] and {} match empty ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case formatTable, formatJSON, formatYAML, formatTOML:
			default:
				return fmt.Errorf("unknown format %q (table, json, yaml, toml)", format)
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			compiled, err := filter.Parse(filters)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				if keys, err = defaultGetKeys(s.repo.Config()); err != nil {
					return err
				}
			}

			if len(args) == 0 {
				args = []string{"."}
			}
			paths, err := resolvePaths(args)
			if err != nil {
				return err
			}
			assets, err := s.inv.Query(paths, depth, compiled)
			if err != nil {
				return err
			}
			if len(assets) == 0 {
				return errNoMatches
			}

			rows := make([]*asset.Asset, 0, len(assets))
			for _, a := range assets {
				rows = append(rows, project(a, keys, s.repo.RelPath))
			}
			return writeAssets(cmd.OutOrStdout(), format, keys, rows)
		},
	}
	cmd.Flags().StringArrayVarP(&keys, "keys", "k", nil, "keys to print")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "KEY=VALUE filter; all must match")
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "maximum depth to descend (0 = unlimited)")
	cmd.Flags().StringVar(&format, "format", formatTable, "output format (table, json, yaml, toml)")
	return cmd
}

// defaultGetKeys returns the keys used in asset names followed by path.
func defaultGetKeys(cfg *config.Config) ([]string, error) {
	tmpl, ok := cfg.Get(config.KeyAssetFilename)
	if !ok {
		return []string{asset.KeyPath}, nil
	}
	keys, err := inventory.NameKeys(tmpl)
	if err != nil {
		return nil, err
	}
	return append(keys, asset.KeyPath), nil
}

// project keeps keys of a in the requested order, with path made relative.
func project(a *asset.Asset, keys []string, rel func(string) string) *asset.Asset {
	out := asset.New()
	for _, k := range keys {
		if k == asset.KeyPath {
			out.Set(k, rel(a.Path()))
			continue
		}
		if v, ok := a.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

func writeAssets(w io.Writer, format string, keys []string, rows []*asset.Asset) error {
	switch format {
	case formatJSON:
		list := make([]map[string]any, 0, len(rows))
		for _, r := range rows {
			list = append(list, r.Map())
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)

	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("failed to encode assets: %w", err)
		}
		return enc.Close()

	case formatTOML:
		list := make([]map[string]any, 0, len(rows))
		for _, r := range rows {
			list = append(list, withoutNil(r.Map()))
		}
		return toml.NewEncoder(w).Encode(map[string]any{"assets": list})
	}

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, len(keys))
		for i, k := range keys {
			if v, ok := r.Get(k); ok {
				row[i] = asset.Stringify(v)
			} else {
				row[i] = filter.Unset
			}
		}
		table = append(table, row)
	}
	ui.NewPrinter(w).Table(keys, table)
	return nil
}

// withoutNil drops null values, which TOML cannot represent.
func withoutNil(m map[string]any) map[string]any {
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			delete(m, k)
		case map[string]any:
			m[k] = withoutNil(t)
		}
	}
	return m
}

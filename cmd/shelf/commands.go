package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schaermu/shelf/internal/asset"
	"github.com/schaermu/shelf/internal/config"
	"github.com/schaermu/shelf/internal/git"
	"github.com/schaermu/shelf/internal/repo"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [DIR]",
		Short: "Initialize a new inventory",
		Long: `Init turns DIR (default: the working directory) into an inventory. A git
repository is created if needed, together with the .shelf metadata directory
holding the configuration and the "empty" template. The result is committed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupSignalHandler()
			defer cancel()
			logger := setupLogger()

			dir, err := baseDir()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				paths, err := resolvePaths(args)
				if err != nil {
					return err
				}
				dir = paths[0]
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}

			r, err := repo.Init(ctx, dir, git.NewShellClient(), logger)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Initialized shelf inventory in %s\n", r.Root())
			return nil
		},
	}
}

func newMkdirCmd() *cobra.Command {
	var flags txFlags
	cmd := &cobra.Command{
		Use:   "mkdir DIR...",
		Short: "Create directories",
		Long:  `Mkdir creates each DIR along with any missing parents.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			ctx, cancel := setupSignalHandler()
			defer cancel()

			s, err := openSession()
			if err != nil {
				return err
			}
			dirs, err := resolvePaths(args)
			if err != nil {
				return err
			}
			for _, d := range dirs {
				if err := s.inv.AddDirectory(d); err != nil {
					return err
				}
			}
			return finish(ctx, cmd, s.inv, &flags, subject(s.repo, "mkdir", dirs, ""))
		},
	}
	flags.register(cmd)
	return cmd
}

func newMvCmd() *cobra.Command {
	var flags txFlags
	cmd := &cobra.Command{
		Use:   "mv SOURCE... DEST",
		Short: "Move assets and directories, or rename a directory",
		Long: `Mv moves every SOURCE into the directory DEST.

With a single directory SOURCE and a DEST that does not exist yet but shares
the parent of SOURCE, the directory is renamed instead. Assets cannot be
renamed with mv; their names follow their content (see "shelf set").`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			ctx, cancel := setupSignalHandler()
			defer cancel()

			s, err := openSession()
			if err != nil {
				return err
			}
			paths, err := resolvePaths(args)
			if err != nil {
				return err
			}
			sources, dst := paths[:len(paths)-1], paths[len(paths)-1]
			store := s.inv.Store()

			if len(sources) == 1 && !store.Exists(dst) && filepath.Dir(sources[0]) == filepath.Dir(dst) {
				src := sources[0]
				if store.IsAssetPath(src) {
					return fmt.Errorf("cannot rename asset %s: names are generated from content", s.repo.RelPath(src))
				}
				if err := s.inv.RenameDirectory(src, dst); err != nil {
					return err
				}
				return finish(ctx, cmd, s.inv, &flags, subject(s.repo, "mv", sources, "-> "+s.repo.RelPath(dst)))
			}

			for _, src := range sources {
				switch {
				case store.IsAssetPath(src):
					err = s.inv.MoveAsset(src, dst)
				case store.IsInventoryDir(src):
					err = s.inv.MoveDirectory(src, dst)
				default:
					err = fmt.Errorf("%s is neither an asset nor an inventory directory", src)
				}
				if err != nil {
					return err
				}
			}
			return finish(ctx, cmd, s.inv, &flags, subject(s.repo, "mv", sources, "-> "+s.repo.RelPath(dst)))
		},
	}
	flags.register(cmd)
	return cmd
}

func newNewCmd() *cobra.Command {
	var (
		flags    txFlags
		template string
		keys     []string
	)
	cmd := &cobra.Command{
		Use:   "new [-t TEMPLATE] [-k KEY=VALUE]... [DIR]",
		Short: "Create new assets",
		Long: `New creates assets in DIR (default: the working directory).

Each asset starts from a template (-t, or the "template" key, or the configured
default) and is overlaid with the given keys. A key given once applies to every
asset; keys given several times create one asset per value. The reserved key
"directory" places an asset elsewhere, relative to DIR. A serial of "faux"
is replaced by a generated placeholder serial.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			ctx, cancel := setupSignalHandler()
			defer cancel()

			s, err := openSession()
			if err != nil {
				return err
			}
			dir, err := baseDir()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				paths, err := resolvePaths(args)
				if err != nil {
					return err
				}
				dir = paths[0]
			}

			pairs, err := parseKeyValues(keys)
			if err != nil {
				return err
			}
			for _, kv := range pairs {
				if s.repo.AssetKeys().IsPseudo(kv.key) {
					return fmt.Errorf("key %q cannot be set", kv.key)
				}
			}
			contents, err := contentsFromPairs(pairs)
			if err != nil {
				return err
			}

			assets, err := s.inv.PrepareAssets(dir, template, contents)
			if err != nil {
				return err
			}
			for _, a := range assets {
				if err := s.inv.AddAsset(a); err != nil {
					return err
				}
			}
			return finish(ctx, cmd, s.inv, &flags, subject(s.repo, "new", []string{dir}, ""))
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&template, "template", "t", "", "template to start from")
	cmd.Flags().StringArrayVarP(&keys, "keys", "k", nil, "KEY=VALUE to set; repeat a key to create several assets")
	return cmd
}

func newRmCmd() *cobra.Command {
	var flags txFlags
	cmd := &cobra.Command{
		Use:   "rm PATH...",
		Short: "Remove assets and directories",
		Long:  `Rm removes assets and directories, including everything they contain.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			ctx, cancel := setupSignalHandler()
			defer cancel()

			s, err := openSession()
			if err != nil {
				return err
			}
			paths, err := resolvePaths(args)
			if err != nil {
				return err
			}
			store := s.inv.Store()
			for _, p := range paths {
				switch {
				case store.IsAssetPath(p):
					err = s.inv.RemoveAsset(p)
				case store.IsInventoryDir(p):
					err = s.removeTree(p)
				default:
					err = fmt.Errorf("%s is neither an asset nor an inventory directory", p)
				}
				if err != nil {
					return err
				}
			}
			return finish(ctx, cmd, s.inv, &flags, subject(s.repo, "rm", paths, ""))
		},
	}
	flags.register(cmd)
	return cmd
}

// removeTree queues the removal of everything below dir, then dir itself.
func (s *session) removeTree(dir string) error {
	store := s.inv.Store()
	entries, err := store.DirEntries(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, name := range entries {
		p := filepath.Join(dir, name)
		switch {
		case store.IsAssetPath(p):
			err = s.inv.RemoveAsset(p)
		case store.IsInventoryDir(p):
			err = s.removeTree(p)
		default:
			err = fmt.Errorf("cannot remove %s: %s is not part of the inventory", s.repo.RelPath(dir), s.repo.RelPath(p))
		}
		if err != nil {
			return err
		}
	}
	return s.inv.RemoveDirectory(dir)
}

func newSetCmd() *cobra.Command {
	var (
		flags     txFlags
		keys      []string
		recursive bool
		depth     int
	)
	cmd := &cobra.Command{
		Use:   "set -k KEY=VALUE... PATH...",
		Short: "Set keys of assets",
		Long: `Set updates the given keys of every asset in PATH. When a key used in the
asset name changes, the asset is renamed as well. With -R, directories in PATH
are searched for assets (up to --depth levels, 0 meaning unlimited).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			if len(keys) == 0 {
				return errors.New("at least one KEY=VALUE is required")
			}
			if cmd.Flags().Changed("depth") && !recursive {
				return errors.New("--depth requires --recursive")
			}
			ctx, cancel := setupSignalHandler()
			defer cancel()

			s, err := openSession()
			if err != nil {
				return err
			}
			pairs, err := parseKeyValues(keys)
			if err != nil {
				return err
			}
			delta, err := deltaFromPairs(pairs, s.repo.AssetKeys())
			if err != nil {
				return err
			}
			paths, err := resolvePaths(args)
			if err != nil {
				return err
			}

			targets, err := s.collectAssets(paths, recursive, depth)
			if err != nil {
				return err
			}
			for _, p := range targets {
				if err := s.inv.ModifyAssetPath(p, delta); err != nil {
					return err
				}
			}
			suffix := "(" + strings.Join(delta.Keys(), ",") + ")"
			return finish(ctx, cmd, s.inv, &flags, subject(s.repo, "set", targets, suffix))
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVarP(&keys, "keys", "k", nil, "KEY=VALUE to set")
	cmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "descend into directories")
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "maximum depth with --recursive (0 = unlimited)")
	return cmd
}

// collectAssets resolves paths to asset paths. Directories are searched only
// when recursive is set.
func (s *session) collectAssets(paths []string, recursive bool, depth int) ([]string, error) {
	store := s.inv.Store()
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		switch {
		case store.IsAssetPath(p):
			add(p)
		case store.IsInventoryDir(p) && recursive:
			found, err := s.inv.Query([]string{p}, depth, nil)
			if err != nil {
				return nil, err
			}
			for _, a := range found {
				add(a.Path())
			}
		case store.IsInventoryDir(p):
			return nil, fmt.Errorf("%s is a directory (use --recursive)", s.repo.RelPath(p))
		default:
			return nil, fmt.Errorf("%s is not an asset", p)
		}
	}
	return out, nil
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat ASSET...",
		Short: "Print the contents of assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			paths, err := resolvePaths(args)
			if err != nil {
				return err
			}

			// Check every argument before printing anything.
			assets := make([]*asset.Asset, 0, len(paths))
			for _, p := range paths {
				a, err := s.inv.GetAsset(p)
				if err != nil {
					return err
				}
				assets = append(assets, a)
			}

			out := cmd.OutOrStdout()
			for _, a := range assets {
				data, err := asset.Marshal(a, s.repo.AssetKeys().NonPersisted())
				if err != nil {
					return err
				}
				if _, err := out.Write(data); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change the inventory configuration",
		Long: `Config reads and changes .shelf/config.yaml. Changes are committed.
Values can be overridden with SHELF_ environment variables, for example
SHELF_ASSETS_FILENAME for assets.filename.`,
	}

	var flags txFlags
	getCmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			v, ok := s.repo.GetConfig(args[0])
			if !ok {
				return fmt.Errorf("configuration key %q is not set", args[0])
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			cfg := s.repo.Config()
			if cfg == nil {
				return config.ErrNoConfig
			}
			for _, key := range cfg.Keys() {
				v, _ := cfg.Get(key)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, v)
			}
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editConfig(cmd, &flags, "set", args[0], func(cfg *config.Config) error {
				return cfg.Set(args[0], args[1])
			})
		},
	}
	flags.register(setCmd)

	var unsetFlags txFlags
	unsetCmd := &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editConfig(cmd, &unsetFlags, "unset", args[0], func(cfg *config.Config) error {
				return cfg.Unset(args[0])
			})
		},
	}
	unsetFlags.register(unsetCmd)

	cmd.AddCommand(getCmd, listCmd, setCmd, unsetCmd)
	return cmd
}

// editConfig applies fn to the configuration file and commits it.
func editConfig(cmd *cobra.Command, flags *txFlags, verb, key string, fn func(*config.Config) error) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	s, err := openSession()
	if err != nil {
		return err
	}
	cfg := s.repo.Config()
	if cfg == nil {
		return config.ErrNoConfig
	}
	if err := fn(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := config.Path(s.repo.Root())
	return s.repo.StageAndCommit(ctx, []string{path}, flags.message(fmt.Sprintf("config: %s %s", verb, key)))
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [PATH]",
		Short: "Show the history of an asset, a directory or the inventory",
		Long: `History prints the git log of PATH, following renames, or of the whole
inventory when no PATH is given. The command can be replaced with the
history.non_interactive configuration key.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupSignalHandler()
			defer cancel()

			s, err := openSession()
			if err != nil {
				return err
			}
			var target string
			if len(args) == 1 {
				paths, err := resolvePaths(args)
				if err != nil {
					return err
				}
				target = paths[0]
				if !s.inv.Store().IsInventoryPath(target) || !s.inv.Store().Exists(target) {
					return fmt.Errorf("%s is not in the inventory", args[0])
				}
			}

			command := config.DefaultHistoryCommand
			if v, ok := s.repo.GetConfig(config.KeyHistoryCommand); ok {
				command = v
			}

			if command == config.DefaultHistoryCommand || target == "" {
				log, err := s.repo.History(ctx, target)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprint(cmd.OutOrStdout(), log)
				return nil
			}

			fields := strings.Fields(command)
			if len(fields) == 0 {
				return fmt.Errorf("%s is empty", config.KeyHistoryCommand)
			}
			c := exec.CommandContext(ctx, fields[0], append(fields[1:], target)...)
			c.Dir = s.repo.Root()
			c.Stdout = cmd.OutOrStdout()
			c.Stderr = cmd.ErrOrStderr()
			if err := c.Run(); err != nil {
				return fmt.Errorf("history command failed: %w", err)
			}
			return nil
		},
	}
}

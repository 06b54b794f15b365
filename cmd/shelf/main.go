package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/schaermu/shelf/internal/git"
	"github.com/schaermu/shelf/internal/inventory"
	"github.com/schaermu/shelf/internal/repo"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	workDir   string
	logLevel  string
	logFormat string
	logFile   string

	// logSink is closed once the command has finished.
	logSink io.Closer
)

func main() {
	err := newRootCmd().Execute()
	if logSink != nil {
		_ = logSink.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shelf",
		Short: "Manage an inventory of assets in a git repository",
		Long: `shelf keeps an inventory of assets as plain text files in a git repository.

Every asset is a YAML file (or a directory holding one) whose name is generated
from its content. Directories are locations. Each change is previewed, confirmed
and committed with a message listing the inventory operations it performed.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "run as if shelf was started in this directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file (rotated) instead of stderr")

	rootCmd.AddCommand(
		newInitCmd(),
		newMkdirCmd(),
		newMvCmd(),
		newNewCmd(),
		newRmCmd(),
		newSetCmd(),
		newGetCmd(),
		newCatCmd(),
		newConfigCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "shelf %s\n", version)
			_, _ = fmt.Fprintf(out, "  commit: %s\n", commit)
			_, _ = fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	var out io.Writer = os.Stderr
	if logFile != "" {
		sink := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		logSink = sink
		out = sink
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// baseDir returns the absolute directory commands run in.
func baseDir() (string, error) {
	dir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", workDir, err)
	}
	return dir, nil
}

// resolvePaths turns command line paths into absolute ones.
func resolvePaths(args []string) ([]string, error) {
	base, err := baseDir()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		if filepath.IsAbs(a) {
			out = append(out, filepath.Clean(a))
		} else {
			out = append(out, filepath.Join(base, a))
		}
	}
	return out, nil
}

// session is an opened inventory for the duration of one command.
type session struct {
	repo   *repo.Repo
	inv    *inventory.Inventory
	logger *slog.Logger
}

func openSession() (*session, error) {
	logger := setupLogger()

	dir, err := baseDir()
	if err != nil {
		return nil, err
	}
	r, err := repo.Open(dir, git.NewShellClient(), logger)
	if err != nil {
		return nil, err
	}
	return &session{repo: r, inv: inventory.New(r, logger), logger: logger}, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schaermu/shelf/internal/inventory"
	"github.com/schaermu/shelf/internal/repo"
	"github.com/schaermu/shelf/internal/ui"
)

const savePrompt = "Save changes? No discards all changes."

// txFlags are shared by every command that changes the inventory.
type txFlags struct {
	yes      bool
	quiet    bool
	messages []string
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "commit without asking for confirmation")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print the preview (requires --yes)")
	cmd.Flags().StringArrayVarP(&f.messages, "message", "m", nil, "commit message; repeat for further paragraphs")
}

func (f *txFlags) validate() error {
	if f.quiet && !f.yes {
		return errors.New("--quiet requires --yes")
	}
	return nil
}

// message joins the given paragraphs, falling back to subject.
func (f *txFlags) message(subject string) string {
	if len(f.messages) == 0 {
		return subject
	}
	return strings.Join(f.messages, "\n\n")
}

// finish previews the queued operations, asks for confirmation and commits.
// Declining discards the queue.
func finish(ctx context.Context, cmd *cobra.Command, inv *inventory.Inventory, flags *txFlags, subject string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	if !inv.OperationsPending() {
		if !flags.quiet {
			p.Println("No changes to commit.")
		}
		return nil
	}

	if !flags.quiet {
		p.Diff(inv.Diff())
	}

	if !flags.yes {
		ok, err := ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), savePrompt)
		if err != nil && !errors.Is(err, ui.ErrAborted) {
			return err
		}
		if !ok {
			inv.Reset()
			p.Println("No changes made.")
			return nil
		}
	}

	return inv.Commit(ctx, flags.message(subject))
}

// subject builds a default commit subject such as "rm [2]: a, b".
func subject(r *repo.Repo, verb string, paths []string, suffix string) string {
	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rels = append(rels, r.RelPath(p))
	}
	s := fmt.Sprintf("%s [%d]: %s", verb, len(paths), strings.Join(rels, ", "))
	if suffix != "" {
		s += " " + suffix
	}
	return s
}

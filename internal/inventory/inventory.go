// Package inventory stages structural changes to an inventory and commits
// them as a single revision.
//
// Intent methods (AddAsset, MoveDirectory, ...) validate against the Store and
// append one or more operations to a queue. Nothing touches the store until
// Commit, which executes the queue in order, builds a structured commit
// message and asks the store for one atomic stage-and-commit. Diff previews
// the queue without side effects. An Inventory is meant for a single
// transaction and is not safe for concurrent use.
package inventory

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

// operationsHeader separates the user message from the generated record.
const operationsHeader = "--- Inventory Operations ---\n"

// Inventory owns the queue of pending operations for one transaction.
type Inventory struct {
	store  Store
	logger *slog.Logger
	ops    []Operation
}

// New creates an Inventory over store with an empty queue.
func New(store Store, logger *slog.Logger) *Inventory {
	return &Inventory{
		store:  store,
		logger: logger,
	}
}

// Store returns the backing store.
func (inv *Inventory) Store() Store {
	return inv.store
}

// Operations returns a copy of the queue.
func (inv *Inventory) Operations() []Operation {
	out := make([]Operation, len(inv.ops))
	copy(out, inv.ops)
	return out
}

// OperationsPending reports whether anything is queued.
func (inv *Inventory) OperationsPending() bool {
	return len(inv.ops) > 0
}

// Reset discards every pending operation.
func (inv *Inventory) Reset() {
	inv.ops = nil
}

// Diff yields preview lines for the queue in order. It never mutates the
// store or the queue and may be called any number of times.
func (inv *Inventory) Diff() iter.Seq[string] {
	ops := inv.Operations()
	return func(yield func(string) bool) {
		for _, op := range ops {
			for _, line := range op.diff(inv.store) {
				if !yield(line) {
					return
				}
			}
		}
	}
}

// Commit executes the queue in order and records all touched paths in one
// revision. The message gets a generated section listing every operation.
// An empty queue is a no-op.
//
// If an operation fails, changes made by earlier operations stay on disk,
// nothing is committed and the queue is left intact for inspection.
func (inv *Inventory) Commit(ctx context.Context, message string) error {
	if len(inv.ops) == 0 {
		inv.logger.Debug("nothing to commit")
		return nil
	}

	inv.logger.Info("executing operations", "count", len(inv.ops))

	var (
		paths []string
		seen  = make(map[string]bool)
		rec   = newRecord()
	)
	for _, op := range inv.ops {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrExecution, err)
		}

		inv.logger.Debug("executing", "operation", op.String())
		touched, err := op.execute(inv.store)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrExecution, op, err)
		}
		for _, p := range touched {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
		rec.add(op.Kind().Title(), op.record(inv.store))
	}

	msg := message + "\n\n" + operationsHeader + rec.String()
	if err := inv.store.StageAndCommit(ctx, paths, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrExecution, err)
	}

	inv.logger.Info("committed operations", "count", len(inv.ops), "paths", len(paths))
	inv.Reset()
	return nil
}

// record collects snippets per title in first-seen order, dropping exact
// duplicates within a title.
type record struct {
	titles   []string
	snippets map[string][]string
	seen     map[string]map[string]bool
}

func newRecord() *record {
	return &record{
		snippets: make(map[string][]string),
		seen:     make(map[string]map[string]bool),
	}
}

func (r *record) add(title, snippet string) {
	if _, ok := r.seen[title]; !ok {
		r.titles = append(r.titles, title)
		r.seen[title] = make(map[string]bool)
	}
	if r.seen[title][snippet] {
		return
	}
	r.seen[title][snippet] = true
	r.snippets[title] = append(r.snippets[title], snippet)
}

func (r *record) String() string {
	var b strings.Builder
	for _, title := range r.titles {
		b.WriteString(title)
		for _, s := range r.snippets[title] {
			b.WriteString(s)
		}
	}
	return b.String()
}

// enqueue appends op to the queue.
func (inv *Inventory) enqueue(op Operation) {
	inv.logger.Debug("queued operation", "operation", op.String())
	inv.ops = append(inv.ops, op)
}

// atomically runs an intent and restores the queue if it fails, so a failed
// intent never leaves prerequisite operations behind.
func (inv *Inventory) atomically(fn func() error) error {
	mark := len(inv.ops)
	if err := fn(); err != nil {
		inv.ops = inv.ops[:mark]
		return err
	}
	return nil
}

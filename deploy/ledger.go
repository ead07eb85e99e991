package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/wsctl/audit"
)

// ResourceKind labels what a ledger entry created.
type ResourceKind string

const (
	ResourceWorkspace     ResourceKind = "workspace"
	ResourceFolder        ResourceKind = "folder"
	ResourceItem          ResourceKind = "item"
	ResourceGrant         ResourceKind = "grant"
	ResourceGitConnection ResourceKind = "git-connection"
)

// LedgerEntry records one confirmed remote creation together with the action
// that reverses it. Entries are appended only after the remote call that
// created the resource succeeded.
type LedgerEntry struct {
	ID         string       `json:"id"`
	Kind       ResourceKind `json:"kind"`
	ResourceID string       `json:"resourceId"`
	Name       string       `json:"name"`
	CreatedAt  time.Time    `json:"createdAt"`

	// Undo reverses the creation. It must be safe to call at most once.
	Undo func(ctx context.Context) error `json:"-"`
}

// Ledger is the append-only record of a single run's creations. Appends from
// concurrent item provisioning are synchronized here; the ledger is never
// shared across runs.
type Ledger struct {
	mu      sync.Mutex
	entries []LedgerEntry
	now     func() time.Time
}

// NewLedger creates an empty ledger for one run.
func NewLedger() *Ledger {
	return &Ledger{now: time.Now}
}

// Record appends an entry for a confirmed creation and returns it with its
// assigned ID and timestamp.
func (l *Ledger) Record(kind ResourceKind, resourceID, name string, undo func(ctx context.Context) error) LedgerEntry {
	entry := LedgerEntry{
		ID:         uuid.NewString(),
		Kind:       kind,
		ResourceID: resourceID,
		Name:       name,
		CreatedAt:  l.now(),
		Undo:       undo,
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return entry
}

// Entries returns a snapshot of the ledger in append order.
func (l *Ledger) Entries() []LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// UndoStatus classifies the outcome of undoing one ledger entry.
type UndoStatus string

const (
	UndoDone   UndoStatus = "Undone"
	UndoFailed UndoStatus = "UndoFailed"
)

// UndoOutcome is the per-entry result of a rollback pass.
type UndoOutcome struct {
	EntryID    string       `json:"entryId"`
	Kind       ResourceKind `json:"kind"`
	ResourceID string       `json:"resourceId"`
	Name       string       `json:"name"`
	Status     UndoStatus   `json:"status"`
	Reason     string       `json:"reason,omitempty"`
}

// RollbackReport summarizes a best-effort rollback: which resources were
// undone and which remain orphaned for manual cleanup.
type RollbackReport struct {
	Attempted int           `json:"attempted"`
	Undone    int           `json:"undone"`
	Failed    int           `json:"failed"`
	Outcomes  []UndoOutcome `json:"outcomes"`
}

// Partial reports whether any entry could not be undone.
func (r *RollbackReport) Partial() bool { return r.Failed > 0 }

// Orphaned lists the resources left behind after a partial rollback.
func (r *RollbackReport) Orphaned() []UndoOutcome {
	var out []UndoOutcome
	for _, o := range r.Outcomes {
		if o.Status == UndoFailed {
			out = append(out, o)
		}
	}
	return out
}

// RollbackCoordinator consumes a ledger in reverse append order, undoing
// every entry it can. A failure to undo one entry never prevents attempting
// the next; the report carries whatever was left behind.
type RollbackCoordinator struct {
	ledger *Ledger
	sink   audit.Sink
	logger *slog.Logger
}

// NewRollbackCoordinator creates a coordinator for the given ledger.
func NewRollbackCoordinator(ledger *Ledger, sink audit.Sink, logger *slog.Logger) *RollbackCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = audit.Nop()
	}
	return &RollbackCoordinator{ledger: ledger, sink: sink, logger: logger}
}

// Rollback undoes every ledger entry in reverse append order (LIFO) and
// returns a report. It never returns an error: partial failure is a report
// condition, not an abort.
func (c *RollbackCoordinator) Rollback(ctx context.Context, runID string) *RollbackReport {
	entries := c.ledger.Entries()
	report := &RollbackReport{Attempted: len(entries)}

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		outcome := UndoOutcome{
			EntryID:    entry.ID,
			Kind:       entry.Kind,
			ResourceID: entry.ResourceID,
			Name:       entry.Name,
		}

		err := c.undo(ctx, entry)
		if err != nil {
			outcome.Status = UndoFailed
			outcome.Reason = err.Error()
			report.Failed++
			c.logger.Error("rollback: undo failed",
				"kind", entry.Kind, "resource", entry.ResourceID, "name", entry.Name, "error", err)
		} else {
			outcome.Status = UndoDone
			report.Undone++
			c.logger.Info("rollback: resource undone",
				"kind", entry.Kind, "resource", entry.ResourceID, "name", entry.Name)
		}

		c.sink.Record(audit.Event{
			Kind:     "rollback.entry",
			RunID:    runID,
			Resource: string(entry.Kind) + "/" + entry.Name,
			Detail:   map[string]string{"status": string(outcome.Status)},
		})
		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report
}

func (c *RollbackCoordinator) undo(ctx context.Context, entry LedgerEntry) error {
	if entry.Undo == nil {
		return fmt.Errorf("ledger entry %s has no undo action", entry.ID)
	}
	return entry.Undo(ctx)
}

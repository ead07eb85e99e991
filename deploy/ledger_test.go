package deploy

import (
	"context"
	"fmt"
	"testing"
)

func TestLedgerRecordsInOrder(t *testing.T) {
	ledger := NewLedger()
	ledger.Record(ResourceWorkspace, "ws-1", "W", nil)
	ledger.Record(ResourceFolder, "folder-1", "Bronze", nil)
	ledger.Record(ResourceItem, "item-1", "raw", nil)

	entries := ledger.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantKinds := []ResourceKind{ResourceWorkspace, ResourceFolder, ResourceItem}
	for i, kind := range wantKinds {
		if entries[i].Kind != kind {
			t.Errorf("entry %d: expected kind %s, got %s", i, kind, entries[i].Kind)
		}
		if entries[i].ID == "" {
			t.Errorf("entry %d: missing id", i)
		}
	}
}

func TestRollbackReverseOrder(t *testing.T) {
	ledger := NewLedger()
	var order []string
	undo := func(name string) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	ledger.Record(ResourceWorkspace, "ws-1", "A", undo("A"))
	ledger.Record(ResourceFolder, "folder-1", "B", undo("B"))
	ledger.Record(ResourceItem, "item-1", "C", undo("C"))

	coordinator := NewRollbackCoordinator(ledger, nil, testLogger())
	report := coordinator.Rollback(context.Background(), "run-1")

	if report.Attempted != 3 || report.Undone != 3 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	want := []string{"C", "B", "A"}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("undo order[%d]: expected %s, got %s", i, name, order[i])
		}
	}
}

func TestRollbackBestEffort(t *testing.T) {
	ledger := NewLedger()
	var order []string
	ledger.Record(ResourceWorkspace, "ws-1", "A", func(context.Context) error {
		order = append(order, "A")
		return nil
	})
	ledger.Record(ResourceFolder, "folder-1", "B", func(context.Context) error {
		return fmt.Errorf("folder is locked")
	})
	ledger.Record(ResourceItem, "item-1", "C", func(context.Context) error {
		order = append(order, "C")
		return nil
	})

	coordinator := NewRollbackCoordinator(ledger, nil, testLogger())
	report := coordinator.Rollback(context.Background(), "run-1")

	// B's failure must not stop A from being attempted.
	if report.Undone != 2 || report.Failed != 1 {
		t.Fatalf("expected 2 undone and 1 failed, got %+v", report)
	}
	if len(order) != 2 || order[0] != "C" || order[1] != "A" {
		t.Errorf("unexpected undo order: %v", order)
	}
	orphans := report.Orphaned()
	if len(orphans) != 1 || orphans[0].Name != "B" {
		t.Errorf("expected B orphaned, got %+v", orphans)
	}
	if !report.Partial() {
		t.Error("report should be partial")
	}
}

func TestRollbackEntryWithoutUndo(t *testing.T) {
	ledger := NewLedger()
	ledger.Record(ResourceItem, "item-1", "raw", nil)

	coordinator := NewRollbackCoordinator(ledger, nil, testLogger())
	report := coordinator.Rollback(context.Background(), "run-1")
	if report.Failed != 1 {
		t.Fatalf("entry without undo should fail, got %+v", report)
	}
}

package orchestrate

import (
	"context"
	"testing"
	"time"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/gatecheck"
	"github.com/workgraph/workctl/internal/idgen"
	"github.com/workgraph/workctl/internal/store/sqlite"
)

// newTestOrchestrator opens a fresh in-memory sqlite store per test, so
// scenarios never share state.
func newTestOrchestrator(t *testing.T, schemaService gatecheck.NoteSchemaService) (*Orchestrator, func()) {
	t.Helper()
	st, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	return New(st, schemaService), func() { _ = st.Close() }
}

func mustCreateItem(t *testing.T, o *Orchestrator, title string, parentID *string, role domain.Role, opts ...func(*domain.WorkItem)) *domain.WorkItem {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	depth := 0
	if parentID != nil {
		ctx := context.Background()
		tx, err := o.Store.BeginTx(ctx)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}
		parent, err := o.Store.GetItem(ctx, tx, *parentID)
		_ = tx.Rollback()
		if err != nil {
			t.Fatalf("get parent: %v", err)
		}
		depth = parent.Depth + 1
	}
	item := &domain.WorkItem{
		ID:         idgen.New(),
		ParentID:   parentID,
		Title:      title,
		Priority:   domain.PriorityMedium,
		Complexity: 1,
		Role:       role,
		Depth:      depth,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	for _, opt := range opts {
		opt(item)
	}
	ctx := context.Background()
	tx, err := o.Store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := o.Store.CreateItem(ctx, tx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return item
}

func mustLink(t *testing.T, o *Orchestrator, fromID, toID string, typ domain.DependencyType, unblockAt *domain.Role) {
	t.Helper()
	ctx := context.Background()
	tx, err := o.Store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	dep := &domain.Dependency{
		ID:         idgen.New(),
		FromItemID: fromID,
		ToItemID:   toID,
		Type:       typ,
		UnblockAt:  unblockAt,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := o.Store.CreateDependency(ctx, tx, dep); err != nil {
		t.Fatalf("create dependency: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func currentRole(t *testing.T, o *Orchestrator, id string) domain.Role {
	t.Helper()
	ctx := context.Background()
	tx, err := o.Store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	item, err := o.Store.GetItem(ctx, tx, id)
	_ = tx.Rollback()
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	return item.Role
}

// Scenario A — linear chain (spec.md §8).
func TestScenarioALinearChain(t *testing.T) {
	o, closeFn := newTestOrchestrator(t, nil)
	defer closeFn()
	ctx := context.Background()

	a := mustCreateItem(t, o, "A", nil, domain.RoleQueue)
	b := mustCreateItem(t, o, "B", nil, domain.RoleQueue)
	c := mustCreateItem(t, o, "C", nil, domain.RoleQueue)
	mustLink(t, o, a.ID, b.ID, domain.DepBlocks, nil)
	mustLink(t, o, b.ID, c.ID, domain.DepBlocks, nil)

	out, err := o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: b.ID, Trigger: domain.TriggerStart}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Results[0].Applied {
		t.Fatal("starting B while A is not terminal must fail")
	}
	if len(out.Results[0].Blockers) != 1 || out.Results[0].Blockers[0].BlockerID != a.ID {
		t.Fatalf("expected A listed as blocker, got %+v", out.Results[0].Blockers)
	}

	out, err = o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: a.ID, Trigger: domain.TriggerStart}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Results[0].Applied || out.Results[0].NewRole != domain.RoleWork {
		t.Fatalf("expected A to advance to work, got %+v", out.Results[0])
	}
	if len(out.AllUnblockedItems) != 0 {
		t.Fatalf("work does not meet terminal threshold, expected no unblocked items, got %+v", out.AllUnblockedItems)
	}

	out, err = o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: a.ID, Trigger: domain.TriggerComplete}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if currentRole(t, o, a.ID) != domain.RoleTerminal {
		t.Fatal("A must be terminal")
	}
	if len(out.AllUnblockedItems) != 1 || out.AllUnblockedItems[0].ItemID != b.ID {
		t.Fatalf("expected B unblocked, got %+v", out.AllUnblockedItems)
	}

	out, err = o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: b.ID, Trigger: domain.TriggerComplete}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if currentRole(t, o, b.ID) != domain.RoleTerminal {
		t.Fatal("B must be terminal")
	}
	if len(out.AllUnblockedItems) != 1 || out.AllUnblockedItems[0].ItemID != c.ID {
		t.Fatalf("expected C unblocked, got %+v", out.AllUnblockedItems)
	}
}

// Scenario B — multi-level cascade (spec.md §8).
func TestScenarioBMultiLevelCascade(t *testing.T) {
	o, closeFn := newTestOrchestrator(t, nil)
	defer closeFn()
	ctx := context.Background()

	g := mustCreateItem(t, o, "G", nil, domain.RoleWork)
	gID := g.ID
	p := mustCreateItem(t, o, "P", &gID, domain.RoleWork)
	pID := p.ID
	c1 := mustCreateItem(t, o, "C1", &pID, domain.RoleWork)
	c2 := mustCreateItem(t, o, "C2", &pID, domain.RoleWork)

	out, err := o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: c1.ID, Trigger: domain.TriggerComplete}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if currentRole(t, o, c1.ID) != domain.RoleTerminal {
		t.Fatal("C1 must be terminal")
	}
	if len(out.Results[0].CascadeEvents) != 0 {
		t.Fatalf("C2 still work, no cascade expected, got %+v", out.Results[0].CascadeEvents)
	}
	if currentRole(t, o, p.ID) == domain.RoleTerminal {
		t.Fatal("parent must not have cascaded yet")
	}

	out, err = o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: c2.ID, Trigger: domain.TriggerComplete}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if currentRole(t, o, c2.ID) != domain.RoleTerminal {
		t.Fatal("C2 must be terminal")
	}
	events := out.Results[0].CascadeEvents
	if len(events) != 2 {
		t.Fatalf("expected two cascade events (parent, grandparent), got %+v", events)
	}
	if events[0].ItemID != p.ID || events[1].ItemID != g.ID {
		t.Fatalf("expected cascade order [P, G], got %+v", events)
	}
	if currentRole(t, o, p.ID) != domain.RoleTerminal || currentRole(t, o, g.ID) != domain.RoleTerminal {
		t.Fatal("both P and G must have cascaded to terminal")
	}
}

// Scenario C — early unblock threshold (spec.md §8).
func TestScenarioCEarlyUnblockThreshold(t *testing.T) {
	o, closeFn := newTestOrchestrator(t, nil)
	defer closeFn()
	ctx := context.Background()

	a := mustCreateItem(t, o, "A", nil, domain.RoleQueue)
	b := mustCreateItem(t, o, "B", nil, domain.RoleQueue)
	work := domain.RoleWork
	mustLink(t, o, a.ID, b.ID, domain.DepBlocks, &work)

	out, err := o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: b.ID, Trigger: domain.TriggerStart}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Results[0].Applied {
		t.Fatal("B must not start before A reaches work")
	}

	out, err = o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: a.ID, Trigger: domain.TriggerStart}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if currentRole(t, o, a.ID) != domain.RoleWork {
		t.Fatal("A must be work")
	}

	out, err = o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: b.ID, Trigger: domain.TriggerStart}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Results[0].Applied || currentRole(t, o, b.ID) != domain.RoleWork {
		t.Fatalf("B must now start, got %+v", out.Results[0])
	}
}

// Scenario D — block/resume round trip (spec.md §8).
func TestScenarioDBlockResume(t *testing.T) {
	o, closeFn := newTestOrchestrator(t, nil)
	defer closeFn()
	ctx := context.Background()

	a := mustCreateItem(t, o, "A", nil, domain.RoleWork)

	out, err := o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: a.ID, Trigger: domain.TriggerBlock}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Results[0].Applied || currentRole(t, o, a.ID) != domain.RoleBlocked {
		t.Fatalf("A must be blocked, got %+v", out.Results[0])
	}

	out, err = o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: a.ID, Trigger: domain.TriggerResume}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Results[0].Applied || currentRole(t, o, a.ID) != domain.RoleWork {
		t.Fatalf("A must resume to work, got %+v", out.Results[0])
	}
}

// Scenario E — gate failure on TERMINAL (spec.md §8).
func TestScenarioEGateFailureOnTerminal(t *testing.T) {
	schema := gatecheck.NewStaticSchemaService(map[string][]gatecheck.Requirement{
		"feature-task": {{Key: "acceptance-criteria", Role: domain.RoleQueue, Required: true}},
	})
	o, closeFn := newTestOrchestrator(t, schema)
	defer closeFn()
	ctx := context.Background()

	a := mustCreateItem(t, o, "A", nil, domain.RoleWork, func(w *domain.WorkItem) {
		w.Tags = []string{"feature-task"}
	})

	out, err := o.AdvanceItems(ctx, []AdvanceRequest{{ItemID: a.ID, Trigger: domain.TriggerComplete}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Results[0].Applied {
		t.Fatal("completing A without the required note must fail")
	}
	if len(out.Results[0].GateErrors) != 1 || out.Results[0].GateErrors[0] != "acceptance-criteria" {
		t.Fatalf("expected missing=[acceptance-criteria], got %+v", out.Results[0].GateErrors)
	}
	if currentRole(t, o, a.ID) != domain.RoleWork {
		t.Fatal("a failed gate-check must leave the item's role unchanged")
	}
}

// Scenario F — complete_tree with a gated middle item (spec.md §8).
func TestScenarioFCompleteTreeGatedMiddle(t *testing.T) {
	schema := gatecheck.NewStaticSchemaService(map[string][]gatecheck.Requirement{
		"feature-task": {{Key: "acceptance-criteria", Role: domain.RoleQueue, Required: true}},
	})
	o, closeFn := newTestOrchestrator(t, schema)
	defer closeFn()
	ctx := context.Background()

	a := mustCreateItem(t, o, "A", nil, domain.RoleWork)
	b := mustCreateItem(t, o, "B", nil, domain.RoleWork, func(w *domain.WorkItem) {
		w.Tags = []string{"feature-task"}
	})
	c := mustCreateItem(t, o, "C", nil, domain.RoleWork)
	mustLink(t, o, a.ID, b.ID, domain.DepBlocks, nil)
	mustLink(t, o, b.ID, c.ID, domain.DepBlocks, nil)

	out, err := o.CompleteTree(ctx, CompleteTreeRequest{
		ItemIDs: []string{a.ID, b.ID, c.ID},
		Trigger: domain.TriggerComplete,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Summary.Total != 3 || out.Summary.Completed != 1 || out.Summary.GateFailures != 1 || out.Summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want {total:3 completed:1 gateFailures:1 skipped:1}", out.Summary)
	}
	if currentRole(t, o, a.ID) != domain.RoleTerminal {
		t.Error("A must have completed")
	}
	if currentRole(t, o, b.ID) != domain.RoleWork {
		t.Error("B must be left unchanged by its gate failure")
	}
	if currentRole(t, o, c.ID) != domain.RoleWork {
		t.Error("C must be skipped, unchanged, since B did not complete")
	}

	byID := make(map[string]CompleteTreeResult, len(out.Results))
	for _, r := range out.Results {
		byID[r.ItemID] = r
	}
	if !byID[a.ID].Applied {
		t.Error("A result must be applied")
	}
	if len(byID[b.ID].GateErrors) != 1 || byID[b.ID].GateErrors[0] != "acceptance-criteria" {
		t.Errorf("B result gate errors = %+v", byID[b.ID].GateErrors)
	}
	if !byID[c.ID].Skipped {
		t.Error("C result must be marked skipped")
	}
}

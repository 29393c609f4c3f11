package advisory

import (
	"context"
	"testing"
	"time"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/idgen"
	"github.com/workgraph/workctl/internal/store/sqlite"
)

func newTestService(t *testing.T, staleAfter time.Duration) (*Service, func()) {
	t.Helper()
	st, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	return New(st, nil, staleAfter), func() { _ = st.Close() }
}

func mustCreateItem(t *testing.T, s *Service, title string, role domain.Role, opts ...func(*domain.WorkItem)) *domain.WorkItem {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	item := &domain.WorkItem{
		ID:         idgen.New(),
		Title:      title,
		Priority:   domain.PriorityMedium,
		Complexity: 1,
		Role:       role,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	for _, opt := range opts {
		opt(item)
	}
	ctx := context.Background()
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := s.Store.CreateItem(ctx, tx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return item
}

func mustLink(t *testing.T, s *Service, fromID, toID string, typ domain.DependencyType) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	dep := &domain.Dependency{
		ID: idgen.New(), FromItemID: fromID, ToItemID: toID, Type: typ,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.Store.CreateDependency(ctx, tx, dep); err != nil {
		t.Fatalf("create dependency: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func mustTransition(t *testing.T, s *Service, itemID string, from, to domain.Role, at time.Time) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	rt := &domain.RoleTransition{
		ID: idgen.New(), ItemID: itemID, Trigger: string(domain.TriggerStart),
		FromRole: from, ToRole: to, TransitionedAt: at,
	}
	if err := s.Store.InsertRoleTransition(ctx, tx, rt); err != nil {
		t.Fatalf("insert role transition: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestGetBlockedItemsReportsExplicitlyBlockedAndUnsatisfiedBlockers(t *testing.T) {
	s, closeFn := newTestService(t, 0)
	defer closeFn()
	ctx := context.Background()

	blocker := mustCreateItem(t, s, "blocker", domain.RoleQueue)
	blocked := mustCreateItem(t, s, "blocked", domain.RoleQueue)
	mustLink(t, s, blocker.ID, blocked.ID, domain.DepBlocks)
	explicit := mustCreateItem(t, s, "explicit", domain.RoleBlocked)
	free := mustCreateItem(t, s, "free", domain.RoleQueue)

	out, err := s.GetBlockedItems(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotIDs := map[string]bool{}
	for _, b := range out {
		gotIDs[b.Item.ID] = true
	}
	if !gotIDs[blocked.ID] {
		t.Error("blocked item with unsatisfied incoming blocker must be reported")
	}
	if !gotIDs[explicit.ID] {
		t.Error("explicitly BLOCKED item must be reported")
	}
	if gotIDs[free.ID] {
		t.Error("unblocked item must not be reported")
	}
}

func TestGetNextItemSortsByPriorityThenComplexityThenAge(t *testing.T) {
	s, closeFn := newTestService(t, 0)
	defer closeFn()
	ctx := context.Background()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	low := mustCreateItem(t, s, "low-priority", domain.RoleQueue, func(w *domain.WorkItem) { w.Priority = domain.PriorityLow })
	highComplex := mustCreateItem(t, s, "high-complex", domain.RoleQueue, func(w *domain.WorkItem) {
		w.Priority = domain.PriorityHigh
		w.Complexity = 8
	})
	highSimpleOlder := mustCreateItem(t, s, "high-simple-older", domain.RoleQueue, func(w *domain.WorkItem) {
		w.Priority = domain.PriorityHigh
		w.Complexity = 2
		w.CreatedAt = older
	})
	highSimpleNewer := mustCreateItem(t, s, "high-simple-newer", domain.RoleQueue, func(w *domain.WorkItem) {
		w.Priority = domain.PriorityHigh
		w.Complexity = 2
		w.CreatedAt = newer
	})
	_ = low

	out, err := s.GetNextItem(ctx, nil, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("expected all 4 candidates, got %d", len(out))
	}
	want := []string{highSimpleOlder.ID, highSimpleNewer.ID, highComplex.ID, low.ID}
	for i, id := range want {
		if out[i].Item.ID != id {
			t.Errorf("position %d = %s, want %s", i, out[i].Item.ID, id)
		}
	}
}

func TestGetNextItemExcludesBlockedAndTerminal(t *testing.T) {
	s, closeFn := newTestService(t, 0)
	defer closeFn()
	ctx := context.Background()

	blocker := mustCreateItem(t, s, "blocker", domain.RoleQueue)
	blocked := mustCreateItem(t, s, "blocked", domain.RoleQueue)
	mustLink(t, s, blocker.ID, blocked.ID, domain.DepBlocks)
	done := mustCreateItem(t, s, "done", domain.RoleTerminal)
	explicitlyBlocked := mustCreateItem(t, s, "explicit", domain.RoleBlocked)

	out, err := s.GetNextItem(ctx, nil, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range out {
		if r.Item.ID == blocked.ID || r.Item.ID == done.ID || r.Item.ID == explicitlyBlocked.ID {
			t.Errorf("item %s must not be recommended", r.Item.ID)
		}
	}
}

func TestGetNextItemRespectsLimit(t *testing.T) {
	s, closeFn := newTestService(t, 0)
	defer closeFn()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		mustCreateItem(t, s, "item", domain.RoleQueue)
	}
	out, err := s.GetNextItem(ctx, nil, nil, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(out))
	}
}

func TestGetNextStatusReadyItemRecommendsStartTrigger(t *testing.T) {
	s, closeFn := newTestService(t, 0)
	defer closeFn()
	ctx := context.Background()
	item := mustCreateItem(t, s, "ready", domain.RoleQueue)

	out, err := s.GetNextStatus(ctx, item.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Recommendation != RecommendationReady {
		t.Errorf("recommendation = %q, want Ready", out.Recommendation)
	}
	if out.Trigger == nil || *out.Trigger != domain.TriggerStart {
		t.Errorf("trigger = %v, want start", out.Trigger)
	}
	if out.NextRole == nil || *out.NextRole != domain.RoleWork {
		t.Errorf("nextRole = %v, want work", out.NextRole)
	}
}

func TestGetNextStatusBlockedItemRecommendsResume(t *testing.T) {
	s, closeFn := newTestService(t, 0)
	defer closeFn()
	ctx := context.Background()
	prev := domain.RoleWork
	item := mustCreateItem(t, s, "blocked", domain.RoleBlocked, func(w *domain.WorkItem) { w.PreviousRole = &prev })

	out, err := s.GetNextStatus(ctx, item.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Recommendation != RecommendationBlocked {
		t.Errorf("recommendation = %q, want Blocked", out.Recommendation)
	}
	if out.Trigger == nil || *out.Trigger != domain.TriggerResume {
		t.Errorf("trigger = %v, want resume", out.Trigger)
	}
	if out.NextRole == nil || *out.NextRole != domain.RoleWork {
		t.Errorf("nextRole = %v, want the restored previousRole", out.NextRole)
	}
}

func TestGetNextStatusTerminalItem(t *testing.T) {
	s, closeFn := newTestService(t, 0)
	defer closeFn()
	ctx := context.Background()
	item := mustCreateItem(t, s, "done", domain.RoleTerminal)

	out, err := s.GetNextStatus(ctx, item.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Recommendation != RecommendationTerminal {
		t.Errorf("recommendation = %q, want Terminal", out.Recommendation)
	}
	if out.NextRole != nil {
		t.Error("a terminal item has no next role")
	}
}

func TestGetNextStatusReportsChildProgress(t *testing.T) {
	s, closeFn := newTestService(t, 0)
	defer closeFn()
	ctx := context.Background()
	parent := mustCreateItem(t, s, "parent", domain.RoleWork)
	parentID := parent.ID
	mustCreateItem(t, s, "child-done", domain.RoleTerminal, func(w *domain.WorkItem) { w.ParentID = &parentID })
	mustCreateItem(t, s, "child-pending", domain.RoleWork, func(w *domain.WorkItem) { w.ParentID = &parentID })

	out, err := s.GetNextStatus(ctx, parent.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ChildProgress == nil || out.ChildProgress.Total != 2 || out.ChildProgress.Terminal != 1 {
		t.Fatalf("childProgress = %+v, want {total:2 terminal:1}", out.ChildProgress)
	}
}

func TestGetContextItemModeIncludesGateStatus(t *testing.T) {
	s, closeFn := newTestService(t, 0)
	defer closeFn()
	ctx := context.Background()
	item := mustCreateItem(t, s, "item", domain.RoleQueue)

	out, err := s.GetContext(ctx, &item.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Mode != ContextModeItem {
		t.Errorf("mode = %q, want item", out.Mode)
	}
	if out.Item == nil || out.Item.ID != item.ID {
		t.Fatal("expected the requested item populated")
	}
	if out.GateStatus == nil {
		t.Fatal("item mode must populate gate status")
	}
}

func TestGetContextSessionResumeModeReturnsRecentTransitions(t *testing.T) {
	s, closeFn := newTestService(t, 0)
	defer closeFn()
	ctx := context.Background()
	item := mustCreateItem(t, s, "item", domain.RoleWork)
	cutoff := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	mustTransition(t, s, item.ID, domain.RoleQueue, domain.RoleWork, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	mustTransition(t, s, item.ID, domain.RoleWork, domain.RoleReview, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))

	out, err := s.GetContext(ctx, nil, &cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Mode != ContextModeSessionResume {
		t.Errorf("mode = %q, want session_resume", out.Mode)
	}
	if len(out.RecentTransitions) != 1 {
		t.Fatalf("ListRoleTransitionsSince returns raw rows; expected the store to filter by cutoff, got %d", len(out.RecentTransitions))
	}
}

func TestGetContextHealthCheckModeFlagsStalledItems(t *testing.T) {
	s, closeFn := newTestService(t, time.Hour)
	defer closeFn()
	ctx := context.Background()
	stale := mustCreateItem(t, s, "stale", domain.RoleWork, func(w *domain.WorkItem) {
		w.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	})
	fresh := mustCreateItem(t, s, "fresh", domain.RoleWork, func(w *domain.WorkItem) {
		w.CreatedAt = time.Now().UTC()
	})

	out, err := s.GetContext(ctx, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Mode != ContextModeHealthCheck {
		t.Errorf("mode = %q, want health_check", out.Mode)
	}
	staleIDs := map[string]bool{}
	for _, it := range out.StalledItems {
		staleIDs[it.ID] = true
	}
	if !staleIDs[stale.ID] {
		t.Error("item idle well past staleAfter must be flagged stalled")
	}
	if staleIDs[fresh.ID] {
		t.Error("freshly created item must not be flagged stalled")
	}
}

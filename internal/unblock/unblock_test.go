package unblock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/workgraph/workctl/internal/domain"
)

type fakeStore struct {
	items     map[string]*domain.WorkItem
	outgoing  map[string][]*domain.Dependency
	incoming  map[string][]*domain.Dependency
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:    map[string]*domain.WorkItem{},
		outgoing: map[string][]*domain.Dependency{},
		incoming: map[string][]*domain.Dependency{},
	}
}

func (f *fakeStore) GetItem(ctx context.Context, q Querier, id string) (*domain.WorkItem, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("item not found: %s", id)
	}
	return it, nil
}

func (f *fakeStore) GetOutgoingDependencies(ctx context.Context, q Querier, itemID string) ([]*domain.Dependency, error) {
	return f.outgoing[itemID], nil
}

func (f *fakeStore) GetIncomingDependencies(ctx context.Context, q Querier, itemID string) ([]*domain.Dependency, error) {
	return f.incoming[itemID], nil
}

// link records dep under its FromItemID's outgoing and its ToItemID's
// incoming lookup tables, mirroring how the store's
// GetOutgoing/GetIncomingDependencies would serve a single row.
func (f *fakeStore) link(dep *domain.Dependency) {
	f.outgoing[dep.FromItemID] = append(f.outgoing[dep.FromItemID], dep)
	f.incoming[dep.ToItemID] = append(f.incoming[dep.ToItemID], dep)
}

func unblockItem(id string, role domain.Role) *domain.WorkItem {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.WorkItem{ID: id, Title: "Item " + id, Role: role, CreatedAt: now, ModifiedAt: now}
}

func TestDetectReportsDownstreamItemOnceItsOnlyBlockerClears(t *testing.T) {
	st := newFakeStore()
	st.items["blocker"] = unblockItem("blocker", domain.RoleTerminal)
	st.items["blocked"] = unblockItem("blocked", domain.RoleQueue)
	st.link(&domain.Dependency{FromItemID: "blocker", ToItemID: "blocked", Type: domain.DepBlocks})

	out, err := Detect(context.Background(), st, nil, "blocker")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].ItemID != "blocked" {
		t.Fatalf("expected [blocked] unblocked, got %+v", out)
	}
}

func TestDetectSkipsItemsWithRemainingBlockers(t *testing.T) {
	st := newFakeStore()
	st.items["blocker-a"] = unblockItem("blocker-a", domain.RoleTerminal)
	st.items["blocker-b"] = unblockItem("blocker-b", domain.RoleQueue)
	st.items["blocked"] = unblockItem("blocked", domain.RoleQueue)
	st.link(&domain.Dependency{FromItemID: "blocker-a", ToItemID: "blocked", Type: domain.DepBlocks})
	st.link(&domain.Dependency{FromItemID: "blocker-b", ToItemID: "blocked", Type: domain.DepBlocks})

	out, err := Detect(context.Background(), st, nil, "blocker-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("blocked still has an unsatisfied blocker, expected no report, got %+v", out)
	}
}

func TestDetectHonorsExplicitUnblockAt(t *testing.T) {
	st := newFakeStore()
	st.items["blocker"] = unblockItem("blocker", domain.RoleWork)
	st.items["blocked"] = unblockItem("blocked", domain.RoleQueue)
	work := domain.RoleWork
	st.link(&domain.Dependency{FromItemID: "blocker", ToItemID: "blocked", Type: domain.DepBlocks, UnblockAt: &work})

	out, err := Detect(context.Background(), st, nil, "blocker")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("blocker reached its explicit unblockAt role, expected a report, got %+v", out)
	}
}

func TestDetectTreatsMissingBlockerAsUnsatisfied(t *testing.T) {
	st := newFakeStore()
	st.items["blocked"] = unblockItem("blocked", domain.RoleQueue)
	// "ghost" blocks "blocked" but is never registered in st.items.
	st.link(&domain.Dependency{FromItemID: "ghost", ToItemID: "blocked", Type: domain.DepBlocks})

	out, err := Detect(context.Background(), st, nil, "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("ghost is missing from the store, expected no unblock report, got %+v", out)
	}
}

func TestDetectHandlesIsBlockedByEdgeDirection(t *testing.T) {
	st := newFakeStore()
	st.items["blocked"] = unblockItem("blocked", domain.RoleQueue)
	st.items["blocker"] = unblockItem("blocker", domain.RoleTerminal)
	// "blocked" IS_BLOCKED_BY "blocker" means blocker blocks blocked.
	st.link(&domain.Dependency{FromItemID: "blocked", ToItemID: "blocker", Type: domain.DepIsBlockedBy})

	out, err := Detect(context.Background(), st, nil, "blocker")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].ItemID != "blocked" {
		t.Fatalf("expected [blocked] unblocked via IS_BLOCKED_BY inversion, got %+v", out)
	}
}

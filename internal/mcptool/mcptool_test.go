package mcptool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgraph/workctl/internal/gatecheck"
	"github.com/workgraph/workctl/internal/store/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	svc := NewServices(st, gatecheck.NoOpNoteSchemaService{})
	return New(svc, "workctl-test", "0.0.0")
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// resultPayload unmarshals a successful tool result's text content into a
// map, failing the test if the call reported an error.
func resultPayload(t *testing.T, res *mcp.CallToolResult, err error) map[string]any {
	t.Helper()
	if err != nil {
		t.Fatalf("tool call returned transport error: %v", err)
	}
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("tool call returned no content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("tool result content is not text: %#v", res.Content[0])
	}
	if res.IsError {
		t.Fatalf("tool call reported an error: %s", text.Text)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("decode tool result JSON: %v", err)
	}
	return out
}

// resultErrorText extracts the error text from a failed tool call, failing the
// test if the call actually succeeded.
func resultErrorText(t *testing.T, res *mcp.CallToolResult, err error) string {
	t.Helper()
	if err != nil {
		t.Fatalf("tool call returned transport error: %v", err)
	}
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("tool call returned no content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("tool result content is not text: %#v", res.Content[0])
	}
	if !res.IsError {
		t.Fatalf("expected tool call to report an error, got: %s", text.Text)
	}
	return text.Text
}

func TestManageItemsCreateRejectsEmptyTitle(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleManageItems(context.Background(), callTool(ToolManageItems, map[string]any{
		"operation": "create",
	}))
	msg := resultErrorText(t, res, err)
	if msg == "" {
		t.Fatalf("expected a non-empty validation error message")
	}
}

func TestManageItemsCreateUpdateDeleteRoundTrip(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	created := resultPayload(t, s.handleManageItems(ctx, callTool(ToolManageItems, map[string]any{
		"operation": "create",
		"title":     "Implement login flow",
		"priority":  "high",
	})))
	item, ok := created["item"].(map[string]any)
	if !ok {
		t.Fatalf("expected item object in create result, got %#v", created)
	}
	id, _ := item["id"].(string)
	if id == "" {
		t.Fatalf("expected a generated item id")
	}
	if item["role"] != "queue" {
		t.Fatalf("expected newly created item to start in queue role, got %v", item["role"])
	}

	updated := resultPayload(t, s.handleManageItems(ctx, callTool(ToolManageItems, map[string]any{
		"operation": "update",
		"id":        id,
		"title":     "Implement login flow v2",
	})))
	uItem, _ := updated["item"].(map[string]any)
	if uItem["title"] != "Implement login flow v2" {
		t.Fatalf("expected updated title, got %v", uItem["title"])
	}

	queried := resultPayload(t, s.handleQueryItems(ctx, callTool(ToolQueryItems, map[string]any{})))
	items, _ := queried["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 item after create, got %d", len(items))
	}

	deleted := resultPayload(t, s.handleManageItems(ctx, callTool(ToolManageItems, map[string]any{
		"operation": "delete",
		"id":        id,
	})))
	if deleted["deleted"] == nil {
		t.Fatalf("expected deleted field in delete result")
	}

	requeried := resultPayload(t, s.handleQueryItems(ctx, callTool(ToolQueryItems, map[string]any{})))
	items, _ = requeried["items"].([]any)
	if len(items) != 0 {
		t.Fatalf("expected 0 items after delete, got %d", len(items))
	}
}

func TestManageDependenciesRejectsCycle(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	a := createItem(t, s, "A")
	b := createItem(t, s, "B")

	first := resultPayload(t, s.handleManageDependencies(ctx, callTool(ToolManageDependencies, map[string]any{
		"operation":  "create",
		"fromItemId": a,
		"toItemId":   b,
		"type":       "blocks",
	})))
	if first["dependency"] == nil {
		t.Fatalf("expected a created dependency")
	}

	res, err := s.handleManageDependencies(ctx, callTool(ToolManageDependencies, map[string]any{
		"operation":  "create",
		"fromItemId": b,
		"toItemId":   a,
		"type":       "blocks",
	}))
	resultErrorText(t, res, err)
}

func TestManageDependenciesRejectsSelfDependency(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	a := createItem(t, s, "A")

	res, err := s.handleManageDependencies(ctx, callTool(ToolManageDependencies, map[string]any{
		"operation":  "create",
		"fromItemId": a,
		"toItemId":   a,
		"type":       "blocks",
	}))
	resultErrorText(t, res, err)
}

func TestManageDependenciesCreateBatchReportsPerEntryOutcome(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	a := createItem(t, s, "A")
	b := createItem(t, s, "B")
	c := createItem(t, s, "C")

	out := resultPayload(t, s.handleManageDependencies(ctx, callTool(ToolManageDependencies, map[string]any{
		"operation": "createBatch",
		"entries": []any{
			map[string]any{"fromItemId": a, "toItemId": b, "type": "blocks"},
			map[string]any{"fromItemId": b, "toItemId": c, "type": "blocks"},
			map[string]any{"fromItemId": a, "toItemId": b, "type": "blocks"}, // duplicate
		},
	})))
	summary, _ := out["summary"].(map[string]any)
	if summary["succeeded"] != float64(2) || summary["failed"] != float64(1) {
		t.Fatalf("expected 2 succeeded, 1 failed, got %#v", summary)
	}
}

func TestManageNotesUpsertAndDelete(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	a := createItem(t, s, "A")

	created := resultPayload(t, s.handleManageNotes(ctx, callTool(ToolManageNotes, map[string]any{
		"operation": "upsert",
		"itemId":    a,
		"key":       "design-doc",
		"role":      "queue",
		"body":      "see RFC 9",
	})))
	note, _ := created["note"].(map[string]any)
	if note["body"] != "see RFC 9" {
		t.Fatalf("expected note body to round-trip, got %v", note["body"])
	}

	queried := resultPayload(t, s.handleQueryNotes(ctx, callTool(ToolQueryNotes, map[string]any{
		"itemId": a,
	})))
	notes, _ := queried["notes"].([]any)
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}

	resultPayload(t, s.handleManageNotes(ctx, callTool(ToolManageNotes, map[string]any{
		"operation": "delete",
		"itemId":    a,
		"key":       "design-doc",
	})))

	requeried := resultPayload(t, s.handleQueryNotes(ctx, callTool(ToolQueryNotes, map[string]any{
		"itemId": a,
	})))
	notes, _ = requeried["notes"].([]any)
	if len(notes) != 0 {
		t.Fatalf("expected 0 notes after delete, got %d", len(notes))
	}
}

func TestAdvanceItemStartTransitionsQueueToWork(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	a := createItem(t, s, "A")

	out := resultPayload(t, s.handleAdvanceItem(ctx, callTool(ToolAdvanceItem, map[string]any{
		"transitions": []any{
			map[string]any{"itemId": a, "trigger": "start"},
		},
	})))
	results, _ := out["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r, _ := results[0].(map[string]any)
	if r["applied"] != true {
		t.Fatalf("expected transition to apply, got %#v", r)
	}
	if r["newRole"] != "work" {
		t.Fatalf("expected new role work, got %v", r["newRole"])
	}
}

func TestGetNextStatusReflectsDirectAdvisoryCall(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	a := createItem(t, s, "A")

	out := resultPayload(t, s.handleGetNextStatus(ctx, callTool(ToolGetNextStatus, map[string]any{
		"itemId": a,
	})))
	if out["recommendation"] == nil {
		t.Fatalf("expected a recommendation field")
	}
	if out["currentRole"] != "queue" {
		t.Fatalf("expected currentRole queue, got %v", out["currentRole"])
	}
}

func TestManageItemsUpdateReparentToRootClearsParentID(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	parent := createItem(t, s, "Parent")

	child := resultPayload(t, s.handleManageItems(ctx, callTool(ToolManageItems, map[string]any{
		"operation": "create",
		"title":     "Child",
		"parentId":  parent,
	})))
	childItem, _ := child["item"].(map[string]any)
	childID, _ := childItem["id"].(string)
	if childItem["depth"] != float64(1) {
		t.Fatalf("expected child depth 1, got %v", childItem["depth"])
	}

	reparented := resultPayload(t, s.handleManageItems(ctx, callTool(ToolManageItems, map[string]any{
		"operation": "update",
		"id":        childID,
		"parentId":  "",
	})))
	rItem, _ := reparented["item"].(map[string]any)
	if rItem["parentId"] != nil {
		t.Fatalf("expected parentId to be cleared (nil), got %v", rItem["parentId"])
	}
	if rItem["depth"] != float64(0) {
		t.Fatalf("expected depth 0 after reparenting to root, got %v", rItem["depth"])
	}

	// The item must still be independently queryable and deletable: if
	// parentId had instead been persisted as the literal string "", the
	// FK constraint on work_items.parent_id would reject this update (or,
	// on a backend without FK enforcement, leave depth==0 paired with a
	// non-null parentId).
	queried := resultPayload(t, s.handleQueryItems(ctx, callTool(ToolQueryItems, map[string]any{})))
	items, _ := queried["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 items (parent + reparented child), got %d", len(items))
	}
}

func TestManageItemsCreateNormalizesTags(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	created := resultPayload(t, s.handleManageItems(ctx, callTool(ToolManageItems, map[string]any{
		"operation": "create",
		"title":     "Tagged item",
		"tags":      []any{" Feature-Task ", "URGENT"},
	})))
	item, _ := created["item"].(map[string]any)
	tags, _ := item["tags"].([]any)
	if len(tags) != 2 || tags[0] != "feature-task" || tags[1] != "urgent" {
		t.Fatalf("expected normalized tags [feature-task urgent], got %v", tags)
	}
}

func TestManageItemsCreateRejectsMalformedTag(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleManageItems(context.Background(), callTool(ToolManageItems, map[string]any{
		"operation": "create",
		"title":     "Bad tag item",
		"tags":      []any{"not a valid tag!"},
	}))
	resultErrorText(t, res, err)
}

// createItem is a small helper that creates an item through the manage_items
// tool itself, exercising the same path a real MCP client would use.
func createItem(t *testing.T, s *Server, title string) string {
	t.Helper()
	out := resultPayload(t, s.handleManageItems(context.Background(), callTool(ToolManageItems, map[string]any{
		"operation": "create",
		"title":     title,
	})))
	item, _ := out["item"].(map[string]any)
	id, _ := item["id"].(string)
	if id == "" {
		t.Fatalf("createItem: no id returned for %q", title)
	}
	return id
}

// Package mcptool exposes the orchestration engine as an MCP tool server:
// one tool per collaborator/orchestrator entry point, JSON parameter
// structs decoded from the call's arguments, JSON result envelopes
// returned as the tool's text content. Grounded on the teacher's RPC wire
// shape (internal/rpc/protocol.go's Request{Operation, Args}/
// Response{Success, Data, Error}), adapted to MCP's one-tool-per-operation
// framing instead of a single dispatch operation string.
package mcptool

import "github.com/workgraph/workctl/internal/domain"

// AdvanceItemParams is advance_item's argument shape.
type AdvanceItemParams struct {
	Transitions []AdvanceItemEntry `json:"transitions"`
}

// AdvanceItemEntry is one entry of advance_item's transitions list.
type AdvanceItemEntry struct {
	ItemID       string  `json:"itemId"`
	Trigger      string  `json:"trigger"`
	Summary      *string `json:"summary,omitempty"`
	StatusLabel  *string `json:"statusLabel,omitempty"`
	ApplyCascade *bool   `json:"applyCascade,omitempty"`
}

// CompleteTreeParams is complete_tree's argument shape.
type CompleteTreeParams struct {
	RootID  *string  `json:"rootId,omitempty"`
	ItemIDs []string `json:"itemIds,omitempty"`
	Trigger string   `json:"trigger"`
}

// GetBlockedItemsParams is get_blocked_items's argument shape.
type GetBlockedItemsParams struct {
	ParentID          *string `json:"parentId,omitempty"`
	IncludeItemDetails bool   `json:"includeItemDetails,omitempty"`
	IncludeAncestors   bool   `json:"includeAncestors,omitempty"`
}

// GetNextItemParams is get_next_item's argument shape.
type GetNextItemParams struct {
	ParentID *string `json:"parentId,omitempty"`
	Priority *string `json:"priority,omitempty"`
	Limit    int     `json:"limit,omitempty"`
}

// GetNextStatusParams is get_next_status's argument shape.
type GetNextStatusParams struct {
	ItemID string `json:"itemId"`
}

// GetContextParams is get_context's argument shape: ItemID selects item mode
// (and wins when Since is also set), Since alone selects session-resume mode,
// and neither selects health-check mode.
type GetContextParams struct {
	ItemID *string `json:"itemId,omitempty"`
	Since  *string `json:"since,omitempty"` // RFC3339
}

// ManageItemsParams is manage_items's argument shape, covering all three
// operations; fields not relevant to the selected operation are ignored.
type ManageItemsParams struct {
	Operation            string         `json:"operation"`
	ID                   string         `json:"id,omitempty"`
	IDs                  []string       `json:"ids,omitempty"`
	ParentID             *string        `json:"parentId,omitempty"`
	Title                string         `json:"title,omitempty"`
	Description          string         `json:"description,omitempty"`
	Summary              string         `json:"summary,omitempty"`
	Priority             string         `json:"priority,omitempty"`
	Complexity           int            `json:"complexity,omitempty"`
	RequiresVerification *bool          `json:"requiresVerification,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	Tags                 []string       `json:"tags,omitempty"`
}

// ManageDependenciesParams is manage_dependencies's argument shape.
type ManageDependenciesParams struct {
	Operation  string                       `json:"operation"`
	ID         string                       `json:"id,omitempty"`
	FromItemID string                       `json:"fromItemId,omitempty"`
	ToItemID   string                       `json:"toItemId,omitempty"`
	Type       string                       `json:"type,omitempty"`
	UnblockAt  *string                      `json:"unblockAt,omitempty"`
	Entries    []ManageDependenciesEntry    `json:"entries,omitempty"`
}

// ManageDependenciesEntry is one entry of a createBatch call.
type ManageDependenciesEntry struct {
	FromItemID string  `json:"fromItemId"`
	ToItemID   string  `json:"toItemId"`
	Type       string  `json:"type"`
	UnblockAt  *string `json:"unblockAt,omitempty"`
}

// ManageNotesParams is manage_notes's argument shape.
type ManageNotesParams struct {
	Operation string `json:"operation"`
	ItemID    string `json:"itemId"`
	Key       string `json:"key"`
	Role      string `json:"role,omitempty"`
	Body      string `json:"body,omitempty"`
}

// QueryItemsParams is query_items's argument shape.
type QueryItemsParams struct {
	ParentID *string `json:"parentId,omitempty"`
	Role     *string `json:"role,omitempty"`
	Priority *string `json:"priority,omitempty"`
	Tag      string  `json:"tag,omitempty"`
	Limit    int     `json:"limit,omitempty"`
	Offset   int     `json:"offset,omitempty"`
}

// QueryNotesParams is query_notes's argument shape.
type QueryNotesParams struct {
	ItemID string  `json:"itemId,omitempty"`
	Role   *string `json:"role,omitempty"`
}

// workItemView is the wire-facing rendering of domain.WorkItem.
type workItemView struct {
	ID                   string         `json:"id"`
	ParentID             *string        `json:"parentId,omitempty"`
	Title                string         `json:"title"`
	Description          string         `json:"description,omitempty"`
	Summary              string         `json:"summary,omitempty"`
	Role                 string         `json:"role"`
	PreviousRole         *string        `json:"previousRole,omitempty"`
	StatusLabel          *string        `json:"statusLabel,omitempty"`
	Priority             string         `json:"priority"`
	Complexity           int            `json:"complexity"`
	RequiresVerification bool           `json:"requiresVerification"`
	Depth                int            `json:"depth"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	Tags                 []string       `json:"tags,omitempty"`
	CreatedAt            string         `json:"createdAt"`
	ModifiedAt           string         `json:"modifiedAt"`
}

func itemView(w *domain.WorkItem) workItemView {
	v := workItemView{
		ID:                   w.ID,
		ParentID:             w.ParentID,
		Title:                w.Title,
		Description:          w.Description,
		Summary:              w.Summary,
		Role:                 string(w.Role),
		StatusLabel:          w.StatusLabel,
		Priority:             string(w.Priority),
		Complexity:           w.Complexity,
		RequiresVerification: w.RequiresVerification,
		Depth:                w.Depth,
		Metadata:             w.Metadata,
		Tags:                 w.Tags,
		CreatedAt:            w.CreatedAt.UTC().Format(rfc3339),
		ModifiedAt:           w.ModifiedAt.UTC().Format(rfc3339),
	}
	if w.PreviousRole != nil {
		s := string(*w.PreviousRole)
		v.PreviousRole = &s
	}
	return v
}

const rfc3339 = "2006-01-02T15:04:05.999999999Z07:00"

// dependencyView is the wire-facing rendering of domain.Dependency.
type dependencyView struct {
	ID         string  `json:"id"`
	FromItemID string  `json:"fromItemId"`
	ToItemID   string  `json:"toItemId"`
	Type       string  `json:"type"`
	UnblockAt  *string `json:"unblockAt,omitempty"`
	CreatedAt  string  `json:"createdAt"`
}

func depView(d *domain.Dependency) dependencyView {
	v := dependencyView{
		ID:         d.ID,
		FromItemID: d.FromItemID,
		ToItemID:   d.ToItemID,
		Type:       string(d.Type),
		CreatedAt:  d.CreatedAt.UTC().Format(rfc3339),
	}
	if d.UnblockAt != nil {
		s := string(*d.UnblockAt)
		v.UnblockAt = &s
	}
	return v
}

// noteView is the wire-facing rendering of domain.Note.
type noteView struct {
	ID         string `json:"id"`
	ItemID     string `json:"itemId"`
	Key        string `json:"key"`
	Role       string `json:"role"`
	Body       string `json:"body"`
	CreatedAt  string `json:"createdAt"`
	ModifiedAt string `json:"modifiedAt"`
}

func noteViewOf(n *domain.Note) noteView {
	return noteView{
		ID:         n.ID,
		ItemID:     n.ItemID,
		Key:        n.Key,
		Role:       string(n.Role),
		Body:       n.Body,
		CreatedAt:  n.CreatedAt.UTC().Format(rfc3339),
		ModifiedAt: n.ModifiedAt.UTC().Format(rfc3339),
	}
}

package mcptool

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgraph/workctl/internal/advisory"
	"github.com/workgraph/workctl/internal/domain"
)

type blockerChainView struct {
	ItemID    string `json:"itemId"`
	Title     string `json:"title"`
	Role      string `json:"role"`
	Threshold string `json:"threshold"`
	Satisfied bool   `json:"satisfied"`
}

func chainView(chain []advisory.BlockerChainEntry) []blockerChainView {
	out := make([]blockerChainView, 0, len(chain))
	for _, c := range chain {
		out = append(out, blockerChainView{
			ItemID: c.ItemID, Title: c.Title,
			Role: string(c.Role), Threshold: string(c.Threshold), Satisfied: c.Satisfied,
		})
	}
	return out
}

func childProgressView(cp *advisory.ChildProgress) map[string]any {
	if cp == nil {
		return nil
	}
	return map[string]any{"total": cp.Total, "terminal": cp.Terminal}
}

func (s *Server) handleGetBlockedItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params GetBlockedItemsParams
	if err := decodeArgs(req, &params); err != nil {
		return resultError(err)
	}
	blocked, err := s.svc.Advisory.GetBlockedItems(ctx, params.ParentID)
	if err != nil {
		return resultError(err)
	}
	type entry struct {
		Item         workItemView       `json:"item"`
		BlockerChain []blockerChainView `json:"blockerChain"`
	}
	entries := make([]entry, 0, len(blocked))
	for _, b := range blocked {
		entries = append(entries, entry{Item: itemView(b.Item), BlockerChain: chainView(b.BlockerChain)})
	}
	return resultJSON(map[string]any{"blockedItems": entries, "total": len(entries)})
}

func (s *Server) handleGetNextItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params GetNextItemParams
	if err := decodeArgs(req, &params); err != nil {
		return resultError(err)
	}
	var priority *domain.Priority
	if params.Priority != nil {
		p, err := domain.ParsePriority(*params.Priority)
		if err != nil {
			return resultError(err)
		}
		priority = &p
	}
	recs, err := s.svc.Advisory.GetNextItem(ctx, params.ParentID, priority, params.Limit)
	if err != nil {
		return resultError(err)
	}
	views := make([]workItemView, 0, len(recs))
	for _, r := range recs {
		views = append(views, itemView(r.Item))
	}
	return resultJSON(map[string]any{"recommendations": views})
}

func (s *Server) handleGetNextStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params GetNextStatusParams
	if err := decodeArgs(req, &params); err != nil {
		return resultError(err)
	}
	ns, err := s.svc.Advisory.GetNextStatus(ctx, params.ItemID)
	if err != nil {
		return resultError(err)
	}
	out := map[string]any{
		"recommendation": string(ns.Recommendation),
		"currentRole":    string(ns.CurrentRole),
	}
	if ns.NextRole != nil {
		out["nextRole"] = string(*ns.NextRole)
	}
	if ns.Trigger != nil {
		out["trigger"] = string(*ns.Trigger)
	}
	if len(ns.Blockers) > 0 {
		out["blockers"] = chainView(ns.Blockers)
	}
	if ns.ChildProgress != nil {
		out["childProgress"] = childProgressView(ns.ChildProgress)
	}
	return resultJSON(out)
}

func (s *Server) handleGetContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params GetContextParams
	if err := decodeArgs(req, &params); err != nil {
		return resultError(err)
	}
	var since *time.Time
	if params.Since != nil {
		t, err := time.Parse(time.RFC3339, *params.Since)
		if err != nil {
			return resultError(err)
		}
		since = &t
	}
	result, err := s.svc.Advisory.GetContext(ctx, params.ItemID, since)
	if err != nil {
		return resultError(err)
	}

	out := map[string]any{"mode": string(result.Mode)}
	if result.Item != nil {
		out["item"] = itemView(result.Item)
	}
	if result.GateStatus != nil {
		out["gateStatus"] = map[string]any{
			"canAdvance": result.GateStatus.CanAdvance,
			"missing":    result.GateStatus.Missing,
			"phase":      string(result.GateStatus.Phase),
		}
	}
	if result.ChildProgress != nil {
		out["childProgress"] = childProgressView(result.ChildProgress)
	}
	if result.ActiveItems != nil {
		out["activeItems"] = itemViews(result.ActiveItems)
	}
	if result.BlockedItems != nil {
		type entry struct {
			Item         workItemView       `json:"item"`
			BlockerChain []blockerChainView `json:"blockerChain"`
		}
		entries := make([]entry, 0, len(result.BlockedItems))
		for _, b := range result.BlockedItems {
			entries = append(entries, entry{Item: itemView(b.Item), BlockerChain: chainView(b.BlockerChain)})
		}
		out["blockedItems"] = entries
	}
	if result.StalledItems != nil {
		out["stalledItems"] = itemViews(result.StalledItems)
	}
	if result.RecentTransitions != nil {
		out["recentTransitions"] = transitionViews(result.RecentTransitions)
	}
	return resultJSON(out)
}

func itemViews(items []*domain.WorkItem) []workItemView {
	out := make([]workItemView, 0, len(items))
	for _, it := range items {
		out = append(out, itemView(it))
	}
	return out
}

type roleTransitionView struct {
	ID              string  `json:"id"`
	ItemID          string  `json:"itemId"`
	FromRole        string  `json:"fromRole"`
	ToRole          string  `json:"toRole"`
	FromStatusLabel *string `json:"fromStatusLabel,omitempty"`
	ToStatusLabel   *string `json:"toStatusLabel,omitempty"`
	Trigger         string  `json:"trigger"`
	Summary         *string `json:"summary,omitempty"`
	TransitionedAt  string  `json:"transitionedAt"`
}

func transitionViews(ts []*domain.RoleTransition) []roleTransitionView {
	out := make([]roleTransitionView, 0, len(ts))
	for _, t := range ts {
		out = append(out, roleTransitionView{
			ID: t.ID, ItemID: t.ItemID,
			FromRole: string(t.FromRole), ToRole: string(t.ToRole),
			FromStatusLabel: t.FromStatusLabel, ToStatusLabel: t.ToStatusLabel,
			Trigger: t.Trigger, Summary: t.Summary,
			TransitionedAt: t.TransitionedAt.UTC().Format(rfc3339),
		})
	}
	return out
}

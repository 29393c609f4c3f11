package mcptool

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/engineerr"
	"github.com/workgraph/workctl/internal/store/storetypes"
)

func (s *Server) handleQueryItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params QueryItemsParams
	if err := decodeArgs(req, &params); err != nil {
		return resultError(err)
	}

	filter := storetypes.ItemFilter{
		ParentID: params.ParentID,
		Tag:      params.Tag,
		Limit:    params.Limit,
		Offset:   params.Offset,
	}
	if params.Role != nil {
		r, err := domain.ParseRole(*params.Role)
		if err != nil {
			return resultError(err)
		}
		filter.Role = &r
	}
	if params.Priority != nil {
		p, err := domain.ParsePriority(*params.Priority)
		if err != nil {
			return resultError(err)
		}
		filter.Priority = &p
	}

	items, err := s.svc.Store.ListItems(ctx, s.svc.Store, filter)
	if err != nil {
		return resultError(err)
	}
	return resultJSON(map[string]any{"items": itemViews(items), "total": len(items)})
}

func (s *Server) handleQueryNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params QueryNotesParams
	if err := decodeArgs(req, &params); err != nil {
		return resultError(err)
	}
	if params.ItemID == "" {
		return resultError(&engineerr.ValidationError{Field: "itemId", Message: "required"})
	}

	notes, err := s.svc.Store.ListNotesForItem(ctx, s.svc.Store, params.ItemID)
	if err != nil {
		return resultError(err)
	}

	var role *domain.Role
	if params.Role != nil {
		r, err := domain.ParseRole(*params.Role)
		if err != nil {
			return resultError(err)
		}
		role = &r
	}

	views := make([]noteView, 0, len(notes))
	for _, n := range notes {
		if role != nil && n.Role != *role {
			continue
		}
		views = append(views, noteViewOf(n))
	}
	return resultJSON(map[string]any{"notes": views, "total": len(views)})
}

package mcptool

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/engineerr"
	"github.com/workgraph/workctl/internal/idgen"
	"github.com/workgraph/workctl/internal/store"
)

// withTx runs fn inside a transaction over st, committing on success and
// rolling back on any error, mirroring the orchestrator's per-call
// transaction discipline (internal/orchestrate/shared.go's withTx).
func withTx(ctx context.Context, st store.Store, fn func(tx *sql.Tx) error) error {
	tx, err := st.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Server) handleManageItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ManageItemsParams
	if err := decodeArgs(req, &params); err != nil {
		return resultError(err)
	}

	switch params.Operation {
	case "create":
		return s.manageItemsCreate(ctx, params)
	case "update":
		return s.manageItemsUpdate(ctx, params)
	case "delete":
		return s.manageItemsDelete(ctx, params)
	default:
		return resultError(fmt.Errorf("%w: unknown manage_items operation %q", engineerr.ErrValidation, params.Operation))
	}
}

func (s *Server) manageItemsCreate(ctx context.Context, params ManageItemsParams) (*mcp.CallToolResult, error) {
	if params.Title == "" {
		return resultError(&engineerr.ValidationError{Field: "title", Message: "must not be empty"})
	}
	complexity := params.Complexity
	if complexity == 0 {
		complexity = 1
	}
	if complexity < 1 || complexity > 10 {
		return resultError(&engineerr.ValidationError{Field: "complexity", Message: "must be 1..10"})
	}
	priority := domain.PriorityMedium
	if params.Priority != "" {
		p, err := domain.ParsePriority(params.Priority)
		if err != nil {
			return resultError(err)
		}
		priority = p
	}
	if len(params.Summary) > domain.MaxSummaryLen {
		return resultError(&engineerr.ValidationError{Field: "summary", Message: "exceeds maximum length"})
	}
	tags, err := domain.ValidateTags(params.Tags)
	if err != nil {
		return resultError(&engineerr.ValidationError{Field: "tags", Message: err.Error()})
	}

	now := time.Now().UTC()
	item := &domain.WorkItem{
		ID:                   idgen.New(),
		ParentID:             params.ParentID,
		Title:                params.Title,
		Description:          params.Description,
		Summary:              params.Summary,
		Role:                 domain.RoleQueue,
		Priority:             priority,
		Complexity:           complexity,
		RequiresVerification: params.RequiresVerification != nil && *params.RequiresVerification,
		Metadata:             params.Metadata,
		Tags:                 tags,
		CreatedAt:            now,
		ModifiedAt:           now,
	}

	var created *domain.WorkItem
	err = withTx(ctx, s.svc.Store, func(tx *sql.Tx) error {
		if params.ParentID != nil {
			parent, err := s.svc.Store.GetItem(ctx, tx, *params.ParentID)
			if err != nil {
				return err
			}
			if parent.Depth+1 > domain.MaxDepth {
				return &engineerr.ValidationError{Field: "parentId", Message: "would exceed maximum depth"}
			}
			item.Depth = parent.Depth + 1
		}
		if err := s.svc.Store.CreateItem(ctx, tx, item); err != nil {
			return err
		}
		created = item
		return nil
	})
	if err != nil {
		return resultError(err)
	}
	return resultJSON(map[string]any{"item": itemView(created)})
}

func (s *Server) manageItemsUpdate(ctx context.Context, params ManageItemsParams) (*mcp.CallToolResult, error) {
	if params.ID == "" {
		return resultError(&engineerr.ValidationError{Field: "id", Message: "required"})
	}

	var updated *domain.WorkItem
	err := withTx(ctx, s.svc.Store, func(tx *sql.Tx) error {
		item, err := s.svc.Store.GetItem(ctx, tx, params.ID)
		if err != nil {
			return err
		}
		next := item.Clone()

		if params.Title != "" {
			next.Title = params.Title
		}
		if params.Description != "" {
			next.Description = params.Description
		}
		if params.Summary != "" {
			if len(params.Summary) > domain.MaxSummaryLen {
				return &engineerr.ValidationError{Field: "summary", Message: "exceeds maximum length"}
			}
			next.Summary = params.Summary
		}
		if params.Priority != "" {
			p, err := domain.ParsePriority(params.Priority)
			if err != nil {
				return err
			}
			next.Priority = p
		}
		if params.Complexity != 0 {
			if params.Complexity < 1 || params.Complexity > 10 {
				return &engineerr.ValidationError{Field: "complexity", Message: "must be 1..10"}
			}
			next.Complexity = params.Complexity
		}
		if params.RequiresVerification != nil {
			next.RequiresVerification = *params.RequiresVerification
		}
		if params.Metadata != nil {
			next.Metadata = params.Metadata
		}
		if params.Tags != nil {
			tags, err := domain.ValidateTags(params.Tags)
			if err != nil {
				return &engineerr.ValidationError{Field: "tags", Message: err.Error()}
			}
			next.Tags = tags
		}

		// Reparenting (Open Question 4): the full descendant subtree is
		// walked first and the move is rejected outright if any
		// descendant's recomputed depth would exceed MaxDepth, rather
		// than silently clamping depths.
		if params.ParentID != nil {
			if *params.ParentID == params.ID {
				return &engineerr.ValidationError{Field: "parentId", Message: "an item cannot be its own parent"}
			}
			newDepth := 0
			if *params.ParentID != "" {
				newParent, err := s.svc.Store.GetItem(ctx, tx, *params.ParentID)
				if err != nil {
					return err
				}
				reachable, err := descendantContains(ctx, tx, s.svc.Store, params.ID, *params.ParentID)
				if err != nil {
					return err
				}
				if reachable {
					return &engineerr.ValidationError{Field: "parentId", Message: "would create a cycle"}
				}
				newDepth = newParent.Depth + 1
			}
			descendants, err := s.svc.Store.ListDescendants(ctx, tx, params.ID)
			if err != nil {
				return err
			}
			delta := newDepth - item.Depth
			for _, d := range descendants {
				if d.Depth+delta > domain.MaxDepth {
					return &engineerr.ValidationError{Field: "parentId", Message: "would push a descendant past maximum depth"}
				}
			}
			if *params.ParentID == "" {
				next.ParentID = nil
			} else {
				next.ParentID = params.ParentID
			}
			next.Depth = newDepth
		}

		next.ModifiedAt = time.Now().UTC()
		if err := s.svc.Store.UpdateItem(ctx, tx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return resultError(err)
	}
	return resultJSON(map[string]any{"item": itemView(updated)})
}

// descendantContains reports whether candidateID is rootID or one of its
// transitive descendants, guarding manage_items{update} against reparenting
// an item underneath its own subtree.
func descendantContains(ctx context.Context, q store.Querier, st store.Store, rootID, candidateID string) (bool, error) {
	if rootID == candidateID {
		return true, nil
	}
	descendants, err := st.ListDescendants(ctx, q, rootID)
	if err != nil {
		return false, err
	}
	for _, d := range descendants {
		if d.ID == candidateID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Server) manageItemsDelete(ctx context.Context, params ManageItemsParams) (*mcp.CallToolResult, error) {
	ids := params.IDs
	if params.ID != "" {
		ids = append(ids, params.ID)
	}
	if len(ids) == 0 {
		return resultError(&engineerr.ValidationError{Field: "id", Message: "id or ids required"})
	}
	err := withTx(ctx, s.svc.Store, func(tx *sql.Tx) error {
		return s.svc.Store.DeleteItems(ctx, tx, ids)
	})
	if err != nil {
		return resultError(err)
	}
	return resultJSON(map[string]any{"deleted": ids})
}

func (s *Server) handleManageDependencies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ManageDependenciesParams
	if err := decodeArgs(req, &params); err != nil {
		return resultError(err)
	}

	switch params.Operation {
	case "create":
		return s.manageDependenciesCreate(ctx, params)
	case "createBatch":
		return s.manageDependenciesCreateBatch(ctx, params)
	case "delete":
		return s.manageDependenciesDelete(ctx, params)
	default:
		return resultError(fmt.Errorf("%w: unknown manage_dependencies operation %q", engineerr.ErrValidation, params.Operation))
	}
}

func (s *Server) createOneDependency(ctx context.Context, tx *sql.Tx, fromID, toID, typ string, unblockAt *string) (*domain.Dependency, error) {
	if fromID == "" || toID == "" {
		return nil, &engineerr.ValidationError{Field: "fromItemId/toItemId", Message: "both required"}
	}
	if fromID == toID {
		return nil, engineerr.ErrSelfDependency
	}
	depType, err := domain.ParseDependencyType(typ)
	if err != nil {
		return nil, err
	}

	exists, err := s.svc.Store.DependencyExists(ctx, tx, fromID, toID, depType)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, engineerr.ErrDuplicateDependency
	}

	if domain.IsBlocking(depType) {
		blockerID, blockedID := fromID, toID
		if depType == domain.DepIsBlockedBy {
			blockerID, blockedID = toID, fromID
		}
		cyclic, err := s.svc.Store.BlockingReachable(ctx, tx, blockerID, blockedID)
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, engineerr.ErrCyclicDependency
		}
	}

	var unblockAtRole *domain.Role
	if unblockAt != nil {
		r, err := domain.ParseRole(*unblockAt)
		if err != nil {
			return nil, err
		}
		unblockAtRole = &r
	}

	dep := &domain.Dependency{
		ID:         idgen.New(),
		FromItemID: fromID,
		ToItemID:   toID,
		Type:       depType,
		UnblockAt:  unblockAtRole,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.svc.Store.CreateDependency(ctx, tx, dep); err != nil {
		return nil, err
	}
	return dep, nil
}

func (s *Server) manageDependenciesCreate(ctx context.Context, params ManageDependenciesParams) (*mcp.CallToolResult, error) {
	var created *domain.Dependency
	err := withTx(ctx, s.svc.Store, func(tx *sql.Tx) error {
		dep, err := s.createOneDependency(ctx, tx, params.FromItemID, params.ToItemID, params.Type, params.UnblockAt)
		if err != nil {
			return err
		}
		created = dep
		return nil
	})
	if err != nil {
		return resultError(err)
	}
	return resultJSON(map[string]any{"dependency": depView(created)})
}

func (s *Server) manageDependenciesCreateBatch(ctx context.Context, params ManageDependenciesParams) (*mcp.CallToolResult, error) {
	type entryResult struct {
		FromItemID string          `json:"fromItemId"`
		ToItemID   string          `json:"toItemId"`
		Created    bool            `json:"created"`
		Error      string          `json:"error,omitempty"`
		Dependency *dependencyView `json:"dependency,omitempty"`
	}

	results := make([]entryResult, 0, len(params.Entries))
	err := withTx(ctx, s.svc.Store, func(tx *sql.Tx) error {
		for _, e := range params.Entries {
			dep, err := s.createOneDependency(ctx, tx, e.FromItemID, e.ToItemID, e.Type, e.UnblockAt)
			if err != nil {
				results = append(results, entryResult{FromItemID: e.FromItemID, ToItemID: e.ToItemID, Error: err.Error()})
				continue
			}
			v := depView(dep)
			results = append(results, entryResult{FromItemID: e.FromItemID, ToItemID: e.ToItemID, Created: true, Dependency: &v})
		}
		return nil
	})
	if err != nil {
		return resultError(err)
	}

	succeeded := 0
	for _, r := range results {
		if r.Created {
			succeeded++
		}
	}
	return resultJSON(map[string]any{
		"results": results,
		"summary": map[string]any{"total": len(results), "succeeded": succeeded, "failed": len(results) - succeeded},
	})
}

func (s *Server) manageDependenciesDelete(ctx context.Context, params ManageDependenciesParams) (*mcp.CallToolResult, error) {
	if params.ID == "" {
		return resultError(&engineerr.ValidationError{Field: "id", Message: "required"})
	}
	err := withTx(ctx, s.svc.Store, func(tx *sql.Tx) error {
		return s.svc.Store.DeleteDependency(ctx, tx, params.ID)
	})
	if err != nil {
		return resultError(err)
	}
	return resultJSON(map[string]any{"deleted": params.ID})
}

func (s *Server) handleManageNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ManageNotesParams
	if err := decodeArgs(req, &params); err != nil {
		return resultError(err)
	}

	switch params.Operation {
	case "upsert":
		return s.manageNotesUpsert(ctx, params)
	case "delete":
		return s.manageNotesDelete(ctx, params)
	default:
		return resultError(fmt.Errorf("%w: unknown manage_notes operation %q", engineerr.ErrValidation, params.Operation))
	}
}

func (s *Server) manageNotesUpsert(ctx context.Context, params ManageNotesParams) (*mcp.CallToolResult, error) {
	if params.ItemID == "" {
		return resultError(&engineerr.ValidationError{Field: "itemId", Message: "required"})
	}
	if params.Key == "" || len(params.Key) > domain.MaxNoteKeyLen {
		return resultError(&engineerr.ValidationError{Field: "key", Message: "must be 1..200 characters"})
	}
	role, err := domain.ParseRole(params.Role)
	if err != nil {
		return resultError(err)
	}
	switch role {
	case domain.RoleQueue, domain.RoleWork, domain.RoleReview:
	default:
		return resultError(&engineerr.ValidationError{Field: "role", Message: "must be queue, work, or review"})
	}

	var saved *domain.Note
	err = withTx(ctx, s.svc.Store, func(tx *sql.Tx) error {
		if _, err := s.svc.Store.GetItem(ctx, tx, params.ItemID); err != nil {
			return err
		}
		now := time.Now().UTC()
		existing, err := s.svc.Store.GetNote(ctx, tx, params.ItemID, params.Key)
		note := &domain.Note{
			ItemID:     params.ItemID,
			Key:        params.Key,
			Role:       role,
			Body:       params.Body,
			ModifiedAt: now,
		}
		if err != nil || existing == nil {
			note.ID = idgen.New()
			note.CreatedAt = now
		} else {
			note.ID = existing.ID
			note.CreatedAt = existing.CreatedAt
		}
		if err := s.svc.Store.UpsertNote(ctx, tx, note); err != nil {
			return err
		}
		saved = note
		return nil
	})
	if err != nil {
		return resultError(err)
	}
	return resultJSON(map[string]any{"note": noteViewOf(saved)})
}

func (s *Server) manageNotesDelete(ctx context.Context, params ManageNotesParams) (*mcp.CallToolResult, error) {
	if params.ItemID == "" || params.Key == "" {
		return resultError(&engineerr.ValidationError{Field: "itemId/key", Message: "both required"})
	}
	err := withTx(ctx, s.svc.Store, func(tx *sql.Tx) error {
		return s.svc.Store.DeleteNote(ctx, tx, params.ItemID, params.Key)
	})
	if err != nil {
		return resultError(err)
	}
	return resultJSON(map[string]any{"deleted": true})
}

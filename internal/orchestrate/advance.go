package orchestrate

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/engine"
	"github.com/workgraph/workctl/internal/engineerr"
	"github.com/workgraph/workctl/internal/idgen"
	"github.com/workgraph/workctl/internal/obslog"
	"github.com/workgraph/workctl/internal/unblock"
)

// AdvanceRequest is one entry of an advance_item call.
type AdvanceRequest struct {
	ItemID       string
	Trigger      domain.Trigger
	Summary      *string
	StatusLabel  *string
	ApplyCascade *bool // nil means true, per spec.md §4.7
}

func (r AdvanceRequest) applyCascade() bool {
	return r.ApplyCascade == nil || *r.ApplyCascade
}

// CascadeEventResult mirrors cascade.Event for the tool-facing result shape.
type CascadeEventResult struct {
	ItemID       string
	PreviousRole domain.Role
	TargetRole   domain.Role
	Trigger      string
}

// AdvanceResult is one per-item result of an advance_item call.
type AdvanceResult struct {
	ItemID          string
	Applied         bool
	Error           string
	Blockers        []engineerr.Blocker
	GateErrors      []string
	PreviousRole    domain.Role
	NewRole         domain.Role
	CascadeEvents   []CascadeEventResult
	UnblockedItems  []unblock.UnblockedItem
}

// AdvanceSummary is the top-level advance_item summary block.
type AdvanceSummary struct {
	Total     int
	Succeeded int
	Failed    int
}

// AdvanceOutput is the full advance_item result.
type AdvanceOutput struct {
	Results          []AdvanceResult
	Summary          AdvanceSummary
	AllUnblockedItems []unblock.UnblockedItem
}

// AdvanceItems runs each request in order, in its own transaction, never
// letting one entry's failure abort the batch (spec.md §4.7).
func (o *Orchestrator) AdvanceItems(ctx context.Context, requests []AdvanceRequest) (AdvanceOutput, error) {
	out := AdvanceOutput{Summary: AdvanceSummary{Total: len(requests)}}
	seenUnblocked := make(map[string]struct{})

	for _, req := range requests {
		res := o.advanceOne(ctx, req)
		out.Results = append(out.Results, res)
		if res.Applied {
			out.Summary.Succeeded++
			for _, u := range res.UnblockedItems {
				if _, ok := seenUnblocked[u.ItemID]; !ok {
					seenUnblocked[u.ItemID] = struct{}{}
					out.AllUnblockedItems = append(out.AllUnblockedItems, u)
				}
			}
		} else {
			out.Summary.Failed++
		}
	}
	return out, nil
}

func (o *Orchestrator) advanceOne(ctx context.Context, req AdvanceRequest) AdvanceResult {
	res := AdvanceResult{ItemID: req.ItemID}

	var outcome *engine.TransitionOutcome
	var priorRole domain.Role
	var notes []*domain.Note

	txErr := withTx(ctx, o.Store, func(tx *sql.Tx) error {
		item, err := o.Store.GetItem(ctx, tx, req.ItemID)
		if err != nil {
			return err
		}
		priorRole = item.Role

		blockers, err := loadBlockers(ctx, tx, o.Store, item)
		if err != nil {
			return err
		}
		notes, err = o.Store.ListNotesForItem(ctx, tx, item.ID)
		if err != nil {
			return err
		}

		engCtx := engine.Context{
			IncomingBlockers: blockers,
			Notes:            notes,
			SchemaService:    o.SchemaService,
			Now:              time.Now().UTC(),
		}
		outcome, err = engine.Run(item, engine.Request{
			Trigger:     req.Trigger,
			Summary:     req.Summary,
			StatusLabel: req.StatusLabel,
		}, engCtx)
		if err != nil {
			return err
		}

		if err := o.Store.UpdateItem(ctx, tx, outcome.Item); err != nil {
			return err
		}
		outcome.Audit.ID = idgen.New()
		if err := o.Store.InsertRoleTransition(ctx, tx, outcome.Audit); err != nil {
			return err
		}
		return nil
	})

	if txErr != nil {
		res.Applied = false
		res.Error = txErr.Error()
		var blockedErr *engineerr.BlockedByDependencyError
		if errors.As(txErr, &blockedErr) {
			res.Blockers = blockedErr.Blockers
		}
		var gateErr *engineerr.GateCheckFailedError
		if errors.As(txErr, &gateErr) {
			res.GateErrors = gateErr.Missing
		}
		return res
	}

	res.Applied = true
	res.PreviousRole = priorRole
	res.NewRole = outcome.Item.Role
	obslog.LogTransition(req.ItemID, string(req.Trigger), string(priorRole), string(outcome.Item.Role), "")

	if outcome.CascadeCandidate != nil && req.applyCascade() {
		events, err := o.runCascade(ctx, outcome.CascadeCandidate.ItemID)
		if err != nil {
			res.Error = "cascade warning: " + err.Error()
		}
		for _, e := range events {
			res.CascadeEvents = append(res.CascadeEvents, CascadeEventResult{
				ItemID: e.ItemID, PreviousRole: e.PreviousRole, TargetRole: e.TargetRole, Trigger: e.Trigger,
			})
		}
	}

	if outcome.RunUnblockProbe {
		// Open Question 3 (spec.md §9): unblock detection runs for the
		// item itself plus every cascaded parent, deduped by id. See
		// DESIGN.md.
		probeIDs := []string{req.ItemID}
		for _, e := range res.CascadeEvents {
			probeIDs = append(probeIDs, e.ItemID)
		}
		seen := make(map[string]struct{})
		_ = withTx(ctx, o.Store, func(tx *sql.Tx) error {
			for _, id := range probeIDs {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				found, err := o.runUnblock(ctx, tx, id)
				if err != nil {
					return err
				}
				res.UnblockedItems = append(res.UnblockedItems, found...)
			}
			return nil
		})
	}

	return res
}

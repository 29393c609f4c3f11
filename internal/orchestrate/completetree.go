package orchestrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/engine"
	"github.com/workgraph/workctl/internal/engineerr"
	"github.com/workgraph/workctl/internal/idgen"
	"github.com/workgraph/workctl/internal/obslog"
	"github.com/workgraph/workctl/internal/store/storetypes"
)

// CompleteTreeRequest selects the target set by exactly one of RootID or
// ItemIDs, and the trigger to sweep with (complete or cancel).
type CompleteTreeRequest struct {
	RootID  *string
	ItemIDs []string
	Trigger domain.Trigger
}

// CompleteTreeResult is one per-item result of a complete_tree call.
type CompleteTreeResult struct {
	ItemID     string
	Applied    bool
	Skipped    bool
	Error      string
	GateErrors []string
}

// CompleteTreeSummary is the top-level complete_tree summary block.
type CompleteTreeSummary struct {
	Total        int
	Completed    int
	Skipped      int
	GateFailures int
}

// CompleteTreeOutput is the full complete_tree result.
type CompleteTreeOutput struct {
	Results []CompleteTreeResult
	Summary CompleteTreeSummary
}

// CompleteTree implements the bulk orchestrator of spec.md §4.8: collect
// the target set, topologically sort it by blocking edges, then sweep in
// order, propagating skip/gate-failure to everything downstream of a
// stopped item within the target set.
func (o *Orchestrator) CompleteTree(ctx context.Context, req CompleteTreeRequest) (CompleteTreeOutput, error) {
	if req.Trigger != domain.TriggerComplete && req.Trigger != domain.TriggerCancel {
		return CompleteTreeOutput{}, fmt.Errorf("%w: complete_tree trigger must be complete or cancel, got %q", engineerr.ErrValidation, req.Trigger)
	}
	if (req.RootID != nil) == (len(req.ItemIDs) > 0) {
		return CompleteTreeOutput{}, fmt.Errorf("%w: complete_tree requires exactly one of rootId or itemIds", engineerr.ErrValidation)
	}

	var targets []*domain.WorkItem
	err := withTx(ctx, o.Store, func(tx *sql.Tx) error {
		var err error
		if req.RootID != nil {
			targets, err = o.Store.ListDescendants(ctx, tx, *req.RootID)
			return err
		}
		for _, id := range req.ItemIDs {
			item, err := o.Store.GetItem(ctx, tx, id)
			if err != nil {
				return err
			}
			targets = append(targets, item)
		}
		return nil
	})
	if err != nil {
		return CompleteTreeOutput{}, err
	}

	ids := make([]string, len(targets))
	byID := make(map[string]*domain.WorkItem, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
		byID[t.ID] = t
	}

	var edges []storetypes.BlockingEdge
	err = withTx(ctx, o.Store, func(tx *sql.Tx) error {
		var err error
		edges, err = o.Store.ListBlockingEdgesAmong(ctx, tx, ids)
		return err
	})
	if err != nil {
		return CompleteTreeOutput{}, err
	}

	order, err := topoSort(ids, edges)
	if err != nil {
		return CompleteTreeOutput{}, err
	}

	// downstream[x] = items x directly blocks, restricted to the target set.
	downstream := make(map[string][]string)
	for _, e := range edges {
		downstream[e.BlockerID] = append(downstream[e.BlockerID], e.BlockedID)
	}

	out := CompleteTreeOutput{Summary: CompleteTreeSummary{Total: len(order)}}
	blockedByPredecessor := make(map[string]bool)

	for _, id := range order {
		item := byID[id]
		if item.Role == domain.RoleTerminal {
			out.Results = append(out.Results, CompleteTreeResult{ItemID: id, Applied: false, Skipped: true})
			out.Summary.Skipped++
			continue
		}
		if blockedByPredecessor[id] {
			out.Results = append(out.Results, CompleteTreeResult{ItemID: id, Applied: false, Skipped: true})
			out.Summary.Skipped++
			propagate(downstream, blockedByPredecessor, id)
			continue
		}

		res := o.completeOne(ctx, item, req.Trigger)
		out.Results = append(out.Results, res)
		if res.Applied {
			out.Summary.Completed++
		} else if len(res.GateErrors) > 0 {
			out.Summary.GateFailures++
			propagate(downstream, blockedByPredecessor, id)
		} else {
			out.Summary.Skipped++
			propagate(downstream, blockedByPredecessor, id)
		}
	}

	return out, nil
}

func propagate(downstream map[string][]string, blocked map[string]bool, id string) {
	for _, next := range downstream[id] {
		blocked[next] = true
	}
}

func (o *Orchestrator) completeOne(ctx context.Context, item *domain.WorkItem, trigger domain.Trigger) CompleteTreeResult {
	res := CompleteTreeResult{ItemID: item.ID}

	var outcome *engine.TransitionOutcome
	txErr := withTx(ctx, o.Store, func(tx *sql.Tx) error {
		fresh, err := o.Store.GetItem(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		blockers, err := loadBlockers(ctx, tx, o.Store, fresh)
		if err != nil {
			return err
		}
		notes, err := o.Store.ListNotesForItem(ctx, tx, fresh.ID)
		if err != nil {
			return err
		}
		outcome, err = engine.Run(fresh, engine.Request{Trigger: trigger}, engine.Context{
			IncomingBlockers: blockers,
			Notes:            notes,
			SchemaService:    o.SchemaService,
			Now:              time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := o.Store.UpdateItem(ctx, tx, outcome.Item); err != nil {
			return err
		}
		outcome.Audit.ID = idgen.New()
		return o.Store.InsertRoleTransition(ctx, tx, outcome.Audit)
	})
	if txErr != nil {
		res.Error = txErr.Error()
		var gateErr *engineerr.GateCheckFailedError
		if errors.As(txErr, &gateErr) {
			res.GateErrors = gateErr.Missing
		}
		return res
	}

	res.Applied = true
	obslog.LogTransition(item.ID, string(trigger), string(item.Role), string(outcome.Item.Role), "complete_tree")

	if outcome.CascadeCandidate != nil {
		_, _ = o.runCascade(ctx, outcome.CascadeCandidate.ItemID)
	}
	return res
}

// topoSort orders ids so that for every edge blocker->blocked, blocker
// precedes blocked (Kahn's algorithm). Returns CyclicDependency if a cycle
// is present, which per spec.md §4.2 should not occur in a well-formed
// blocking subgraph.
func topoSort(ids []string, edges []storetypes.BlockingEdge) ([]string, error) {
	indegree := make(map[string]int, len(ids))
	adj := make(map[string][]string)
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		indegree[id] = 0
		inSet[id] = true
	}
	for _, e := range edges {
		if !inSet[e.BlockerID] || !inSet[e.BlockedID] {
			continue
		}
		adj[e.BlockerID] = append(adj[e.BlockerID], e.BlockedID)
		indegree[e.BlockedID]++
	}

	var queue []string
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adj[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(ids) {
		return nil, engineerr.ErrCyclicDependency
	}
	return order, nil
}

package mcptool

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/engineerr"
	"github.com/workgraph/workctl/internal/orchestrate"
	"github.com/workgraph/workctl/internal/unblock"
)

type advanceResultView struct {
	ItemID         string               `json:"itemId"`
	Applied        bool                 `json:"applied"`
	Error          string               `json:"error,omitempty"`
	Blockers       []blockerView        `json:"blockers,omitempty"`
	GateErrors     []string             `json:"gateErrors,omitempty"`
	PreviousRole   string               `json:"previousRole,omitempty"`
	NewRole        string               `json:"newRole,omitempty"`
	CascadeEvents  []cascadeEventView   `json:"cascadeEvents,omitempty"`
	UnblockedItems []unblockedItemView  `json:"unblockedItems,omitempty"`
}

type blockerView struct {
	BlockerID    string `json:"blockerId"`
	BlockerTitle string `json:"blockerTitle"`
	BlockerRole  string `json:"blockerRole"`
	RequiredRole string `json:"requiredRole"`
}

type cascadeEventView struct {
	ItemID       string `json:"itemId"`
	PreviousRole string `json:"previousRole"`
	TargetRole   string `json:"targetRole"`
	Trigger      string `json:"trigger"`
}

type unblockedItemView struct {
	ItemID string `json:"itemId"`
	Title  string `json:"title"`
}

func (s *Server) handleAdvanceItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params AdvanceItemParams
	if err := decodeArgs(req, &params); err != nil {
		return resultError(err)
	}

	requests := make([]orchestrate.AdvanceRequest, 0, len(params.Transitions))
	for _, e := range params.Transitions {
		trig, err := domain.ParseTrigger(e.Trigger)
		if err != nil {
			return resultError(err)
		}
		requests = append(requests, orchestrate.AdvanceRequest{
			ItemID:       e.ItemID,
			Trigger:      trig,
			Summary:      e.Summary,
			StatusLabel:  e.StatusLabel,
			ApplyCascade: e.ApplyCascade,
		})
	}

	out, err := s.svc.Orchestrator.AdvanceItems(ctx, requests)
	if err != nil {
		return resultError(err)
	}

	results := make([]advanceResultView, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, advanceResultView{
			ItemID:         r.ItemID,
			Applied:        r.Applied,
			Error:          r.Error,
			Blockers:       blockerViews(r.Blockers),
			GateErrors:     r.GateErrors,
			PreviousRole:   string(r.PreviousRole),
			NewRole:        string(r.NewRole),
			CascadeEvents:  cascadeEventViews(r.CascadeEvents),
			UnblockedItems: unblockedItemViews(r.UnblockedItems),
		})
	}

	return resultJSON(map[string]any{
		"results": results,
		"summary": map[string]any{
			"total":     out.Summary.Total,
			"succeeded": out.Summary.Succeeded,
			"failed":    out.Summary.Failed,
		},
		"allUnblockedItems": unblockedItemViews(out.AllUnblockedItems),
	})
}

func blockerViews(bs []engineerr.Blocker) []blockerView {
	out := make([]blockerView, 0, len(bs))
	for _, b := range bs {
		out = append(out, blockerView{
			BlockerID:    b.BlockerID,
			BlockerTitle: b.BlockerTitle,
			BlockerRole:  b.BlockerRole,
			RequiredRole: b.RequiredRole,
		})
	}
	return out
}

func cascadeEventViews(es []orchestrate.CascadeEventResult) []cascadeEventView {
	out := make([]cascadeEventView, 0, len(es))
	for _, e := range es {
		out = append(out, cascadeEventView{
			ItemID:       e.ItemID,
			PreviousRole: string(e.PreviousRole),
			TargetRole:   string(e.TargetRole),
			Trigger:      e.Trigger,
		})
	}
	return out
}

func unblockedItemViews(items []unblock.UnblockedItem) []unblockedItemView {
	out := make([]unblockedItemView, 0, len(items))
	for _, it := range items {
		out = append(out, unblockedItemView{ItemID: it.ItemID, Title: it.Title})
	}
	return out
}

func (s *Server) handleCompleteTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params CompleteTreeParams
	if err := decodeArgs(req, &params); err != nil {
		return resultError(err)
	}
	trig, err := domain.ParseTrigger(params.Trigger)
	if err != nil {
		return resultError(err)
	}

	out, err := s.svc.Orchestrator.CompleteTree(ctx, orchestrate.CompleteTreeRequest{
		RootID:  params.RootID,
		ItemIDs: params.ItemIDs,
		Trigger: trig,
	})
	if err != nil {
		return resultError(err)
	}

	type resultView struct {
		ItemID     string   `json:"itemId"`
		Applied    bool     `json:"applied"`
		Skipped    bool     `json:"skipped"`
		Error      string   `json:"error,omitempty"`
		GateErrors []string `json:"gateErrors,omitempty"`
	}
	results := make([]resultView, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, resultView{
			ItemID: r.ItemID, Applied: r.Applied, Skipped: r.Skipped,
			Error: r.Error, GateErrors: r.GateErrors,
		})
	}

	return resultJSON(map[string]any{
		"results": results,
		"summary": map[string]any{
			"total":        out.Summary.Total,
			"completed":    out.Summary.Completed,
			"skipped":      out.Summary.Skipped,
			"gateFailures": out.Summary.GateFailures,
		},
	})
}

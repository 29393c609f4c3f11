package gatecheck

import (
	"github.com/workgraph/workctl/internal/domain"
)

// GateStatus is the outcome of evaluating an item's readiness to enter dest.
type GateStatus struct {
	CanAdvance bool
	Missing    []string
	Phase      domain.Role
}

// CheckGate evaluates whether item may enter dest given its persisted notes
// and, for a requiresVerification item entering TERMINAL, a non-empty
// effective summary (the item's own summary, or the trigger's summary
// parameter when provided — callers pass whichever has already been
// resolved via effectiveSummary).
func CheckGate(svc NoteSchemaService, item *domain.WorkItem, dest domain.Role, effectiveSummary string, notes []*domain.Note) GateStatus {
	status := GateStatus{CanAdvance: true, Phase: dest}

	haveNote := make(map[string]bool, len(notes))
	for _, n := range notes {
		if n.HasBody() {
			haveNote[n.Key] = true
		}
	}

	destRank, destRanked := domain.Rank(dest)
	for _, req := range svc.RequirementsForTags(item.TagSet()) {
		if !req.Required {
			continue
		}
		reqRank, reqRanked := domain.Rank(req.Role)
		if destRanked && reqRanked && reqRank > destRank {
			// This note is only expected once the item has gone further
			// than dest; not yet due.
			continue
		}
		if !haveNote[req.Key] {
			status.Missing = append(status.Missing, req.Key)
		}
	}

	if dest == domain.RoleTerminal && item.RequiresVerification && effectiveSummary == "" {
		status.Missing = append(status.Missing, "summary")
	}

	status.CanAdvance = len(status.Missing) == 0
	return status
}

// Package gatecheck implements the note-schema-driven pre-transition gate:
// for a destination role, which notes must already be on file, and whether
// a requiresVerification item carries a non-empty summary.
package gatecheck

import (
	"github.com/workgraph/workctl/internal/domain"
)

// Requirement is one required-note entry in a tag's note schema.
type Requirement struct {
	Key         string
	Role        domain.Role
	Required    bool
	Description string
}

// NoteSchemaService maps a tag set to the note requirements that apply to
// items carrying those tags. Implementations are expected to be pure,
// read-only functions safe to share across concurrent callers without
// synchronization.
type NoteSchemaService interface {
	RequirementsForTags(tags map[string]struct{}) []Requirement
}

// NoOpNoteSchemaService returns no requirements for any tag set, so the
// engine runs in gate-free mode.
type NoOpNoteSchemaService struct{}

func (NoOpNoteSchemaService) RequirementsForTags(map[string]struct{}) []Requirement {
	return nil
}

// StaticSchemaService serves requirements from an in-memory tag->[]Requirement
// map, used directly by tests and as the decoded form of the YAML schema
// file loaded by FileSchemaService.
type StaticSchemaService struct {
	byTag map[string][]Requirement
}

// NewStaticSchemaService copies byTag so later mutation by the caller
// cannot race with concurrent reads.
func NewStaticSchemaService(byTag map[string][]Requirement) *StaticSchemaService {
	cp := make(map[string][]Requirement, len(byTag))
	for k, v := range byTag {
		cp[k] = append([]Requirement(nil), v...)
	}
	return &StaticSchemaService{byTag: cp}
}

func (s *StaticSchemaService) RequirementsForTags(tags map[string]struct{}) []Requirement {
	var out []Requirement
	seen := make(map[string]bool)
	for tag := range tags {
		for _, req := range s.byTag[tag] {
			if seen[req.Key] {
				continue
			}
			seen[req.Key] = true
			out = append(out, req)
		}
	}
	return out
}

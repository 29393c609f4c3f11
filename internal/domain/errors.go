package domain

import "errors"

// Parse-level sentinel errors. These are the only errors domain itself
// raises; the broader taxonomy (blocking, gating, persistence) lives in
// internal/engineerr, consumed by the engine and orchestrators.
var (
	ErrInvalidRole           = errors.New("invalid role")
	ErrUnknownTrigger        = errors.New("unknown trigger")
	ErrInvalidDependencyType = errors.New("invalid dependency type")
	ErrInvalidPriority       = errors.New("invalid priority")
	ErrInvalidTagFormat      = errors.New("invalid tag format")
)

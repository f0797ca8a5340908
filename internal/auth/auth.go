// Package auth defines the access-control boundary consumed by the engine.
// The real policy lives in the platform's session layer; the engine only
// requires the check to pass before any job record is created.
package auth

import "context"

// Action identifies an engine operation subject to authorization
type Action string

const (
	ActionBackup  Action = "backup"
	ActionRestore Action = "restore"
	ActionExport  Action = "export"
)

// Authorizer answers whether an actor may perform an action, optionally
// scoped to one tenant. tenantID is empty for system-wide operations.
type Authorizer interface {
	IsAuthorized(ctx context.Context, actorID string, action Action, tenantID string) bool
}

// AllowAll authorizes every request. Used by the CLI, which already runs
// with operator credentials, and by tests.
type AllowAll struct{}

// IsAuthorized always returns true
func (AllowAll) IsAuthorized(context.Context, string, Action, string) bool { return true }

// StaticAuthorizer authorizes a fixed set of actor ids per action.
type StaticAuthorizer struct {
	// Grants maps action to the actor ids allowed to perform it.
	Grants map[Action][]string
}

// IsAuthorized reports whether actorID is granted the action
func (s *StaticAuthorizer) IsAuthorized(_ context.Context, actorID string, action Action, _ string) bool {
	for _, id := range s.Grants[action] {
		if id == actorID {
			return true
		}
	}
	return false
}

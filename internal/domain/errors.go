package domain

import "fmt"

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError reports that the actor's role cannot perform the
// command on the entity.
type AuthorizationError struct {
	Role   Role
	Action string
}

func (e AuthorizationError) Error() string {
	return fmt.Sprintf("role %s may not perform %s", e.Role, e.Action)
}

// InvalidStateError reports a transition attempted from the wrong source
// state.
type InvalidStateError struct {
	Entity string
	ID     string
	Status string
	Target string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s is %s; cannot move to %s", e.Entity, e.ID, e.Status, e.Target)
}

// NotFoundError reports a missing referenced entity or user.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError reports an operation that would violate a uniqueness or
// state invariant, such as bidding on a non-pending request.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string { return e.Reason }

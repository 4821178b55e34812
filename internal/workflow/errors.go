package workflow

import "fmt"

// PermissionDeniedError indicates the actor lacks the capability a
// transition requires.
type PermissionDeniedError struct {
	Capability string
}

func (e PermissionDeniedError) Error() string {
	return fmt.Sprintf("capability %s required", e.Capability)
}

// InvalidTransitionError indicates the requested target is not reachable
// from the entity's current status. Stale-state races surface as this error
// too: the declared source state no longer matches reality.
type InvalidTransitionError struct {
	Kind string
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition %s -> %s", e.Kind, e.From, e.To)
}

// GuardFailedError indicates a structural precondition of the transition is
// unmet, independent of who requested it.
type GuardFailedError struct {
	Reason string
}

func (e GuardFailedError) Error() string {
	return fmt.Sprintf("guard failed: %s", e.Reason)
}

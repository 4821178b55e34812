// Package workflow implements the entity lifecycle state machines for jobs,
// design projects and payment records, and the coordinator that validates
// and applies transitions. Everything here is pure: the coordinator never
// mutates its input and performs no I/O beyond reading the injected clock.
package workflow

import (
	"fmt"
	"sort"
	"time"

	"printline/internal/authz"
	"printline/internal/domain"
)

// Payload carries the caller-supplied fields a transition may consume.
// Each transition declares which fields it reads; the rest are ignored.
type Payload struct {
	ApproverID string `json:"approver_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
}

// Rule describes one edge of a machine's transition table.
type Rule[E any] struct {
	// Capability is the token an actor must hold to take this edge.
	Capability string
	// Guard checks structural preconditions. A nil guard always passes.
	// Returned errors become GuardFailedError reasons.
	Guard func(e E, p Payload) error
	// Apply stamps the transition's derived fields and returns the new
	// value. The status itself is set by the coordinator.
	Apply func(e E, now time.Time, p Payload) E
}

// Machine is a transition table for one entity kind.
type Machine[E any] struct {
	kind      string
	status    func(E) string
	setStatus func(E, string) E
	table     map[string]map[string]Rule[E]
}

// newMachine validates the table and panics on construction defects: a
// malformed table is a programming error, never a runtime condition.
func newMachine[E any](kind string, status func(E) string, setStatus func(E, string) E, table map[string]map[string]Rule[E]) *Machine[E] {
	if kind == "" || status == nil || setStatus == nil {
		panic("workflow: machine requires kind and status accessors")
	}
	for from, edges := range table {
		for to, rule := range edges {
			if rule.Capability == "" {
				panic(fmt.Sprintf("workflow: %s transition %s -> %s has no capability", kind, from, to))
			}
			if from == to {
				panic(fmt.Sprintf("workflow: %s transition %s -> %s is a self-loop", kind, from, to))
			}
		}
	}
	return &Machine[E]{kind: kind, status: status, setStatus: setStatus, table: table}
}

// Kind returns the machine's entity kind.
func (m *Machine[E]) Kind() string { return m.kind }

// AllowedTransitions returns the statically reachable targets from a status,
// sorted. Guards may still reject individual requests.
func (m *Machine[E]) AllowedTransitions(from string) []string {
	edges := m.table[from]
	if len(edges) == 0 {
		return nil
	}
	targets := make([]string, 0, len(edges))
	for to := range edges {
		targets = append(targets, to)
	}
	sort.Strings(targets)
	return targets
}

// RequiredCapability returns the token the edge requires, and whether the
// edge exists at all.
func (m *Machine[E]) RequiredCapability(from, to string) (string, bool) {
	rule, ok := m.table[from][to]
	if !ok {
		return "", false
	}
	return rule.Capability, true
}

// Terminal reports whether a status has no outgoing transitions.
func (m *Machine[E]) Terminal(status string) bool {
	return len(m.table[status]) == 0
}

// Coordinator validates a requested transition against the machine and the
// actor's capabilities, applies it, and returns the updated entity value.
type Coordinator[E any] struct {
	Machine *Machine[E]
	Perms   *authz.Registry
	Now     func() time.Time
}

func (c Coordinator[E]) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Transition runs the full decision sequence: table legality, capability,
// guard, then apply. Failures are returned as one of the three typed errors
// so callers can render the correct message; the input value is never
// modified.
func (c Coordinator[E]) Transition(entity E, target string, actor domain.Actor, p Payload) (E, error) {
	from := c.Machine.status(entity)
	rule, ok := c.Machine.table[from][target]
	if !ok {
		return entity, InvalidTransitionError{Kind: c.Machine.kind, From: from, To: target}
	}
	if !c.Perms.HasCapability(actor, rule.Capability) {
		return entity, PermissionDeniedError{Capability: rule.Capability}
	}
	if rule.Guard != nil {
		if err := rule.Guard(entity, p); err != nil {
			return entity, GuardFailedError{Reason: err.Error()}
		}
	}
	next := entity
	if rule.Apply != nil {
		next = rule.Apply(entity, c.now().UTC(), p)
	}
	return c.Machine.setStatus(next, target), nil
}

// Timestamp formatting shared by the machines.

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func stampPtr(t time.Time) *string {
	s := stamp(t)
	return &s
}

func parseStamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Package authz resolves shop roles and departments into capability tokens.
// Lookups are pure and total: an unknown actor, an unknown selector, or an
// inactive definition always resolves to "denied", never to an error.
package authz

import (
	"sort"

	"printline/internal/domain"
)

// Definition is one role or department grant record. An inactive definition
// grants nothing regardless of the tokens it lists.
type Definition struct {
	ID          string
	Name        string
	Permissions []string
	Active      bool
}

// Registry holds the shop's role and department definitions. The zero value
// denies everything.
type Registry struct {
	roles       map[string]Definition
	departments map[string]Definition
}

// NewRegistry builds a registry from role and department definitions keyed
// by selector ID.
func NewRegistry(roles, departments map[string]Definition) *Registry {
	r := &Registry{
		roles:       make(map[string]Definition, len(roles)),
		departments: make(map[string]Definition, len(departments)),
	}
	for id, def := range roles {
		def.ID = id
		r.roles[id] = def
	}
	for id, def := range departments {
		def.ID = id
		r.departments[id] = def
	}
	return r
}

// HasCapability reports whether the actor's role or department grants the
// token. Role and department are evaluated as a union: either selector
// granting the token is sufficient.
func (r *Registry) HasCapability(actor domain.Actor, token string) bool {
	if r == nil || token == "" {
		return false
	}
	if grantsToken(r.roles, actor.Role, token) {
		return true
	}
	return grantsToken(r.departments, actor.Department, token)
}

// CapabilitiesOf returns the sorted union of tokens the actor's role and
// department grant. The result agrees token-by-token with HasCapability.
func (r *Registry) CapabilitiesOf(actor domain.Actor) []string {
	if r == nil {
		return nil
	}
	set := map[string]struct{}{}
	collectTokens(r.roles, actor.Role, set)
	collectTokens(r.departments, actor.Department, set)
	if len(set) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(set))
	for t := range set {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// Roles returns the known role definitions, sorted by ID.
func (r *Registry) Roles() []Definition {
	return sortedDefinitions(r.roles)
}

// Departments returns the known department definitions, sorted by ID.
func (r *Registry) Departments() []Definition {
	return sortedDefinitions(r.departments)
}

func grantsToken(defs map[string]Definition, selector, token string) bool {
	if selector == "" {
		return false
	}
	def, ok := defs[selector]
	if !ok || !def.Active {
		return false
	}
	for _, p := range def.Permissions {
		if p == token {
			return true
		}
	}
	return false
}

func collectTokens(defs map[string]Definition, selector string, into map[string]struct{}) {
	if selector == "" {
		return
	}
	def, ok := defs[selector]
	if !ok || !def.Active {
		return
	}
	for _, p := range def.Permissions {
		if p != "" {
			into[p] = struct{}{}
		}
	}
}

func sortedDefinitions(defs map[string]Definition) []Definition {
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

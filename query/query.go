package query

import (
	"slices"
	"strings"

	"github.com/poiesic/textidx/core"
)

// AndQuery is a conjunction of terms. A record matches when it holds every
// term and falls inside Scope.
type AndQuery struct {
	Scope core.Scope
	Terms []string // Lowercased, unique, in order of first appearance
}

// NewAndQuery creates a group from raw terms. Terms are trimmed and
// lowercased; empty and repeated terms are dropped. The first remaining term
// drives the index lookup.
func NewAndQuery(terms []string, scope core.Scope) AndQuery {
	return AndQuery{Scope: scope, Terms: normalizeQueryTerms(terms)}
}

// IsEmpty reports whether the group has no terms.
func (g AndQuery) IsEmpty() bool {
	return len(g.Terms) == 0
}

func (g AndQuery) String() string {
	parts := make([]string, 0, len(g.Terms)+2)
	if g.Scope.Type != "" {
		parts = append(parts, "type:"+string(g.Scope.Type))
	}
	if g.Scope.Field != "" {
		parts = append(parts, "field:"+string(g.Scope.Field))
	}
	parts = append(parts, g.Terms...)
	return strings.Join(parts, " ")
}

func (g AndQuery) clone() AndQuery {
	return AndQuery{Scope: g.Scope, Terms: slices.Clone(g.Terms)}
}

// Query is an ordered disjunction of AndQuery groups. Earlier groups take
// precedence when results are paged. The zero value is an empty query.
type Query struct {
	groups []AndQuery
}

// New creates a query from groups. Group terms are normalized as by NewAndQuery.
func New(groups ...AndQuery) Query {
	q := Query{groups: make([]AndQuery, 0, len(groups))}
	for _, g := range groups {
		q.groups = append(q.groups, NewAndQuery(g.Terms, g.Scope))
	}
	return q
}

// AddAndQuery returns a copy of q with a new group appended.
func (q Query) AddAndQuery(terms []string, scope core.Scope) Query {
	next := q.copyGroups(1)
	next.groups = append(next.groups, NewAndQuery(terms, scope))
	return next
}

// RemoveAndQuery returns a copy of q without the group at index.
func (q Query) RemoveAndQuery(index int) Query {
	next := q.copyGroups(0)
	if index < 0 || index >= len(next.groups) {
		return next
	}
	next.groups = slices.Delete(next.groups, index, index+1)
	return next
}

// ReplaceAndQuery returns a copy of q with the group at index replaced by g.
func (q Query) ReplaceAndQuery(index int, g AndQuery) Query {
	next := q.copyGroups(0)
	if index < 0 || index >= len(next.groups) {
		return next
	}
	next.groups[index] = NewAndQuery(g.Terms, g.Scope)
	return next
}

// ChangeScope returns a copy of q with the scope of the group at index replaced.
func (q Query) ChangeScope(index int, scope core.Scope) Query {
	next := q.copyGroups(0)
	if index < 0 || index >= len(next.groups) {
		return next
	}
	next.groups[index].Scope = scope
	return next
}

// IsEmpty reports whether q has no groups or only groups without terms.
func (q Query) IsEmpty() bool {
	for _, g := range q.groups {
		if !g.IsEmpty() {
			return false
		}
	}
	return true
}

// Groups returns a copy of the groups in order.
func (q Query) Groups() []AndQuery {
	return q.copyGroups(0).groups
}

// Len returns the number of groups.
func (q Query) Len() int {
	return len(q.groups)
}

// String renders q in the syntax accepted by Parse.
func (q Query) String() string {
	parts := make([]string, 0, len(q.groups))
	for _, g := range q.groups {
		parts = append(parts, g.String())
	}
	return strings.Join(parts, " | ")
}

func (q Query) copyGroups(extra int) Query {
	groups := make([]AndQuery, 0, len(q.groups)+extra)
	for _, g := range q.groups {
		groups = append(groups, g.clone())
	}
	return Query{groups: groups}
}

// normalizeQueryTerms lowercases and trims terms, dropping empty strings and
// repeats while keeping the order of first appearance.
func normalizeQueryTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || slices.Contains(out, term) {
			continue
		}
		out = append(out, term)
	}
	return out
}

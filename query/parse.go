package query

import (
	"fmt"
	"strings"

	"github.com/poiesic/textidx/analysis"
	"github.com/poiesic/textidx/core"
)

// Parse builds a query from text. Groups are separated by "|" or the word
// OR. Within a group, type:<type> and field:<field> set the scope and every
// other word contributes terms, split the same way indexed content is.
//
//	hello world | type:note field:content fox
func Parse(text string) (Query, error) {
	var q Query
	for _, clause := range splitGroups(text) {
		var scope core.Scope
		var terms []string
		for _, word := range clause {
			switch {
			case strings.HasPrefix(word, "type:"):
				scope.Type = core.EntityType(strings.ToLower(strings.TrimPrefix(word, "type:")))
				if !scope.Type.Valid() {
					return Query{}, fmt.Errorf("%w: unknown entity type %q", ErrInvalidQuery, scope.Type)
				}
			case strings.HasPrefix(word, "field:"):
				scope.Field = core.Field(strings.ToLower(strings.TrimPrefix(word, "field:")))
				if !scope.Field.Valid() {
					return Query{}, fmt.Errorf("%w: unknown field %q", ErrInvalidQuery, scope.Field)
				}
			default:
				terms = append(terms, analysis.SplitCompound(strings.ToLower(word))...)
			}
		}
		q = q.AddAndQuery(terms, scope)
	}
	return q, nil
}

// splitGroups splits text into the words of each OR clause, dropping
// clauses without words.
func splitGroups(text string) [][]string {
	var groups [][]string
	for _, part := range strings.Split(text, "|") {
		var current []string
		for _, word := range strings.Fields(part) {
			if word == "OR" {
				if len(current) > 0 {
					groups = append(groups, current)
				}
				current = nil
				continue
			}
			current = append(current, word)
		}
		if len(current) > 0 {
			groups = append(groups, current)
		}
	}
	return groups
}

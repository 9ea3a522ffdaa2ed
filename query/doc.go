// Package query defines the boolean query model: an ordered disjunction of
// term conjunctions, each optionally scoped to an entity type and field.
//
// Query values are immutable. Every mutator returns a new Query and leaves
// the receiver untouched, so a Query can be shared between goroutines.
package query

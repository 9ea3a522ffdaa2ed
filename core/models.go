package core

import (
	"encoding/binary"
	"slices"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for index records.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// EntityType identifies the category of an indexed entity.
type EntityType string

const (
	// EntityTabspace is a saved group of tabs.
	EntityTabspace EntityType = "tabspace"
	// EntityTab is a single saved tab.
	EntityTab EntityType = "tab"
	// EntityNote is a free-form note.
	EntityNote EntityType = "note"
	// EntityBookmark is a bookmark.
	EntityBookmark EntityType = "bookmark"
)

// EntityTypes lists every known entity type.
var EntityTypes = []EntityType{EntityTabspace, EntityTab, EntityNote, EntityBookmark}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return slices.Contains(EntityTypes, t)
}

// Field identifies which textual attribute of an entity a record indexes.
type Field string

const (
	FieldTitle   Field = "title"
	FieldURL     Field = "url"
	FieldName    Field = "name"
	FieldContent Field = "content"
)

// Fields lists every known field.
var Fields = []Field{FieldTitle, FieldURL, FieldName, FieldContent}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	return slices.Contains(Fields, f)
}

// Scope narrows which index records a query group may match.
// A zero Type or Field matches any value.
type Scope struct {
	Type  EntityType
	Field Field
}

// IsZero reports whether the scope matches every record.
func (s Scope) IsZero() bool {
	return s.Type == "" && s.Field == ""
}

// Matches reports whether the record falls inside the scope.
func (s Scope) Matches(record *IndexRecord) bool {
	if record == nil {
		return false
	}
	if s.Type != "" && record.Type != s.Type {
		return false
	}
	if s.Field != "" && record.Field != s.Field {
		return false
	}
	return true
}

func (s Scope) String() string {
	var parts []string
	if s.Type != "" {
		parts = append(parts, "type:"+string(s.Type))
	}
	if s.Field != "" {
		parts = append(parts, "field:"+string(s.Field))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// IndexRecord holds the normalized terms of one field of one entity.
// At most one record exists per (Owner, Type, Field).
type IndexRecord struct {
	Id            ID
	Owner         string // Entity whose text is indexed
	UltimateOwner string // Top-level container search hits are attributed to
	Type          EntityType
	Field         Field
	Terms         []string  // Sorted, unique, non-empty
	InsertedAt    time.Time // When the record was first created
	UpdatedAt     time.Time // When the terms were last replaced
}

// Key returns the compound (owner,type,field) tuple identifying the record.
func (r *IndexRecord) Key() string {
	return CompoundKey(r.Owner, r.Type, r.Field)
}

// HasAllTerms reports whether every term is a member of the record's term set.
// Records without terms never match.
func (r *IndexRecord) HasAllTerms(terms []string) bool {
	if r == nil || len(r.Terms) == 0 {
		return false
	}
	for _, term := range terms {
		if _, found := slices.BinarySearch(r.Terms, term); !found {
			return false
		}
	}
	return true
}

// HasTerm reports whether term is a member of the record's term set.
func (r *IndexRecord) HasTerm(term string) bool {
	return r.HasAllTerms([]string{term})
}

// CompoundKey formats an (owner,type,field) tuple.
func CompoundKey(owner string, entityType EntityType, field Field) string {
	return "(" + owner + "," + string(entityType) + "," + string(field) + ")"
}

// NormalizeTerms converts a list of terms into set form: sorted, without
// duplicates and without empty strings. The input is not modified.
func NormalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if term != "" {
			out = append(out, term)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

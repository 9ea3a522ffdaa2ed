package ingestion

import (
	"fmt"

	"github.com/poiesic/textidx/core"
)

// Document is an entity whose text fields are indexed together.
// It is implemented by TabspaceDocument, TabDocument, NoteDocument and
// BookmarkDocument only.
type Document interface {
	// OwnerID returns the identifier of the entity.
	OwnerID() string

	// EntityType returns the kind of the entity.
	EntityType() core.EntityType

	document()
}

// TabspaceDocument is a saved group of tabs. Its name is indexed.
type TabspaceDocument struct {
	ID   string
	Name string
}

// TabDocument is a tab saved in a tabspace. Its title and URL are indexed
// and hits are attributed to the tabspace.
type TabDocument struct {
	ID         string
	TabspaceID string
	Title      string
	URL        string
}

// NoteDocument is a note, optionally attached to a tabspace. Its name and
// content are indexed.
type NoteDocument struct {
	ID         string
	TabspaceID string
	Name       string
	Content    string
}

// BookmarkDocument is a bookmark. Its title and URL are indexed.
type BookmarkDocument struct {
	ID    string
	Title string
	URL   string
}

func (d TabspaceDocument) OwnerID() string             { return d.ID }
func (d TabspaceDocument) EntityType() core.EntityType { return core.EntityTabspace }
func (TabspaceDocument) document()                     {}

func (d TabDocument) OwnerID() string             { return d.ID }
func (d TabDocument) EntityType() core.EntityType { return core.EntityTab }
func (TabDocument) document()                     {}

func (d NoteDocument) OwnerID() string             { return d.ID }
func (d NoteDocument) EntityType() core.EntityType { return core.EntityNote }
func (NoteDocument) document()                     {}

func (d BookmarkDocument) OwnerID() string             { return d.ID }
func (d BookmarkDocument) EntityType() core.EntityType { return core.EntityBookmark }
func (BookmarkDocument) document()                     {}

// addRequests returns one request per indexed field of doc. Fields with
// empty content are included so that stale records get removed.
func addRequests(doc Document) ([]AddToIndexRequest, error) {
	switch d := doc.(type) {
	case TabspaceDocument:
		return []AddToIndexRequest{
			{OwnerID: d.ID, UltimateOwnerID: d.ID, Content: d.Name, EntityType: core.EntityTabspace, Field: core.FieldName},
		}, nil
	case TabDocument:
		ultimate := orDefault(d.TabspaceID, d.ID)
		return []AddToIndexRequest{
			{OwnerID: d.ID, UltimateOwnerID: ultimate, Content: d.Title, EntityType: core.EntityTab, Field: core.FieldTitle},
			{OwnerID: d.ID, UltimateOwnerID: ultimate, Content: d.URL, EntityType: core.EntityTab, Field: core.FieldURL},
		}, nil
	case NoteDocument:
		ultimate := orDefault(d.TabspaceID, d.ID)
		return []AddToIndexRequest{
			{OwnerID: d.ID, UltimateOwnerID: ultimate, Content: d.Name, EntityType: core.EntityNote, Field: core.FieldName},
			{OwnerID: d.ID, UltimateOwnerID: ultimate, Content: d.Content, EntityType: core.EntityNote, Field: core.FieldContent},
		}, nil
	case BookmarkDocument:
		return []AddToIndexRequest{
			{OwnerID: d.ID, UltimateOwnerID: d.ID, Content: d.Title, EntityType: core.EntityBookmark, Field: core.FieldTitle},
			{OwnerID: d.ID, UltimateOwnerID: d.ID, Content: d.URL, EntityType: core.EntityBookmark, Field: core.FieldURL},
		}, nil
	case nil:
		return nil, fmt.Errorf("%w: nil document", ErrInvalidRequest)
	default:
		return nil, fmt.Errorf("%w: unsupported document %T", ErrInvalidRequest, doc)
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

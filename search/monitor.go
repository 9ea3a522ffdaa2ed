package search

import (
	"github.com/poiesic/textidx/query"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(q query.Query, cursor query.Cursor)
	AfterGroupLookup(index int, group query.AndQuery, matched int)
	Hit(hit Hit)
	Finish(page *Page)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ query.Query, _ query.Cursor)             {}
func (n *noopMonitor) AfterGroupLookup(_ int, _ query.AndQuery, _ int) {}
func (n *noopMonitor) Hit(_ Hit)                                       {}
func (n *noopMonitor) Finish(_ *Page)                                  {}

package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/textidx/core"
	"github.com/poiesic/textidx/query"
	"github.com/poiesic/textidx/storage"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Hit is one owner matched by a query.
type Hit struct {
	Owner         string
	UltimateOwner string
	Type          core.EntityType
	Field         core.Field
	Group         int // Index of the first group the owner matched
}

// Page is one page of search results.
type Page struct {
	Hits []Hit
	Next query.Cursor // Cursor for the following page
}

// OwnerIDs returns the owners of the page's hits in order.
func (p *Page) OwnerIDs() []string {
	ids := make([]string, 0, len(p.Hits))
	for _, hit := range p.Hits {
		ids = append(ids, hit.Owner)
	}
	return ids
}

// Searcher evaluates boolean queries over an index repository.
type Searcher struct {
	repository  storage.IndexRepository
	concurrency int
	logger      *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithConcurrency sets how many groups are looked up at once.
// Default is 4.
func WithConcurrency(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return ErrInvalidConcurrency
		}
		s.concurrency = n
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(repository storage.IndexRepository, opts ...Option) (*Searcher, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}

	s := &Searcher{
		repository:  repository,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search returns the page of q's results that cursor points at.
func (s *Searcher) Search(ctx context.Context, q query.Query, cursor query.Cursor) (*Page, error) {
	return s.SearchWithMonitor(ctx, q, cursor, nil)
}

// SearchWithMonitor returns the page of q's results that cursor points at,
// reporting progress to monitor.
//
// An empty query returns no hits and the cursor unchanged without reading
// the index. So does a cursor whose HasMorePage is false.
func (s *Searcher) SearchWithMonitor(ctx context.Context, q query.Query, cursor query.Cursor, monitor SearchMonitor) (*Page, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(q, cursor)

	if q.IsEmpty() {
		page := &Page{Hits: []Hit{}, Next: cursor}
		monitor.Finish(page)
		return page, nil
	}
	if err := cursor.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	if !cursor.HasMorePage {
		page := &Page{Hits: []Hit{}, Next: cursor}
		monitor.Finish(page)
		return page, nil
	}

	groups := q.Groups()
	candidates, err := s.lookupGroups(ctx, groups)
	if err != nil {
		s.logger.Error("error looking up query groups", "query", q.String(), "err", err)
		return nil, err
	}
	for i, group := range groups {
		monitor.AfterGroupLookup(i, group, len(candidates[i]))
	}

	// Groups are concatenated in order; an owner counts once, at its first
	// match. Positions in this sequence are what cursors address.
	hits := make([]Hit, 0, cursor.PageLimit)
	seen := make(map[string]struct{})
	position := 0
	more := false
collect:
	for i, records := range candidates {
		for _, record := range records {
			if _, dup := seen[record.Owner]; dup {
				continue
			}
			seen[record.Owner] = struct{}{}
			if position >= cursor.PageStart {
				if len(hits) == cursor.PageLimit {
					more = true
					break collect
				}
				hit := Hit{
					Owner:         record.Owner,
					UltimateOwner: record.UltimateOwner,
					Type:          record.Type,
					Field:         record.Field,
					Group:         i,
				}
				hits = append(hits, hit)
				monitor.Hit(hit)
			}
			position++
		}
	}

	page := &Page{
		Hits: hits,
		Next: query.Cursor{
			PageStart:   cursor.PageStart + len(hits),
			PageLimit:   cursor.PageLimit,
			HasMorePage: more,
		},
	}
	monitor.Finish(page)
	s.logger.Debug("search finished", "query", q.String(), "hits", len(hits), "pageStart", cursor.PageStart, "more", more)

	return page, nil
}

// lookupGroups fetches the matching records of every group, concurrently.
// The result is indexed like groups; groups without terms yield nil.
func (s *Searcher) lookupGroups(ctx context.Context, groups []query.AndQuery) ([][]*core.IndexRecord, error) {
	candidates := make([][]*core.IndexRecord, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, group := range groups {
		if group.IsEmpty() {
			continue
		}
		g.Go(func() error {
			records, err := s.repository.FindByScope(gctx, group.Terms[0], group.Scope)
			if err != nil {
				return fmt.Errorf("looking up group %d (%s): %w", i, group, err)
			}
			matched := make([]*core.IndexRecord, 0, len(records))
			for _, record := range records {
				if record.HasAllTerms(group.Terms) {
					matched = append(matched, record)
				}
			}
			candidates[i] = matched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

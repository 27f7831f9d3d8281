// internal/catalog/implementation.go
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"citylibrary/internal/observability"
	"citylibrary/internal/persistence"
	"citylibrary/internal/store"
	"citylibrary/pkg/eventstore"
)

// service implements the Service interface.
type service struct {
	store   *store.Store
	backend persistence.Backend
	journal eventstore.Journal
	logger  *zap.Logger
	tracer  trace.Tracer
	ops     *observability.Operations
}

// NewService creates a new catalog service instance.
func NewService(s *store.Store, backend persistence.Backend, journal eventstore.Journal, logger *zap.Logger) Service {
	return &service{
		store:   s,
		backend: backend,
		journal: journal,
		logger:  logger.Named("catalog"),
		tracer:  otel.Tracer("citylibrary/catalog"),
		ops:     observability.NewOperations("citylibrary/catalog"),
	}
}

// AddBook catalogues a new, available book and persists the library.
func (s *service) AddBook(ctx context.Context, title, author, category string) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.add_book")
	defer span.End()

	book := s.store.InsertBook(Book{
		Title:    title,
		Author:   author,
		Category: category,
	})
	span.SetAttributes(attribute.Int("book.id", book.ID))

	if err := s.backend.Save(ctx, s.store); err != nil {
		// Compensate so memory matches what is on disk.
		s.store.RemoveBook(book.ID)
		span.RecordError(err)
		s.ops.Record(ctx, "add_book", observability.OutcomeFailed)
		return nil, fmt.Errorf("failed to save book: %w", err)
	}

	s.record(ctx, book.ID, "BookAdded", BookAddedEvent{
		ID:       book.ID,
		Title:    book.Title,
		Author:   book.Author,
		Category: book.Category,
	})
	s.ops.Record(ctx, "add_book", observability.OutcomeSuccess)
	s.logger.Info("book added", zap.Int("book_id", book.ID), zap.String("title", book.Title))

	added := *book
	return &added, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id int) (*Book, error) {
	_, span := s.tracer.Start(ctx, "catalog.get_book",
		trace.WithAttributes(attribute.Int("book.id", id)),
	)
	defer span.End()

	book, ok := s.store.Book(id)
	if !ok {
		return nil, fmt.Errorf("book with ID %d: %w", id, ErrBookNotFound)
	}
	found := *book
	return &found, nil
}

// SetIssued changes the issued flag of a book and persists the library. The
// flag is restored if the save fails. State rules are enforced by circulation.
func (s *service) SetIssued(ctx context.Context, id int, issued bool) error {
	ctx, span := s.tracer.Start(ctx, "catalog.set_issued",
		trace.WithAttributes(
			attribute.Int("book.id", id),
			attribute.Bool("book.issued", issued),
		),
	)
	defer span.End()

	book, ok := s.store.Book(id)
	if !ok {
		return fmt.Errorf("book with ID %d: %w", id, ErrBookNotFound)
	}

	previous := book.IsIssued
	if issued {
		book.MarkIssued()
	} else {
		book.MarkReturned()
	}

	if err := s.backend.Save(ctx, s.store); err != nil {
		book.IsIssued = previous
		span.RecordError(err)
		return fmt.Errorf("failed to save book %d: %w", id, err)
	}
	return nil
}

// SearchByTitle returns every book whose title equals title, ignoring case,
// ordered by id.
func (s *service) SearchByTitle(ctx context.Context, title string) ([]*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.search_by_title",
		trace.WithAttributes(attribute.String("query", title)),
	)
	defer span.End()

	key := titleKey(strings.TrimSpace(title))
	var matches []*Book
	for _, book := range s.store.Books() {
		if titleKey(book.Title) == key {
			found := *book
			matches = append(matches, &found)
		}
	}

	span.SetAttributes(attribute.Int("matches", len(matches)))
	if len(matches) == 0 {
		s.ops.Record(ctx, "search_by_title", observability.OutcomeRejected)
		return nil, ErrNoMatch
	}
	s.ops.Record(ctx, "search_by_title", observability.OutcomeSuccess)
	return matches, nil
}

// ListAll returns every book ordered by title, ignoring case. Books with equal
// titles keep id order.
func (s *service) ListAll(ctx context.Context) ([]*Book, error) {
	_, span := s.tracer.Start(ctx, "catalog.list_all")
	defer span.End()

	books := s.store.Books()
	out := make([]*Book, 0, len(books))
	for _, book := range books {
		listed := *book
		out = append(out, &listed)
	}
	slices.SortStableFunc(out, func(a, b *Book) int {
		return cmp.Compare(titleKey(a.Title), titleKey(b.Title))
	})

	span.SetAttributes(attribute.Int("books", len(out)))
	return out, nil
}

// titleKey folds case so that search and listing agree on which titles are equal.
func titleKey(title string) string {
	return cases.Fold().String(title)
}

// record journals an event for a book. Journal failures never fail the operation.
func (s *service) record(ctx context.Context, id int, eventType string, data any) {
	if err := eventstore.Record(ctx, s.journal, AggregateType, id, eventType, data); err != nil {
		s.logger.Warn("failed to journal event",
			zap.String("event_type", eventType),
			zap.Int("book_id", id),
			zap.Error(err),
		)
	}
}

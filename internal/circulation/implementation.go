// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"citylibrary/internal/catalog"
	"citylibrary/internal/membership"
	"citylibrary/internal/observability"
	"citylibrary/pkg/eventstore"
)

// service implements the Service interface.
type service struct {
	catalog    catalog.Service
	membership membership.Service
	journal    eventstore.Journal
	logger     *zap.Logger
	tracer     trace.Tracer
	ops        *observability.Operations
}

// NewService creates a new circulation service instance.
func NewService(catalogSvc catalog.Service, membershipSvc membership.Service, journal eventstore.Journal, logger *zap.Logger) Service {
	return &service{
		catalog:    catalogSvc,
		membership: membershipSvc,
		journal:    journal,
		logger:     logger.Named("circulation"),
		tracer:     otel.Tracer("citylibrary/circulation"),
		ops:        observability.NewOperations("citylibrary/circulation"),
	}
}

// IssueBook moves a book from available to issued. The member must exist but
// is not recorded against the book.
func (s *service) IssueBook(ctx context.Context, bookID, memberID int) error {
	ctx, span := s.tracer.Start(ctx, "circulation.issue_book",
		trace.WithAttributes(
			attribute.Int("book.id", bookID),
			attribute.Int("member.id", memberID),
		),
	)
	defer span.End()

	err := s.issue(ctx, bookID, memberID)
	s.ops.Record(ctx, "issue_book", outcome(err))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *service) issue(ctx context.Context, bookID, memberID int) error {
	// Step 1: Validate the book
	book, err := s.catalog.GetBook(ctx, bookID)
	if err != nil {
		return err
	}

	// Step 2: Validate the member
	if _, err := s.membership.GetMember(ctx, memberID); err != nil {
		return err
	}

	// Step 3: Check availability
	if book.IsIssued {
		return fmt.Errorf("book %d: %w", bookID, ErrAlreadyIssued)
	}

	// Step 4: Flag the book and persist
	if err := s.catalog.SetIssued(ctx, bookID, true); err != nil {
		return fmt.Errorf("failed to issue book: %w", err)
	}

	s.record(ctx, bookID, "BookIssued", BookIssuedEvent{BookID: bookID, MemberID: memberID})
	s.logger.Info("book issued", zap.Int("book_id", bookID), zap.Int("member_id", memberID))
	return nil
}

// ReturnBook moves a book from issued back to available.
func (s *service) ReturnBook(ctx context.Context, bookID int) error {
	ctx, span := s.tracer.Start(ctx, "circulation.return_book",
		trace.WithAttributes(attribute.Int("book.id", bookID)),
	)
	defer span.End()

	err := s.giveBack(ctx, bookID)
	s.ops.Record(ctx, "return_book", outcome(err))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *service) giveBack(ctx context.Context, bookID int) error {
	book, err := s.catalog.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	if !book.IsIssued {
		return fmt.Errorf("book %d: %w", bookID, ErrNotIssued)
	}

	if err := s.catalog.SetIssued(ctx, bookID, false); err != nil {
		return fmt.Errorf("failed to return book: %w", err)
	}

	s.record(ctx, bookID, "BookReturned", BookReturnedEvent{BookID: bookID})
	s.logger.Info("book returned", zap.Int("book_id", bookID))
	return nil
}

func (s *service) record(ctx context.Context, bookID int, eventType string, data any) {
	if err := eventstore.Record(ctx, s.journal, catalog.AggregateType, bookID, eventType, data); err != nil {
		s.logger.Warn("failed to journal event",
			zap.String("event_type", eventType),
			zap.Int("book_id", bookID),
			zap.Error(err),
		)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, ErrInvalidState), errors.Is(err, catalog.ErrBookNotFound), errors.Is(err, membership.ErrMemberNotFound):
		return observability.OutcomeRejected
	default:
		return observability.OutcomeFailed
	}
}

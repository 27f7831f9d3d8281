// internal/membership/implementation.go
package membership

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

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

// NewService creates a new membership service instance.
func NewService(s *store.Store, backend persistence.Backend, journal eventstore.Journal, logger *zap.Logger) Service {
	return &service{
		store:   s,
		backend: backend,
		journal: journal,
		logger:  logger.Named("membership"),
		tracer:  otel.Tracer("citylibrary/membership"),
		ops:     observability.NewOperations("citylibrary/membership"),
	}
}

// AddMember registers a new member and persists the library.
func (s *service) AddMember(ctx context.Context, name string) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "membership.add_member")
	defer span.End()

	member := s.store.InsertMember(Member{Name: name})
	span.SetAttributes(attribute.Int("member.id", member.ID))

	if err := s.backend.Save(ctx, s.store); err != nil {
		s.store.RemoveMember(member.ID)
		span.RecordError(err)
		s.ops.Record(ctx, "add_member", observability.OutcomeFailed)
		return nil, fmt.Errorf("failed to save member: %w", err)
	}

	eventData := MemberAddedEvent{
		ID:   member.ID,
		Name: member.Name,
	}
	if err := eventstore.Record(ctx, s.journal, AggregateType, member.ID, "MemberAdded", eventData); err != nil {
		s.logger.Warn("failed to journal event", zap.Int("member_id", member.ID), zap.Error(err))
	}

	s.ops.Record(ctx, "add_member", observability.OutcomeSuccess)
	s.logger.Info("member added", zap.Int("member_id", member.ID))

	added := *member
	return &added, nil
}

// GetMember retrieves a member by their ID.
func (s *service) GetMember(ctx context.Context, id int) (*Member, error) {
	_, span := s.tracer.Start(ctx, "membership.get_member",
		trace.WithAttributes(attribute.Int("member.id", id)),
	)
	defer span.End()

	member, ok := s.store.Member(id)
	if !ok {
		return nil, fmt.Errorf("member with ID %d: %w", id, ErrMemberNotFound)
	}
	found := *member
	return &found, nil
}

// internal/persistence/postgres.go
package persistence

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"citylibrary/internal/store"
)

const schema = `
	CREATE TABLE IF NOT EXISTS books (
		id        INT PRIMARY KEY,
		title     TEXT NOT NULL,
		author    TEXT NOT NULL,
		category  TEXT NOT NULL,
		is_issued BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE TABLE IF NOT EXISTS members (
		id   INT PRIMARY KEY,
		name TEXT NOT NULL
	);
`

// Postgres keeps books and members in two tables. Save replaces both tables
// inside one transaction, mirroring the full-rewrite semantics of FlatFile.
type Postgres struct {
	db     *sqlx.DB
	logger *zap.Logger
	tracer trace.Tracer
}

// OpenPostgres connects using a lib/pq connection string.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to database: %w", ErrIO, err)
	}
	return NewPostgres(db, logger), nil
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(db *sqlx.DB, logger *zap.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: logger.Named("postgres"),
		tracer: otel.Tracer("citylibrary/persistence"),
	}
}

// Load creates the schema if needed and reads both tables into s.
func (p *Postgres) Load(ctx context.Context, s *store.Store) error {
	ctx, span := p.tracer.Start(ctx, "postgres.load")
	defer span.End()

	s.Reset()

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: create schema: %w", ErrIO, err)
	}

	var books []store.Book
	if err := p.db.SelectContext(ctx, &books, `
		SELECT id, title, author, category, is_issued
		FROM books
		ORDER BY id
	`); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: query books: %w", ErrIO, err)
	}
	for _, b := range books {
		s.PutBook(b)
	}

	var members []store.Member
	if err := p.db.SelectContext(ctx, &members, `
		SELECT id, name
		FROM members
		ORDER BY id
	`); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: query members: %w", ErrIO, err)
	}
	for _, m := range members {
		s.PutMember(m)
	}

	span.SetAttributes(
		attribute.Int("books.loaded", len(books)),
		attribute.Int("members.loaded", len(members)),
	)
	p.logger.Debug("loaded library", zap.Int("books", len(books)), zap.Int("members", len(members)))
	return nil
}

// Save replaces the contents of both tables with s.
func (p *Postgres) Save(ctx context.Context, s *store.Store) error {
	ctx, span := p.tracer.Start(ctx, "postgres.save")
	defer span.End()

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: begin transaction: %w", ErrIO, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM books`); err != nil {
		return fmt.Errorf("%w: clear books: %w", ErrIO, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM members`); err != nil {
		return fmt.Errorf("%w: clear members: %w", ErrIO, err)
	}

	books := s.Books()
	if len(books) > 0 {
		rows := make([]store.Book, 0, len(books))
		for _, b := range books {
			rows = append(rows, store.Book{
				ID:       b.ID,
				Title:    sanitize(b.Title),
				Author:   sanitize(b.Author),
				Category: sanitize(b.Category),
				IsIssued: b.IsIssued,
			})
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO books (id, title, author, category, is_issued)
			VALUES (:id, :title, :author, :category, :is_issued)
		`, rows); err != nil {
			span.RecordError(err)
			return fmt.Errorf("%w: insert books: %w", ErrIO, err)
		}
	}

	members := s.Members()
	if len(members) > 0 {
		rows := make([]store.Member, 0, len(members))
		for _, m := range members {
			rows = append(rows, store.Member{ID: m.ID, Name: sanitize(m.Name)})
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO members (id, name)
			VALUES (:id, :name)
		`, rows); err != nil {
			span.RecordError(err)
			return fmt.Errorf("%w: insert members: %w", ErrIO, err)
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: commit transaction: %w", ErrIO, err)
	}

	span.SetAttributes(
		attribute.Int("books.saved", len(books)),
		attribute.Int("members.saved", len(members)),
	)
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

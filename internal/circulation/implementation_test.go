package circulation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"citylibrary/internal/catalog"
	"citylibrary/internal/membership"
	"citylibrary/internal/persistence"
	"citylibrary/internal/store"
	"citylibrary/pkg/eventstore"
)

type switchableBackend struct {
	saveErr error
}

func (b *switchableBackend) Load(context.Context, *store.Store) error { return nil }
func (b *switchableBackend) Save(context.Context, *store.Store) error { return b.saveErr }
func (b *switchableBackend) Close() error                             { return nil }

type fixture struct {
	store       *store.Store
	backend     *switchableBackend
	catalog     catalog.Service
	membership  membership.Service
	circulation Service
}

func newFixture(t *testing.T, journal eventstore.Journal) *fixture {
	t.Helper()
	s := store.New()
	backend := &switchableBackend{}
	logger := zap.NewNop()
	cat := catalog.NewService(s, backend, journal, logger)
	mem := membership.NewService(s, backend, journal, logger)
	return &fixture{
		store:       s,
		backend:     backend,
		catalog:     cat,
		membership:  mem,
		circulation: NewService(cat, mem, journal, logger),
	}
}

func (f *fixture) issued(t *testing.T, id int) bool {
	t.Helper()
	book, ok := f.store.Book(id)
	require.True(t, ok)
	return book.IsIssued
}

func TestIssueAndReturnScenario(t *testing.T) {
	f := newFixture(t, eventstore.Discard)
	ctx := context.Background()

	book, err := f.catalog.AddBook(ctx, "Dune", "Herbert", "SciFi")
	require.NoError(t, err)
	assert.Equal(t, 1, book.ID)

	member, err := f.membership.AddMember(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, member.ID)

	require.NoError(t, f.circulation.IssueBook(ctx, 1, 1))
	assert.True(t, f.issued(t, 1))

	err = f.circulation.IssueBook(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrAlreadyIssued)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, f.circulation.ReturnBook(ctx, 1))
	assert.False(t, f.issued(t, 1))

	err = f.circulation.ReturnBook(ctx, 1)
	assert.ErrorIs(t, err, ErrNotIssued)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestIssueValidatesBookBeforeMember(t *testing.T) {
	f := newFixture(t, eventstore.Discard)
	ctx := context.Background()

	err := f.circulation.IssueBook(ctx, 1, 1)
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)

	_, err = f.catalog.AddBook(ctx, "Dune", "Herbert", "SciFi")
	require.NoError(t, err)

	err = f.circulation.IssueBook(ctx, 1, 9)
	assert.ErrorIs(t, err, membership.ErrMemberNotFound)
	assert.False(t, f.issued(t, 1))
}

func TestIssueChecksMemberBeforeState(t *testing.T) {
	f := newFixture(t, eventstore.Discard)
	ctx := context.Background()
	_, err := f.catalog.AddBook(ctx, "Dune", "Herbert", "SciFi")
	require.NoError(t, err)
	_, err = f.membership.AddMember(ctx, "Alice")
	require.NoError(t, err)
	require.NoError(t, f.circulation.IssueBook(ctx, 1, 1))

	err = f.circulation.IssueBook(ctx, 1, 5)
	assert.ErrorIs(t, err, membership.ErrMemberNotFound)
}

func TestAnyMemberMayReturnOrReissue(t *testing.T) {
	f := newFixture(t, eventstore.Discard)
	ctx := context.Background()
	_, err := f.catalog.AddBook(ctx, "Dune", "Herbert", "SciFi")
	require.NoError(t, err)
	_, err = f.membership.AddMember(ctx, "Alice")
	require.NoError(t, err)
	_, err = f.membership.AddMember(ctx, "Bob")
	require.NoError(t, err)

	require.NoError(t, f.circulation.IssueBook(ctx, 1, 1))
	require.NoError(t, f.circulation.ReturnBook(ctx, 1))
	require.NoError(t, f.circulation.IssueBook(ctx, 1, 2))
	assert.True(t, f.issued(t, 1))
}

func TestReturnUnknownBook(t *testing.T) {
	f := newFixture(t, eventstore.Discard)

	err := f.circulation.ReturnBook(context.Background(), 3)

	assert.ErrorIs(t, err, catalog.ErrBookNotFound)
}

func TestFailedSaveLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, eventstore.Discard)
	ctx := context.Background()
	_, err := f.catalog.AddBook(ctx, "Dune", "Herbert", "SciFi")
	require.NoError(t, err)
	_, err = f.membership.AddMember(ctx, "Alice")
	require.NoError(t, err)

	f.backend.saveErr = errors.New("read-only file system")
	err = f.circulation.IssueBook(ctx, 1, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidState)
	assert.False(t, f.issued(t, 1))

	f.backend.saveErr = nil
	require.NoError(t, f.circulation.IssueBook(ctx, 1, 1))

	f.backend.saveErr = persistence.ErrIO
	err = f.circulation.ReturnBook(ctx, 1)
	require.ErrorIs(t, err, persistence.ErrIO)
	assert.True(t, f.issued(t, 1))
}

func TestCirculationJournalsBookHistory(t *testing.T) {
	journal, err := eventstore.Open(filepath.Join(t.TempDir(), "events.jsonl"))
	require.NoError(t, err)
	defer journal.Close()

	f := newFixture(t, journal)
	ctx := context.Background()
	_, err = f.catalog.AddBook(ctx, "Dune", "Herbert", "SciFi")
	require.NoError(t, err)
	_, err = f.membership.AddMember(ctx, "Alice")
	require.NoError(t, err)
	require.NoError(t, f.circulation.IssueBook(ctx, 1, 1))
	require.NoError(t, f.circulation.ReturnBook(ctx, 1))
	require.Error(t, f.circulation.ReturnBook(ctx, 1))

	events, err := journal.LoadEvents(ctx, catalog.AggregateType, 1, 0, 0)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{"BookAdded", "BookIssued", "BookReturned"}, types)
	assert.JSONEq(t, `{"book_id":1,"member_id":1}`, string(events[1].EventData))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "rejected", outcome(ErrNotIssued))
	assert.Equal(t, "rejected", outcome(catalog.ErrBookNotFound))
	assert.Equal(t, "failed", outcome(persistence.ErrIO))
}

package eventstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestEvent struct {
	Message string `json:"message"`
}

func testEvent(t testing.TB, msg string) Event {
	t.Helper()
	data, err := json.Marshal(TestEvent{Message: msg})
	require.NoError(t, err)
	return Event{EventType: "TestEvent", EventData: data}
}

func openTestStore(t testing.TB) (*EventStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestAppendAssignsContiguousVersions(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendEvents(ctx, "book", 1, 0, []Event{testEvent(t, "a"), testEvent(t, "b")}))
	require.NoError(t, store.AppendEvents(ctx, "book", 1, 2, []Event{testEvent(t, "c")}))

	events, err := store.LoadEvents(ctx, "book", 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, i+1, e.Version)
		assert.Equal(t, "book", e.AggregateType)
		assert.Equal(t, 1, e.AggregateID)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
	}

	var payload TestEvent
	require.NoError(t, json.Unmarshal(events[2].EventData, &payload))
	assert.Equal(t, "c", payload.Message)

	version, err := store.GetCurrentVersion(ctx, "book", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestAppendRejectsStaleVersion(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendEvents(ctx, "book", 1, 0, []Event{testEvent(t, "a")}))

	err := store.AppendEvents(ctx, "book", 1, 0, []Event{testEvent(t, "b")})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	err = store.AppendEvents(ctx, "book", 1, -1, []Event{testEvent(t, "b")})
	assert.ErrorIs(t, err, ErrInvalidVersion)

	events, err := store.LoadEvents(ctx, "book", 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAggregatesAreVersionedIndependently(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendEvents(ctx, "book", 1, 0, []Event{testEvent(t, "book")}))
	require.NoError(t, store.AppendEvents(ctx, "member", 1, 0, []Event{testEvent(t, "member")}))
	require.NoError(t, store.AppendEvents(ctx, "book", 2, 0, []Event{testEvent(t, "other book")}))

	for _, key := range []struct {
		typ string
		id  int
	}{{"book", 1}, {"member", 1}, {"book", 2}} {
		version, err := store.GetCurrentVersion(ctx, key.typ, key.id)
		require.NoError(t, err)
		assert.Equal(t, 1, version, "%s %d", key.typ, key.id)
	}
}

func TestLoadEventsVersionRange(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendEvents(ctx, "book", 7, i, []Event{testEvent(t, fmt.Sprint(i))}))
	}

	events, err := store.LoadEvents(ctx, "book", 7, 2, 4)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, 2, events[0].Version)
	assert.Equal(t, 4, events[2].Version)
}

func TestReopenRestoresVersions(t *testing.T) {
	store, path := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AppendEvents(ctx, "book", 1, 0, []Event{testEvent(t, "a"), testEvent(t, "b")}))
	require.NoError(t, store.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	version, err := reopened.GetCurrentVersion(ctx, "book", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	require.ErrorIs(t, reopened.AppendEvents(ctx, "book", 1, 0, []Event{testEvent(t, "c")}), ErrConcurrencyConflict)
	require.NoError(t, reopened.AppendEvents(ctx, "book", 1, 2, []Event{testEvent(t, "c")}))

	all, err := reopened.StreamEvents(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[2].Sequence)
}

func TestStreamEventsBatches(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, store.AppendEvents(ctx, "member", i, 0, []Event{testEvent(t, fmt.Sprint(i))}))
	}

	batch, err := store.StreamEvents(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].Sequence)

	batch, err = store.StreamEvents(ctx, batch[1].Sequence, 10)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, 3, batch[0].AggregateID)
}

func TestAppendAfterClose(t *testing.T) {
	store, _ := openTestStore(t)
	require.NoError(t, store.Close())

	err := store.AppendEvents(context.Background(), "book", 1, 0, []Event{testEvent(t, "a")})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRecordAppendsNextVersion(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, Record(ctx, store, "book", 4, "BookIssued", TestEvent{Message: "first"}))
	require.NoError(t, Record(ctx, store, "book", 4, "BookReturned", TestEvent{Message: "second"}))

	events, err := store.LoadEvents(ctx, "book", 4, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "BookIssued", events[0].EventType)
	assert.Equal(t, "BookReturned", events[1].EventType)
	assert.Equal(t, 2, events[1].Version)
}

func TestDiscardAcceptsEverything(t *testing.T) {
	assert.NoError(t, Record(context.Background(), Discard, "book", 1, "BookAdded", TestEvent{}))
}

func BenchmarkAppendEvents(b *testing.B) {
	store, _ := openTestStore(b)
	ctx := context.Background()
	event := testEvent(b, "bench")

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := store.AppendEvents(ctx, "book", 1, i, []Event{event}); err != nil {
			b.Fatalf("AppendEvents failed: %v", err)
		}
	}
}

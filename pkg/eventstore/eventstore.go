// Package eventstore is an append-only journal of library events kept in a
// JSON-lines file, with per-aggregate versions and optimistic concurrency.
package eventstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
	ErrClosed              = errors.New("event store closed")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event represents a domain event with full metadata
type Event struct {
	ID            uuid.UUID           `json:"id"`
	Sequence      int64               `json:"sequence"`
	AggregateID   int                 `json:"aggregate_id"`
	AggregateType string              `json:"aggregate_type"`
	EventType     string              `json:"event_type"`
	EventData     jsoniter.RawMessage `json:"event_data"`
	Metadata      map[string]any      `json:"metadata,omitempty"`
	Version       int                 `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Journal is the subset of the event store the library services write to.
type Journal interface {
	AppendEvents(ctx context.Context, aggregateType string, aggregateID, expectedVersion int, events []Event) error
	GetCurrentVersion(ctx context.Context, aggregateType string, aggregateID int) (int, error)
}

type aggregateKey struct {
	aggregateType string
	aggregateID   int
}

// EventStore appends events to a single file. Events carry a global sequence
// number and a version that is contiguous per aggregate. It assumes a single
// writer process.
type EventStore struct {
	path     string
	file     *os.File
	versions map[aggregateKey]int
	lastSeq  int64
	tracer   trace.Tracer
	now      func() time.Time
}

// Open opens or creates the journal at path and rebuilds the version index
// from its contents. Lines that fail to decode are skipped.
func Open(path string) (*EventStore, error) {
	es := &EventStore{
		path:     path,
		versions: make(map[aggregateKey]int),
		tracer:   otel.Tracer("citylibrary/eventstore"),
		now:      func() time.Time { return time.Now().UTC() },
	}

	err := es.scan(func(e Event) bool {
		key := aggregateKey{e.AggregateType, e.AggregateID}
		if e.Version > es.versions[key] {
			es.versions[key] = e.Version
		}
		if e.Sequence > es.lastSeq {
			es.lastSeq = e.Sequence
		}
		return true
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	es.file = file
	return es, nil
}

// AppendEvents appends events with optimistic concurrency control. The
// aggregate must currently be at expectedVersion; the events get versions
// expectedVersion+1 onwards and are written with a single write call.
func (es *EventStore) AppendEvents(ctx context.Context, aggregateType string, aggregateID, expectedVersion int, events []Event) error {
	_, span := es.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.Int("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if es.file == nil {
		return ErrClosed
	}
	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	key := aggregateKey{aggregateType, aggregateID}
	currentVersion := es.versions[key]

	// Optimistic concurrency check
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	var buf []byte
	seq := es.lastSeq
	for i := range events {
		seq++
		event := events[i]
		event.ID = uuid.New()
		event.Sequence = seq
		event.AggregateID = aggregateID
		event.AggregateType = aggregateType
		event.Version = expectedVersion + i + 1
		event.CreatedAt = es.now()

		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", i, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.String("event.id", event.ID.String()),
			attribute.Int("event.version", event.Version),
			attribute.String("event.type", event.EventType),
		))
	}

	if _, err := es.file.Write(buf); err != nil {
		span.RecordError(err)
		return fmt.Errorf("write events: %w", err)
	}

	es.versions[key] = expectedVersion + len(events)
	es.lastSeq = seq
	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// LoadEvents retrieves all events for an aggregate with optional version range.
// A toVersion of zero means no upper bound.
func (es *EventStore) LoadEvents(ctx context.Context, aggregateType string, aggregateID, fromVersion, toVersion int) ([]Event, error) {
	_, span := es.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.Int("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	var events []Event
	err := es.scan(func(e Event) bool {
		if e.AggregateType != aggregateType || e.AggregateID != aggregateID {
			return true
		}
		if e.Version < fromVersion || (toVersion > 0 && e.Version > toVersion) {
			return true
		}
		events = append(events, e)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// GetCurrentVersion returns the latest version for an aggregate, zero if it has no events.
func (es *EventStore) GetCurrentVersion(ctx context.Context, aggregateType string, aggregateID int) (int, error) {
	_, span := es.tracer.Start(ctx, "eventstore.get_version",
		trace.WithAttributes(
			attribute.Int("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
		),
	)
	defer span.End()

	version := es.versions[aggregateKey{aggregateType, aggregateID}]
	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}

// StreamEvents returns up to batchSize events with a sequence greater than
// fromSequence, in append order.
func (es *EventStore) StreamEvents(ctx context.Context, fromSequence int64, batchSize int) ([]Event, error) {
	_, span := es.tracer.Start(ctx, "eventstore.stream",
		trace.WithAttributes(
			attribute.Int64("from.sequence", fromSequence),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	var events []Event
	err := es.scan(func(e Event) bool {
		if e.Sequence > fromSequence {
			events = append(events, e)
		}
		return batchSize <= 0 || len(events) < batchSize
	})
	if err != nil {
		return nil, fmt.Errorf("stream events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.streamed", len(events)))
	return events, nil
}

// Close closes the journal file.
func (es *EventStore) Close() error {
	if es.file == nil {
		return nil
	}
	err := es.file.Close()
	es.file = nil
	return err
}

// scan decodes every line of the journal in order until fn returns false.
func (es *EventStore) scan(fn func(Event) bool) error {
	file, err := os.Open(es.path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if !fn(e) {
			break
		}
	}
	return scanner.Err()
}

// Record marshals data and appends it as the next event of the aggregate.
func Record(ctx context.Context, j Journal, aggregateType string, aggregateID int, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	version, err := j.GetCurrentVersion(ctx, aggregateType, aggregateID)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	event := Event{
		EventType: eventType,
		EventData: payload,
	}
	if err := j.AppendEvents(ctx, aggregateType, aggregateID, version, []Event{event}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

type discard struct{}

// Discard is a Journal that records nothing.
var Discard Journal = discard{}

func (discard) AppendEvents(context.Context, string, int, int, []Event) error { return nil }

func (discard) GetCurrentVersion(context.Context, string, int) (int, error) { return 0, nil }

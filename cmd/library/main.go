// cmd/library/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"citylibrary/internal/catalog"
	"citylibrary/internal/circulation"
	"citylibrary/internal/config"
	"citylibrary/internal/console"
	"citylibrary/internal/membership"
	"citylibrary/internal/observability"
	"citylibrary/internal/persistence"
	"citylibrary/internal/store"
	"citylibrary/pkg/eventstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "library: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("library", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("LIBRARY_CONFIG"), "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	shutdownTracing, err := observability.InitTracing(ctx, "citylibrary", cfg.Environment, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer shutdown(logger, "tracing", shutdownTracing)

	shutdownMetrics, err := observability.InitMetrics(ctx, "citylibrary", cfg.Environment, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer shutdown(logger, "metrics", shutdownMetrics)

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	journal, closeJournal := openJournal(ctx, cfg, logger)
	defer closeJournal()

	// A partial load keeps every record that was read.
	s := store.New()
	if err := backend.Load(ctx, s); err != nil {
		logger.Error("failed to load library", zap.Error(err))
	}
	logger.Info("library loaded",
		zap.String("storage", cfg.Storage),
		zap.Int("books", len(s.Books())),
		zap.Int("members", len(s.Members())),
	)

	catalogSvc := catalog.NewService(s, backend, journal, logger)
	membershipSvc := membership.NewService(s, backend, journal, logger)
	circulationSvc := circulation.NewService(catalogSvc, membershipSvc, journal, logger)

	handler := console.NewHandler(catalogSvc, membershipSvc, circulationSvc, stdin, stdout, logger)
	return handler.Run(ctx)
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.Backend, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		return persistence.OpenPostgres(ctx, cfg.DatabaseURL, logger)
	default:
		return persistence.NewFlatFile(cfg.BooksPath(), cfg.MembersPath(), logger), nil
	}
}

func shutdown(logger *zap.Logger, name string, fn observability.ShutdownFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Warn("failed to shut down "+name, zap.Error(err))
	}
}

// openJournal opens the event journal. A journal that cannot be opened is
// replaced by one that records nothing.
func openJournal(ctx context.Context, cfg *config.Config, logger *zap.Logger) (eventstore.Journal, func()) {
	path := cfg.JournalPath()
	if path == "" {
		return eventstore.Discard, func() {}
	}

	es, err := eventstore.Open(path)
	if err != nil {
		logger.Warn("journal disabled", zap.String("path", path), zap.Error(err))
		return eventstore.Discard, func() {}
	}

	counts, err := journalSummary(ctx, es)
	if err != nil {
		logger.Warn("failed to read journal", zap.String("path", path), zap.Error(err))
	} else {
		fields := []zap.Field{zap.String("path", path)}
		for eventType, n := range counts {
			fields = append(fields, zap.Int(eventType, n))
		}
		logger.Info("journal opened", fields...)
	}

	return es, func() {
		if err := es.Close(); err != nil {
			logger.Warn("failed to close journal", zap.Error(err))
		}
	}
}

// journalSummary counts the journal's events by type.
func journalSummary(ctx context.Context, es *eventstore.EventStore) (map[string]int, error) {
	const batchSize = 500

	counts := make(map[string]int)
	var last int64
	for {
		batch, err := es.StreamEvents(ctx, last, batchSize)
		if err != nil {
			return nil, err
		}
		for _, e := range batch {
			counts[e.EventType]++
		}
		if len(batch) < batchSize {
			return counts, nil
		}
		last = batch[len(batch)-1].Sequence
	}
}

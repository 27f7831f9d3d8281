// internal/persistence/flatfile.go
package persistence

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"citylibrary/internal/store"
)

// FlatFile keeps books and members in two line-oriented text files.
type FlatFile struct {
	booksPath   string
	membersPath string
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewFlatFile creates a flat-file backend. Nothing is touched on disk until Load or Save.
func NewFlatFile(booksPath, membersPath string, logger *zap.Logger) *FlatFile {
	return &FlatFile{
		booksPath:   booksPath,
		membersPath: membersPath,
		logger:      logger.Named("flatfile"),
		tracer:      otel.Tracer("citylibrary/persistence"),
	}
}

// Load ensures both files exist, then reads them into s. Malformed lines are
// skipped. If a file cannot be created the load is abandoned and s stays empty.
// A read error on one file does not prevent loading the other; records read
// before the error are kept and the first error is returned.
func (f *FlatFile) Load(ctx context.Context, s *store.Store) error {
	_, span := f.tracer.Start(ctx, "flatfile.load",
		trace.WithAttributes(
			attribute.String("books.path", f.booksPath),
			attribute.String("members.path", f.membersPath),
		),
	)
	defer span.End()

	s.Reset()

	for _, path := range []string{f.booksPath, f.membersPath} {
		if err := ensureFile(path); err != nil {
			span.RecordError(err)
			return fmt.Errorf("%w: create data file: %w", ErrIO, err)
		}
	}

	var errs []error
	books, skipped, err := readLines(f.booksPath, func(line string) bool {
		b, ok := DecodeBook(line)
		if ok {
			s.PutBook(b)
		}
		return ok
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: read books: %w", ErrIO, err))
	}
	if skipped > 0 {
		f.logger.Debug("skipped malformed book lines", zap.String("path", f.booksPath), zap.Int("count", skipped))
	}

	members, skipped, err := readLines(f.membersPath, func(line string) bool {
		m, ok := DecodeMember(line)
		if ok {
			s.PutMember(m)
		}
		return ok
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: read members: %w", ErrIO, err))
	}
	if skipped > 0 {
		f.logger.Debug("skipped malformed member lines", zap.String("path", f.membersPath), zap.Int("count", skipped))
	}

	span.SetAttributes(
		attribute.Int("books.loaded", books),
		attribute.Int("members.loaded", members),
	)
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Save rewrites both files from scratch. There is no atomic rename, so a crash
// mid-write can leave a truncated file behind.
func (f *FlatFile) Save(ctx context.Context, s *store.Store) error {
	_, span := f.tracer.Start(ctx, "flatfile.save")
	defer span.End()

	books := s.Books()
	if err := writeLines(f.booksPath, len(books), func(i int) string {
		return EncodeBook(*books[i])
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: save books: %w", ErrIO, err)
	}

	members := s.Members()
	if err := writeLines(f.membersPath, len(members), func(i int) string {
		return EncodeMember(*members[i])
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: save members: %w", ErrIO, err)
	}

	span.SetAttributes(
		attribute.Int("books.saved", len(books)),
		attribute.Int("members.saved", len(members)),
	)
	return nil
}

// Close is a no-op; files are opened per call.
func (f *FlatFile) Close() error {
	return nil
}

func ensureFile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return file.Close()
}

// readLines feeds every line of path to accept and counts accepted and rejected
// lines. Lines have no length limit; a final line without a newline counts.
func readLines(path string, accept func(string) bool) (loaded, skipped int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	r := bufio.NewReader(file)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			if accept(line) {
				loaded++
			} else {
				skipped++
			}
		}
		if errors.Is(err, io.EOF) {
			return loaded, skipped, nil
		}
		if err != nil {
			return loaded, skipped, err
		}
	}
}

func writeLines(path string, n int, line func(int) string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	for i := 0; i < n; i++ {
		if _, err := w.WriteString(line(i)); err != nil {
			file.Close()
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// internal/console/handler.go
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"citylibrary/internal/catalog"
	"citylibrary/internal/circulation"
	"citylibrary/internal/membership"
)

const separator = "-------------------------------------------------"

const menu = `
=== City Library Digital Management System ===
1. Add Book
2. Add Member
3. Issue Book
4. Return Book
5. List Books
6. Search Book by Title
7. Exit
Enter choice: `

// errInputClosed ends the loop when stdin runs out or the context is cancelled.
var errInputClosed = errors.New("input closed")

type inputLine struct {
	text string
	err  error
}

// Handler runs the numbered menu and calls one service operation per choice.
type Handler struct {
	catalog     catalog.Service
	membership  membership.Service
	circulation circulation.Service
	in          *bufio.Scanner
	out         io.Writer
	logger      *zap.Logger

	startReader sync.Once
	lines       chan inputLine
	done        chan struct{}
}

func NewHandler(catalogSvc catalog.Service, membershipSvc membership.Service, circulationSvc circulation.Service, in io.Reader, out io.Writer, logger *zap.Logger) *Handler {
	return &Handler{
		catalog:     catalogSvc,
		membership:  membershipSvc,
		circulation: circulationSvc,
		in:          bufio.NewScanner(in),
		out:         out,
		logger:      logger.Named("console"),
		lines:       make(chan inputLine),
		done:        make(chan struct{}),
	}
}

// Run shows the menu until the user exits, input ends or ctx is cancelled. It
// returns an error only when reading input fails. Run may be called once.
func (h *Handler) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		choice, err := h.readLine(ctx, menu)
		if err != nil {
			return h.finish(err)
		}

		n, convErr := strconv.Atoi(choice)
		if convErr != nil {
			n = -1
		}

		switch n {
		case 1:
			err = h.HandleAddBook(ctx)
		case 2:
			err = h.HandleAddMember(ctx)
		case 3:
			err = h.HandleIssueBook(ctx)
		case 4:
			err = h.HandleReturnBook(ctx)
		case 5:
			h.HandleListBooks(ctx)
		case 6:
			err = h.HandleSearchBook(ctx)
		case 7:
			h.println("Goodbye.")
			return nil
		default:
			h.println("Invalid choice. Enter 1-7.")
		}
		if err != nil {
			return h.finish(err)
		}
	}
}

func (h *Handler) finish(err error) error {
	if errors.Is(err, errInputClosed) {
		h.println("")
		h.println("Goodbye.")
		return nil
	}
	return err
}

func (h *Handler) HandleAddBook(ctx context.Context) error {
	title, err := h.readLine(ctx, "Enter Title: ")
	if err != nil {
		return err
	}
	author, err := h.readLine(ctx, "Enter Author: ")
	if err != nil {
		return err
	}
	category, err := h.readLine(ctx, "Enter Category: ")
	if err != nil {
		return err
	}

	book, err := h.catalog.AddBook(ctx, title, author, category)
	if err != nil {
		h.reportError(err)
		return nil
	}
	h.printf("Added book with ID %d\n", book.ID)
	return nil
}

func (h *Handler) HandleAddMember(ctx context.Context) error {
	name, err := h.readLine(ctx, "Enter member name: ")
	if err != nil {
		return err
	}

	member, err := h.membership.AddMember(ctx, name)
	if err != nil {
		h.reportError(err)
		return nil
	}
	h.printf("Added member with ID %d\n", member.ID)
	return nil
}

func (h *Handler) HandleIssueBook(ctx context.Context) error {
	bookID, err := h.readInt(ctx, "Enter Book ID: ")
	if err != nil {
		return err
	}
	memberID, err := h.readInt(ctx, "Enter Member ID: ")
	if err != nil {
		return err
	}

	if err := h.circulation.IssueBook(ctx, bookID, memberID); err != nil {
		h.reportError(err)
		return nil
	}
	h.println("Book issued successfully.")
	return nil
}

func (h *Handler) HandleReturnBook(ctx context.Context) error {
	bookID, err := h.readInt(ctx, "Enter Book ID: ")
	if err != nil {
		return err
	}

	if err := h.circulation.ReturnBook(ctx, bookID); err != nil {
		h.reportError(err)
		return nil
	}
	h.println("Book returned successfully.")
	return nil
}

func (h *Handler) HandleListBooks(ctx context.Context) {
	books, err := h.catalog.ListAll(ctx)
	if err != nil {
		h.reportError(err)
		return
	}
	if len(books) == 0 {
		h.println("No books in the system.")
		return
	}
	for _, b := range books {
		h.printBook(b)
		h.println(separator)
	}
}

func (h *Handler) HandleSearchBook(ctx context.Context) error {
	title, err := h.readLine(ctx, "Enter Title to search: ")
	if err != nil {
		return err
	}

	books, err := h.catalog.SearchByTitle(ctx, title)
	if err != nil {
		h.reportError(err)
		return nil
	}
	for _, b := range books {
		h.printBook(b)
	}
	return nil
}

func (h *Handler) printBook(b *catalog.Book) {
	h.printf("ID: %d | Title: %s | Author: %s | Category: %s | Issued: %t\n",
		b.ID, b.Title, b.Author, b.Category, b.IsIssued)
}

// reportError turns a service error into the message shown to the user.
func (h *Handler) reportError(err error) {
	switch {
	case errors.Is(err, catalog.ErrNoMatch):
		h.println("Book not found.")
	case errors.Is(err, catalog.ErrBookNotFound):
		h.println("Book ID not found.")
	case errors.Is(err, membership.ErrMemberNotFound):
		h.println("Member ID not found.")
	case errors.Is(err, circulation.ErrAlreadyIssued):
		h.println("Book is already issued.")
	case errors.Is(err, circulation.ErrNotIssued):
		h.println("Book is not currently issued.")
	default:
		h.logger.Error("operation failed", zap.Error(err))
		h.printf("Error: %v\n", err)
	}
}

// readLine prints prompt and returns the next input line, trimmed. A blocked
// read is abandoned when ctx is cancelled.
func (h *Handler) readLine(ctx context.Context, prompt string) (string, error) {
	h.printf("%s", prompt)
	h.startReader.Do(func() { go h.scan() })

	select {
	case <-ctx.Done():
		return "", errInputClosed
	case line, ok := <-h.lines:
		if !ok {
			return "", errInputClosed
		}
		if line.err != nil {
			return "", fmt.Errorf("read input: %w", line.err)
		}
		return strings.TrimSpace(line.text), nil
	}
}

// scan forwards input lines until input ends or the loop stops.
func (h *Handler) scan() {
	defer close(h.lines)
	for h.in.Scan() {
		select {
		case h.lines <- inputLine{text: h.in.Text()}:
		case <-h.done:
			return
		}
	}
	if err := h.in.Err(); err != nil {
		select {
		case h.lines <- inputLine{err: err}:
		case <-h.done:
		}
	}
}

// readInt reads lines until one parses as an integer.
func (h *Handler) readInt(ctx context.Context, prompt string) (int, error) {
	line, err := h.readLine(ctx, prompt)
	for err == nil {
		n, convErr := strconv.Atoi(line)
		if convErr == nil {
			return n, nil
		}
		line, err = h.readLine(ctx, "Please enter a valid integer: ")
	}
	return 0, err
}

func (h *Handler) printf(format string, args ...any) {
	fmt.Fprintf(h.out, format, args...)
}

func (h *Handler) println(s string) {
	fmt.Fprintln(h.out, s)
}

// internal/catalog/domain.go
package catalog

import (
	"fmt"

	"citylibrary/internal/store"
)

// Book is a catalogued book (alias of store.Book).
type Book = store.Book

// AggregateType names book streams in the journal.
const AggregateType = "book"

var (
	// ErrBookNotFound is returned for an unknown book id.
	ErrBookNotFound = fmt.Errorf("book %w", store.ErrNotFound)
	// ErrNoMatch is returned when a title search finds nothing.
	ErrNoMatch = fmt.Errorf("no book with that title: %w", store.ErrNotFound)
)

// BookAddedEvent is journaled when a new book is catalogued.
type BookAddedEvent struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
}

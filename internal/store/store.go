// internal/store/store.go
package store

import (
	"errors"
	"maps"
	"slices"
)

// ErrNotFound is the root of every unknown-id error in the library.
var ErrNotFound = errors.New("not found")

// Book represents a catalogued book. ID is assigned by the store and never changes.
type Book struct {
	ID       int    `json:"id" db:"id"`
	Title    string `json:"title" db:"title"`
	Author   string `json:"author" db:"author"`
	Category string `json:"category" db:"category"`
	IsIssued bool   `json:"is_issued" db:"is_issued"`
}

// MarkIssued flags the book as lent out.
func (b *Book) MarkIssued() { b.IsIssued = true }

// MarkReturned flags the book as available again.
func (b *Book) MarkReturned() { b.IsIssued = false }

// Member represents a registered library member.
type Member struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Store is the authoritative in-memory record store. It owns id assignment
// for both books and members. It is not safe for concurrent use.
type Store struct {
	books   map[int]*Book
	members map[int]*Member
}

// New creates an empty store.
func New() *Store {
	return &Store{
		books:   make(map[int]*Book),
		members: make(map[int]*Member),
	}
}

// nextID returns max existing id + 1, or 1 when rows is empty.
func nextID[T any](rows map[int]*T) int {
	next := 1
	for id := range rows {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

// sortedRows returns the rows ordered by id.
func sortedRows[T any](rows map[int]*T) []*T {
	ids := slices.Sorted(maps.Keys(rows))
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		out = append(out, rows[id])
	}
	return out
}

// InsertBook assigns the next book id and adds the book.
func (s *Store) InsertBook(b Book) *Book {
	b.ID = nextID(s.books)
	s.books[b.ID] = &b
	return &b
}

// PutBook stores b under its existing id, replacing any previous entry.
func (s *Store) PutBook(b Book) {
	s.books[b.ID] = &b
}

// Book returns the book with the given id.
func (s *Store) Book(id int) (*Book, bool) {
	b, ok := s.books[id]
	return b, ok
}

// Books returns every book ordered by id.
func (s *Store) Books() []*Book {
	return sortedRows(s.books)
}

// RemoveBook drops a book. Only used to undo an insert that could not be persisted.
func (s *Store) RemoveBook(id int) {
	delete(s.books, id)
}

// InsertMember assigns the next member id and adds the member.
func (s *Store) InsertMember(m Member) *Member {
	m.ID = nextID(s.members)
	s.members[m.ID] = &m
	return &m
}

// PutMember stores m under its existing id, replacing any previous entry.
func (s *Store) PutMember(m Member) {
	s.members[m.ID] = &m
}

// Member returns the member with the given id.
func (s *Store) Member(id int) (*Member, bool) {
	m, ok := s.members[id]
	return m, ok
}

// Members returns every member ordered by id.
func (s *Store) Members() []*Member {
	return sortedRows(s.members)
}

// RemoveMember drops a member. Only used to undo an insert that could not be persisted.
func (s *Store) RemoveMember(id int) {
	delete(s.members, id)
}

// Reset empties both collections.
func (s *Store) Reset() {
	clear(s.books)
	clear(s.members)
}

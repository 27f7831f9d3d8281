// internal/circulation/domain.go
package circulation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is the root of every rejected book state transition.
	ErrInvalidState = errors.New("invalid book state")
	// ErrAlreadyIssued is returned when issuing a book that is already issued.
	ErrAlreadyIssued = fmt.Errorf("%w: book is already issued", ErrInvalidState)
	// ErrNotIssued is returned when returning a book that is not issued.
	ErrNotIssued = fmt.Errorf("%w: book is not currently issued", ErrInvalidState)
)

// BookIssuedEvent is journaled when a book is issued. MemberID is audit data
// only; the catalog keeps no link between a book and its holder.
type BookIssuedEvent struct {
	BookID   int `json:"book_id"`
	MemberID int `json:"member_id"`
}

// BookReturnedEvent is journaled when a book comes back.
type BookReturnedEvent struct {
	BookID int `json:"book_id"`
}

// internal/circulation/service.go
package circulation

import (
	"context"
)

// Service defines the interface for the circulation service.
type Service interface {
	IssueBook(ctx context.Context, bookID, memberID int) error
	ReturnBook(ctx context.Context, bookID int) error
}

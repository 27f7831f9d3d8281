// internal/catalog/service.go
package catalog

import (
	"context"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, title, author, category string) (*Book, error)
	GetBook(ctx context.Context, id int) (*Book, error)
	SetIssued(ctx context.Context, id int, issued bool) error
	SearchByTitle(ctx context.Context, title string) ([]*Book, error)
	ListAll(ctx context.Context) ([]*Book, error)
}

// internal/membership/service.go
package membership

import (
	"context"
)

// Service defines the interface for the membership service.
type Service interface {
	AddMember(ctx context.Context, name string) (*Member, error)
	GetMember(ctx context.Context, id int) (*Member, error)
}

// internal/membership/domain.go
package membership

import (
	"fmt"

	"citylibrary/internal/store"
)

// Member is a registered library member (alias of store.Member).
type Member = store.Member

// AggregateType names member streams in the journal.
const AggregateType = "member"

// ErrMemberNotFound is returned for an unknown member id.
var ErrMemberNotFound = fmt.Errorf("member %w", store.ErrNotFound)

// MemberAddedEvent is journaled when a new member registers.
type MemberAddedEvent struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

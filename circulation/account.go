package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Account is the login identity provisioned for a member. Exactly one
// account exists per member; it is created in the same transaction as the
// member row and deactivated together with the membership.
type Account struct {
	ID        uuid.UUID
	MemberID  uuid.UUID
	Username  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

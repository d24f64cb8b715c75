package circulation

import (
	"time"

	"github.com/google/uuid"
)

// MembershipStatus is the lifecycle state of a library member.
// Only active members may check out books.
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipSuspended MembershipStatus = "suspended"
	MembershipInactive  MembershipStatus = "inactive"
)

// IsValid reports whether the status is one of the known membership states.
func (s MembershipStatus) IsValid() bool {
	switch s {
	case MembershipActive, MembershipSuspended, MembershipInactive:
		return true
	default:
		return false
	}
}

// Member represents a library member.
type Member struct {
	ID               uuid.UUID
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	Address          string
	MembershipNumber string
	PasswordHash     string
	Status           MembershipStatus
	JoinedAt         time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FullName returns the member's display name.
func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// CanBorrow reports whether the member is currently allowed to check out books.
func (m Member) CanBorrow() bool {
	return m.Status == MembershipActive
}

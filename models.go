package portal

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RoleUser is the default role assigned at registration (i.e. view, edit own profile)
	RoleUser UserRole = "user"
	// RoleAdmin is an admin role (i.e. access the admin area, promote, unlock)
	RoleAdmin UserRole = "admin"
)

// MaxLoginAttempts is the number of failed password attempts before
// the account locks. The lock is permanent until an admin resets it.
var MaxLoginAttempts = 5

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          UserRole   `bun:"user_role,notnull,default:'user'" json:"user_role,omitempty"`
	LoginAttempts int        `bun:"login_attempts,notnull,default:0" json:"login_attempts,omitempty"`
	IsLocked      bool       `bun:"is_locked,notnull,default:false" json:"is_locked,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Snapshot returns the denormalized session payload for this record.
func (u *User) Snapshot() *SessionUser {
	return &SessionUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// SessionUser is the snapshot of a User held in the server side
// session between login and logout. Guards read this snapshot only,
// they never re-query the store per request: a role change or lock
// applied elsewhere takes effect on the affected user's next login.
type SessionUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     UserRole  `json:"role"`
}

// IsAdmin reports whether the snapshot carries the admin role.
func (s *SessionUser) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

var nowFn = time.Now

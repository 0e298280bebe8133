package domain

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role may moderate content.
func (r Role) IsStaff() bool { return r == RoleAdmin || r == RoleSuperAdmin }

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool { return s == UserStatusActive || s == UserStatusInactive }

type User struct {
	ID           uint       `gorm:"primaryKey" json:"id" db:"id"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email" db:"email"`
	Name         string     `gorm:"size:255;not null" json:"name" db:"name"`
	Role         Role       `gorm:"size:32;not null;default:user;index:idx_users_role" json:"role" db:"role"`
	Status       UserStatus `gorm:"size:32;not null;default:active;index:idx_users_status" json:"status" db:"status"`
	Trusted      bool       `gorm:"not null;default:false" json:"trusted" db:"trusted"`
	PasswordHash string     `gorm:"size:1024;not null" json:"-" db:"password_hash"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

func (u *User) IsActive() bool { return u != nil && u.Status == UserStatusActive }

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserSummary is the submitter view embedded in website reads.
type UserSummary struct {
	ID    uint   `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

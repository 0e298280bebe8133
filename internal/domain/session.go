package domain

import "time"

// Session backs a signed session token; the token is only honored while
// its row exists and has not expired.
type Session struct {
	ID        uint      `gorm:"primaryKey" json:"id" db:"id"`
	TokenID   string    `gorm:"uniqueIndex;size:64;not null" json:"-" db:"token_id"`
	TokenHash string    `gorm:"size:128;not null" json:"-" db:"token_hash"`
	UserID    uint      `gorm:"index;not null" json:"user_id" db:"user_id"`
	UserAgent string    `gorm:"size:512;not null;default:''" json:"user_agent" db:"user_agent"`
	IP        string    `gorm:"size:64;not null;default:''" json:"ip" db:"ip"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (Session) TableName() string { return "user_sessions" }

func (s *Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

type PasswordResetToken struct {
	ID        uint       `gorm:"primaryKey" db:"id"`
	UserID    uint       `gorm:"index;not null" db:"user_id"`
	TokenHash string     `gorm:"uniqueIndex;size:128;not null" db:"token_hash"`
	ExpiresAt time.Time  `gorm:"index;not null" db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `db:"created_at"`
}

func (PasswordResetToken) TableName() string { return "password_reset_tokens" }

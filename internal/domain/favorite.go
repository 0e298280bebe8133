package domain

import "time"

type Favorite struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id" db:"user_id"`
	WebsiteID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"website_id" db:"website_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

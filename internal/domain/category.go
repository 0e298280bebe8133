package domain

import "time"

// Category groups websites. GradientFrom/GradientTo hold either theme tokens
// or literal CSS colors.
type Category struct {
	ID           uint      `gorm:"primaryKey" json:"id" db:"id"`
	Name         string    `gorm:"uniqueIndex;size:120;not null" json:"name" db:"name"`
	GradientFrom string    `gorm:"size:64;not null;default:''" json:"gradient_from" db:"gradient_from"`
	GradientTo   string    `gorm:"size:64;not null;default:''" json:"gradient_to" db:"gradient_to"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type CategoryWithUsage struct {
	Category
	WebsiteCount int64 `json:"website_count" db:"website_count"`
}

package domain

import "time"

// Column widths of websites.url and websites.url_key.
const (
	MaxWebsiteURLLength = 2048
	MaxURLKeyLength     = 768
)

type WebsiteStatus string

const (
	WebsiteStatusPending  WebsiteStatus = "pending"
	WebsiteStatusApproved WebsiteStatus = "approved"
	WebsiteStatusRejected WebsiteStatus = "rejected"
)

func (s WebsiteStatus) Valid() bool {
	switch s {
	case WebsiteStatusPending, WebsiteStatusApproved, WebsiteStatusRejected:
		return true
	default:
		return false
	}
}

type Website struct {
	ID          uint          `gorm:"primaryKey" json:"id" db:"id"`
	Title       string        `gorm:"size:255;not null" json:"title" db:"title"`
	URL         string        `gorm:"size:2048;not null" json:"url" db:"url"`
	URLKey      string        `gorm:"size:768;not null;uniqueIndex" json:"-" db:"url_key"`
	Description string        `gorm:"type:text;not null" json:"description" db:"description"`
	FaviconURL  string        `gorm:"size:2048;not null;default:''" json:"favicon_url,omitempty" db:"favicon_url"`
	CategoryID  uint          `gorm:"not null;index" json:"category_id" db:"category_id"`
	Status      WebsiteStatus `gorm:"size:16;not null;default:pending;index" json:"status" db:"status"`
	SubmittedBy *uint         `gorm:"index" json:"submitted_by,omitempty" db:"submitted_by"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`

	Category      *Category    `gorm:"foreignKey:CategoryID" json:"category,omitempty" db:"-"`
	Tags          []Tag        `gorm:"many2many:website_tags" json:"tags" db:"-"`
	SubmitterUser *User        `gorm:"foreignKey:SubmittedBy" json:"-" db:"-"`
	Submitter     *UserSummary `gorm:"-" json:"submitter,omitempty" db:"-"`
}

// TagNames returns the names of the attached tags in their stored order.
func (w *Website) TagNames() []string {
	out := make([]string, 0, len(w.Tags))
	for _, t := range w.Tags {
		out = append(out, t.Name)
	}
	return out
}

// InitialWebsiteStatus decides the status of a fresh submission.
func InitialWebsiteStatus(autoApproveTrusted, submitterTrusted bool) WebsiteStatus {
	if autoApproveTrusted && submitterTrusted {
		return WebsiteStatusApproved
	}
	return WebsiteStatusPending
}

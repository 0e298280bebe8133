package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTagLength is in characters, matching the varchar(64) name column.
const MaxTagLength = 64

var ErrTagNameTooLong = errors.New("tag name too long")

type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id" db:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TagWithUsage struct {
	Tag
	WebsiteCount int64 `json:"website_count" db:"website_count"`
}

// WebsiteTag is the join row between websites and tags.
type WebsiteTag struct {
	WebsiteID uint `gorm:"primaryKey;autoIncrement:false" db:"website_id"`
	TagID     uint `gorm:"primaryKey;autoIncrement:false;index" db:"tag_id"`
}

func (WebsiteTag) TableName() string { return "website_tags" }

// NormalizeTagName lowercases and collapses whitespace. Empty or oversized
// names normalize to "".
func NormalizeTagName(name string) string {
	v := collapseTagName(name)
	if utf8.RuneCountInString(v) > MaxTagLength {
		return ""
	}
	return v
}

func collapseTagName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// ValidateTagNames reports ErrTagNameTooLong when any name would be dropped
// by NormalizeTagNames for its length.
func ValidateTagNames(names []string) error {
	for _, n := range names {
		if utf8.RuneCountInString(collapseTagName(n)) > MaxTagLength {
			return ErrTagNameTooLong
		}
	}
	return nil
}

// NormalizeTagNames returns the distinct normalized names in input order.
func NormalizeTagNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		v := NormalizeTagName(n)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

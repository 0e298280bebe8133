package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SettingAllowWebsiteSubmission  = "allow_website_submission"
	SettingAutoApproveTrustedUsers = "auto_approve_trusted_users"
	SettingSiteName                = "site_name"
)

// PublicSettingKeys lists the settings anonymous clients may read.
var PublicSettingKeys = []string{
	SettingAllowWebsiteSubmission,
	SettingAutoApproveTrustedUsers,
	SettingSiteName,
}

func IsPublicSetting(key string) bool {
	for _, k := range PublicSettingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// JSONValue is an opaque JSON document stored as text.
type JSONValue json.RawMessage

func (v JSONValue) Value() (driver.Value, error) {
	if len(v) == 0 {
		return "null", nil
	}
	return string(v), nil
}

func (v *JSONValue) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = JSONValue("null")
	case string:
		*v = JSONValue(s)
	case []byte:
		*v = append(JSONValue(nil), s...)
	default:
		return fmt.Errorf("unsupported json value type %T", src)
	}
	return nil
}

func (v JSONValue) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

func (v *JSONValue) UnmarshalJSON(b []byte) error {
	*v = append((*v)[:0], b...)
	return nil
}

// SystemSetting is a key with an opaque JSON value.
type SystemSetting struct {
	Key         string    `gorm:"column:setting_key;primaryKey;size:100" json:"key" db:"setting_key"`
	Value       JSONValue `gorm:"type:text;not null" json:"value" db:"value"`
	Description string    `gorm:"size:500;not null;default:''" json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (SystemSetting) TableName() string { return "system_settings" }

// BoolValue interprets the value as a boolean. JSON true/false and the
// strings "true"/"false" are accepted; anything else reports ok=false.
func (s *SystemSetting) BoolValue() (value bool, ok bool) {
	if s == nil {
		return false, false
	}
	raw := strings.TrimSpace(string(s.Value))
	var b bool
	if err := json.Unmarshal([]byte(raw), &b); err == nil {
		return b, true
	}
	var str string
	if err := json.Unmarshal([]byte(raw), &str); err == nil {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(str)); err == nil {
			return parsed, true
		}
	}
	return false, false
}

func BoolSettingValue(v bool) JSONValue {
	if v {
		return JSONValue("true")
	}
	return JSONValue("false")
}

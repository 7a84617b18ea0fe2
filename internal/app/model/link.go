package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Link describes the core short-link entity stored in Postgres. Click
// events are embedded as a JSONB array capped at MaxClickEvents; the
// Clicks counter keeps counting past the cap.
type Link struct {
	ID            string      `json:"id" gorm:"primaryKey;size:36"`
	OriginalURL   string      `json:"originalUrl" gorm:"type:text;not null"`
	ShortCode     string      `json:"shortCode" gorm:"size:20;not null;uniqueIndex:idx_links_short_code"`
	CustomSlug    *string     `json:"customSlug,omitempty" gorm:"size:50;uniqueIndex:idx_links_custom_slug"`
	Title         string      `json:"title" gorm:"size:200;not null;default:''"`
	Description   string      `json:"description,omitempty" gorm:"size:500"`
	OwnerID       string      `json:"ownerId" gorm:"size:36;not null;index:idx_links_owner_created,priority:1"`
	Clicks        int64       `json:"clicks" gorm:"not null;default:0"`
	ClickEvents   ClickEvents `json:"-" gorm:"type:jsonb;not null;default:'[]'"`
	IsActive      bool        `json:"isActive" gorm:"not null;default:true"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty" gorm:"index"`
	Tags          StringList  `json:"tags" gorm:"type:jsonb;not null;default:'[]'"`
	LastClickedAt *time.Time  `json:"lastClickedAt,omitempty"`
	CreatedAt     time.Time   `json:"createdAt" gorm:"autoCreateTime;index:idx_links_owner_created,priority:2"`
	UpdatedAt     time.Time   `json:"updatedAt" gorm:"autoUpdateTime"`
}

const (
	ShortCodeMinLen = 4
	ShortCodeMaxLen = 20
	SlugMinLen      = 3
	SlugMaxLen      = 50
	TitleMaxLen     = 200
	DescMaxLen      = 500
	TagMaxLen       = 30

	DefaultTitle = "Untitled Link"
)

var codePattern = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

// ValidSlug reports whether s is acceptable as a user-chosen custom slug.
func ValidSlug(s string) bool {
	return len(s) >= SlugMinLen && len(s) <= SlugMaxLen && codePattern.MatchString(s)
}

// Code returns the identifier that resolves this link: the custom slug
// when set, otherwise the generated short code.
func (l *Link) Code() string {
	if l.CustomSlug != nil && *l.CustomSlug != "" {
		return *l.CustomSlug
	}
	return l.ShortCode
}

// ShortURL builds the public short URL for this link.
func (l *Link) ShortURL(baseURL string) string {
	return fmt.Sprintf("%s/r/%s", baseURL, l.Code())
}

// Resolvable reports whether the link is eligible for redirect at the
// given instant: active and either without expiry or not yet expired.
func (l *Link) Resolvable(now time.Time) bool {
	if !l.IsActive {
		return false
	}
	return l.ExpiresAt == nil || l.ExpiresAt.After(now)
}

// ApplyClick mirrors the server-side click update on the in-memory copy:
// append the event, bump the counter, stamp last-clicked, evict the
// oldest events past the cap. The database row is updated by the click
// recorder in a single statement; this keeps an already-loaded Link
// consistent without a refetch.
func (l *Link) ApplyClick(ev ClickEvent) {
	l.ClickEvents = append(l.ClickEvents, ev)
	if n := len(l.ClickEvents); n > MaxClickEvents {
		l.ClickEvents = append(ClickEvents(nil), l.ClickEvents[n-MaxClickEvents:]...)
	}
	l.Clicks++
	ts := ev.Timestamp
	l.LastClickedAt = &ts
	l.UpdatedAt = ev.Timestamp
}

// StringList stores a list of short strings as a JSONB array.
type StringList []string

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		s = StringList{}
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *StringList) Scan(src interface{}) error {
	return scanJSON(src, s, "StringList")
}

func scanJSON(src, dst interface{}, what string) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("model: cannot scan %T into %s", src, what)
	}
}

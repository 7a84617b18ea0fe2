package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// MaxClickEvents bounds the embedded per-link click history. Older
// events are evicted first; the Clicks counter is unaffected.
const MaxClickEvents = 1000

// ClickEvent is one recorded visit, embedded in its Link. Geo fields
// may be empty; IPAddress defaults to "unknown" when the originating
// request carries none.
type ClickEvent struct {
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent,omitempty"`
	Referer   string    `json:"referer,omitempty"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
}

// ClickEvents stores the embedded click history as a JSONB array.
type ClickEvents []ClickEvent

// Value implements driver.Valuer.
func (e ClickEvents) Value() (driver.Value, error) {
	if e == nil {
		e = ClickEvents{}
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner.
func (e *ClickEvents) Scan(src interface{}) error {
	return scanJSON(src, e, "ClickEvents")
}

// ClickMessage is the JetStream payload published after a click has
// been durably recorded.
type ClickMessage struct {
	ID     string     `json:"id"`
	LinkID string     `json:"link_id"`
	Code   string     `json:"code"`
	Event  ClickEvent `json:"event"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-metrics"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)

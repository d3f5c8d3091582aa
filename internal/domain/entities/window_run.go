package entities

import (
	"time"
)

// Window run statuses.
const (
	WindowStatusIndexed      = "indexed"
	WindowStatusFetchFailed  = "fetch_failed"
	WindowStatusPayloadError = "payload_error"
	WindowStatusCancelled    = "cancelled"
)

// WindowRun records the outcome of one extraction window.
type WindowRun struct {
	ID          string    `json:"id" db:"id"`
	BatchID     string    `json:"batch_id" db:"batch_id"`
	BatchName   string    `json:"batch_name" db:"batch_name"`
	WindowStart time.Time `json:"window_start" db:"window_start"`
	WindowEnd   time.Time `json:"window_end" db:"window_end"`
	Status      string    `json:"status" db:"status"`
	Records     int       `json:"records" db:"records"`
	Indexed     int       `json:"indexed" db:"indexed"`
	Failed      int       `json:"failed" db:"failed"`
	Error       string    `json:"error,omitempty" db:"error"`
	DurationMs  int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

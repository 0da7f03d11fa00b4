package ledger

import "time"

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Retention is how long a completed entry is kept before the store expires it.
// It must exceed the trigger's redelivery window (7 days for Pub/Sub backed triggers).
const Retention = 10 * 24 * time.Hour

// Entry is the per-event record used for deduplication.
// CompletedAt and ExpireAt are set only once Status is StatusCompleted.
type Entry struct {
	EventID     string     `json:"event_id"`
	Bucket      string     `json:"bucket_name"`
	Object      string     `json:"file_name"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExpireAt    *time.Time `json:"expire_at,omitempty"`
}

// Expired reports whether the entry's retention window has passed at now.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpireAt != nil && !e.ExpireAt.After(now)
}

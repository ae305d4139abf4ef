package domain

import "time"

// QueueStatus is the lifecycle state of a queued listing.
type QueueStatus string

const (
	StatusPending QueueStatus = "pending"
	StatusPosting QueueStatus = "posting"
	StatusPosted  QueueStatus = "posted"
	StatusFailed  QueueStatus = "failed"
)

// QueueRecord is one schedulable listing instance derived from a workflow.
// The scheduler is the only writer of the posting/posted/failed transitions.
type QueueRecord struct {
	ID         int64
	WorkflowID int64
	Payload    ListingPayload
	Status     QueueStatus
	CreatedAt  time.Time
	PostedAt   *time.Time
	LastError  string
}

// Terminal reports whether the record has reached a final status.
func (r QueueRecord) Terminal() bool {
	return r.Status == StatusPosted || r.Status == StatusFailed
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Callback is the audit record of one inbound webhook delivery.
// Rows are write-once and never mutated; operators may bulk-purge.
type Callback struct {
	ID         uuid.UUID         `json:"id"`
	Path       string            `json:"path"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
	ReceivedAt time.Time         `json:"received_at"`
}

package models

import "time"

// Task priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task represents a task owned by a user. Owner is populated by
// store lookups that join the owning user (previews need it).
type Task struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	Priority  *string   `json:"priority,omitempty"`
	OwnerID   int64     `json:"owner_id"`
	Owner     *User     `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

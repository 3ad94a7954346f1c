package models

import "time"

// User represents a registered Taaskly user, optionally linked to a
// Workplace account.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	WorkplaceID *int64    `json:"workplace_id,omitempty"`
	CommunityID *int64    `json:"community_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Linked reports whether the user is linked to a Workplace account.
func (u *User) Linked() bool {
	return u != nil && u.WorkplaceID != nil
}

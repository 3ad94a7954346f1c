package models

import "time"

// Privacy values for documents and folders.
const (
	PrivacyPublic     = "public"
	PrivacyRestricted = "restricted"
)

// Document represents a stored document. Content is opaque to the
// webhook core; link previews only use a short excerpt.
type Document struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Content   []byte    `json:"-"`
	Privacy   string    `json:"privacy"`
	OwnerID   int64     `json:"owner_id"`
	FolderID  *int64    `json:"folder_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Excerpt returns the first n bytes of the document content as text.
func (d *Document) Excerpt(n int) string {
	if len(d.Content) <= n {
		return string(d.Content)
	}
	return string(d.Content[:n])
}

// Folder groups documents.
type Folder struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Privacy   string    `json:"privacy"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

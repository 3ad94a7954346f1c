package models

// Community represents a tenant installation of the integration.
// The access token is owned by the install flow; the webhook core
// only reads it to authorize outbound Graph calls.
type Community struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"-"`
}

// Page represents a page-level install inside a community.
type Page struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	AccessToken   string `json:"-"`
	CommunityID   int64  `json:"community_id"`
	CommunityName string `json:"community_name"`
	InstallID     int64  `json:"install_id"`
}

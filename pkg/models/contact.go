package models

// Contact is the client-local summary view of a peer. It is derived state:
// the engine rebuilds it from the message log plus presence events and it is
// never a source of truth.
type Contact struct {
	ID              int64  `json:"id"`
	Name            string `json:"name,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty"`
	Role            string `json:"role,omitempty"`
	LastMessage     string `json:"lastMessage,omitempty"`
	LastMessageDate string `json:"lastMessageDate,omitempty"`
	UnreadCount     int    `json:"unreadCount"`
	Online          bool   `json:"online"`
}

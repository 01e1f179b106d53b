package domain

// UserIdentity is established by authentication and immutable once attached
// to a connection.
type UserIdentity struct {
	ID       string
	Username string
}

// PresenceEntry is one line of a presence snapshot.
type PresenceEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

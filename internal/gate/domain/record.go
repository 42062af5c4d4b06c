package domain

import "time"

// Record is a user-owned row exposed to tool-calling clients. Every read
// path filters by owner; a session can never see another user's records.
type Record struct {
	ID        string
	UserID    string
	Kind      string
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

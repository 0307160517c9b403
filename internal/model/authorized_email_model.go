package model

import "time"

// DefaultAddedBy is recorded when an entry has no known author.
const DefaultAddedBy = "admin"

type AuthorizedEmail struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	AddedBy   string    `json:"addedBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

package model

import "time"

// User is the owner of apply tasks and sessions. Authentication lives
// upstream; the core only needs identity for scoping.
type User struct {
	ID        string    `json:"id"         db:"id"`
	Email     string    `json:"email"      db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

package models

import "time"

// User is the identity behind a wallet account. User.ID doubles as the
// account id: every user owns exactly one account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserUpdate carries the mutable profile fields; nil means unchanged.
type UserUpdate struct {
	FirstName    *string
	LastName     *string
	PasswordHash *string
}

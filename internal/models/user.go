package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Actor is the identity behind a call. The zero value is an anonymous caller.
type Actor struct {
	UserID int64
	Name   string
	Email  string
	Role   Role
}

func Anonymous() Actor {
	return Actor{}
}

func (a Actor) Authenticated() bool {
	return a.UserID != 0
}

func (a Actor) IsAdmin() bool {
	return a.Authenticated() && a.Role == RoleAdmin
}

// UserRef returns a pointer to the user id, or nil for anonymous callers.
func (a Actor) UserRef() *int64 {
	if !a.Authenticated() {
		return nil
	}
	id := a.UserID
	return &id
}

// Session is a server-side login record keyed by token id.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Package model defines domain entities for the application.
package model

import "time"

// User is an account identified by its normalized email address.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	Name         string    `json:"name,omitempty"`
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	IsSuperuser  bool      `json:"is_superuser"`
	JoinedAt     time.Time `json:"joined_at"`
}

// String returns the user's email.
func (u *User) String() string {
	return u.Email
}

package model

import "time"

// Project is the container that owns issues and versions.
type Project struct {
	ID        string    `json:"id" db:"id"`
	Key       string    `json:"key" db:"key"`
	Name      string    `json:"name" db:"name"`
	Lead      string    `json:"lead" db:"lead"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// User identifies the caller of a service operation.
// The zero value is the anonymous user.
type User struct {
	Name        string `json:"name" db:"name"`
	DisplayName string `json:"display_name" db:"display_name"`
	Email       string `json:"email" db:"email"`
}

// IsAnonymous reports whether u carries no identity.
func (u User) IsAnonymous() bool { return u.Name == "" }

package model

import (
	"database/sql"
	"time"
)

type User struct {
	ID           string         `db:"id" json:"id"`
	PasswordHash string         `db:"password_hash" json:"-"`
	DisplayName  sql.NullString `db:"display_name" json:"display_name,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// GetDisplayName returns display_name or the user id as fallback
func (u *User) GetDisplayName() string {
	if u.DisplayName.Valid && u.DisplayName.String != "" {
		return u.DisplayName.String
	}
	return u.ID
}

// UserProfile is a public-facing user profile
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// ToProfile converts User to UserProfile
func (u *User) ToProfile() *UserProfile {
	return &UserProfile{
		ID:          u.ID,
		DisplayName: u.GetDisplayName(),
	}
}

package models

import "time"

// User represents a participant. Users are created on first login
// (find-or-create by case-insensitive name) and are never deleted.
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`     // unique, case-insensitive
	Avatar    string    `json:"avatar" db:"avatar"` // emoji glyph
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

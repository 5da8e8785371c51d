package models

import "time"

// Order is one user's food entry for a given date.
type Order struct {
	ID         string    `json:"id" db:"id"`
	Date       string    `json:"date" db:"date"` // YYYY-MM-DD
	UserID     string    `json:"user_id" db:"user_id"`
	FoodItem   string    `json:"food_item" db:"food_item"`
	UserName   string    `json:"user_name,omitempty"`
	UserAvatar string    `json:"user_avatar,omitempty"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

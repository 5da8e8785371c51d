package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayPayment records who paid the collective bill for a given date. At most
// one payment exists per date.
type DayPayment struct {
	ID          string          `json:"id" db:"id"`
	Date        string          `json:"date" db:"date"` // YYYY-MM-DD
	PaidBy      string          `json:"paid_by" db:"paid_by"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	PayerName   string          `json:"payer_name,omitempty"`
	PayerAvatar string          `json:"payer_avatar,omitempty"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// SplitDetail is one user's share of a day payment.
type SplitDetail struct {
	UserID string          `json:"user_id" db:"user_id"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
}

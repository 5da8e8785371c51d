package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Notification types emitted by the ledger flows.
const (
	NotificationBillSplit      = "BILL_SPLIT"
	NotificationPaymentSettled = "PAYMENT_SETTLED"
	NotificationReminder       = "REMINDER"
)

// Notification is an append-only message for a user. The read flag is the
// only field mutated after insert.
type Notification struct {
	ID          string           `json:"id" db:"id"`
	UserID      string           `json:"user_id" db:"user_id"`
	Type        string           `json:"type" db:"type"`
	Message     string           `json:"message" db:"message"`
	RelatedDate *string          `json:"related_date" db:"related_date"`
	Amount      *decimal.Decimal `json:"amount" db:"amount"`
	IsRead      bool             `json:"is_read" db:"is_read"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalancePair is the net debt between two users. Exactly one row exists per
// unordered pair, keyed by (UserA, UserB) with UserA < UserB. NetAmount > 0
// means UserA owes UserB, < 0 means UserB owes UserA.
type BalancePair struct {
	ID        string          `json:"id" db:"id"`
	UserA     string          `json:"user_a" db:"user_a"`
	UserB     string          `json:"user_b" db:"user_b"`
	NetAmount decimal.Decimal `json:"net_amount" db:"net_amount"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// BalanceEntry is a caller-relative view of one pair: Amount > 0 means the
// caller owes the other user, Amount < 0 means the other user owes the caller.
type BalanceEntry struct {
	UserID     string          `json:"userId"`
	UserName   string          `json:"userName"`
	UserAvatar string          `json:"userAvatar"`
	Amount     decimal.Decimal `json:"amount"`
}

// Settlement is the audit record of a direct payment from a debtor to a
// creditor.
type Settlement struct {
	ID         string          `json:"id" db:"id"`
	FromUserID string          `json:"from_user_id" db:"from_user_id"`
	ToUserID   string          `json:"to_user_id" db:"to_user_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

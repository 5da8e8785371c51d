package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/grubtab/backend/internal/models"
	"github.com/shopspring/decimal"
)

// zeroEpsilon absorbs numeric noise: pairs within this margin of zero are
// treated as settled when reading or reminding, but the row is kept.
var zeroEpsilon = decimal.NewFromFloat(0.01)

const reminderScanLockKey = "reminder_scan_lock"

// BalanceLedgerService owns the balances table. Every mutation of a pair's
// net amount funnels through applyPairAdjustmentTx so the sign convention
// and the canonical pair ordering cannot diverge between call sites.
type BalanceLedgerService struct {
	db            *sql.DB
	redis         *redis.Client
	notifications *NotificationService
	scanLockTTL   time.Duration
}

func NewBalanceLedgerService(db *sql.DB, redisClient *redis.Client, notifications *NotificationService) *BalanceLedgerService {
	return &BalanceLedgerService{
		db:            db,
		redis:         redisClient,
		notifications: notifications,
		scanLockTTL:   5 * time.Minute,
	}
}

// CanonicalPair orders two user IDs so that exactly one row can exist per
// unordered pair. The total order is plain string comparison of the IDs.
func CanonicalPair(userX, userY string) (string, string) {
	if userX < userY {
		return userX, userY
	}
	return userY, userX
}

// applyPairAdjustmentTx applies a signed delta interpreted as "userX now
// additionally owes userY delta" to the pair's stored net amount. The stored
// sign is always relative to the canonical order, so the delta is negated
// when userX is not the smaller ID.
//
// The whole read-modify-write happens inside a single upsert statement, so
// two concurrent adjustments to the same pair both land; neither can be lost
// to a stale read. Self-pairs are a silent no-op. Rows are never deleted,
// a pair adjusted back to zero stays at zero.
func (s *BalanceLedgerService) applyPairAdjustmentTx(tx *sql.Tx, userX, userY string, delta decimal.Decimal) error {
	if userX == userY {
		return nil
	}

	userA, userB := CanonicalPair(userX, userY)
	adjustment := delta
	if userX != userA {
		adjustment = delta.Neg()
	}

	_, err := tx.Exec(`
        INSERT INTO balances (id, user_a, user_b, net_amount, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        ON CONFLICT (user_a, user_b)
        DO UPDATE SET net_amount = balances.net_amount + EXCLUDED.net_amount, updated_at = NOW()
    `, uuid.NewString(), userA, userB, adjustment)

	return err
}

// RecordSplitTx applies one adjustment per non-payer share inside the
// caller's transaction, so a day's split lands all-or-nothing. Shares held
// by the payer are skipped.
func (s *BalanceLedgerService) RecordSplitTx(tx *sql.Tx, payerID string, shares []models.SplitDetail) error {
	for _, share := range shares {
		if share.UserID == payerID {
			continue
		}
		if err := s.applyPairAdjustmentTx(tx, share.UserID, payerID, share.Amount); err != nil {
			return fmt.Errorf("failed to adjust balance for user %s: %w", share.UserID, err)
		}
	}
	return nil
}

// RecordSettlement records a direct payment from a debtor to a creditor and
// reduces the pair's net debt by the amount. The settlement row and the
// balance adjustment commit together; the notification to the receiver is
// best-effort and never rolls back a committed adjustment.
func (s *BalanceLedgerService) RecordSettlement(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal) (*models.Settlement, error) {
	if !amount.IsPositive() {
		return nil, errors.New("settlement amount must be positive")
	}
	if fromUserID == toUserID {
		return nil, errors.New("cannot settle a debt with yourself")
	}

	settlement := &models.Settlement{
		ID:         uuid.NewString(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Amount:     amount,
		CreatedAt:  time.Now(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT INTO settlements (id, from_user_id, to_user_id, amount, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, settlement.ID, settlement.FromUserID, settlement.ToUserID, settlement.Amount, settlement.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := s.applyPairAdjustmentTx(tx, fromUserID, toUserID, amount.Neg()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.notifySettlement(ctx, settlement)

	return settlement, nil
}

func (s *BalanceLedgerService) notifySettlement(ctx context.Context, settlement *models.Settlement) {
	var payerName string
	err := s.db.QueryRow(`SELECT name FROM users WHERE id = $1`, settlement.FromUserID).Scan(&payerName)
	if err != nil {
		log.Printf("[LEDGER] Failed to resolve payer %s for settlement notification: %v", settlement.FromUserID, err)
		payerName = "Someone"
	}

	message := fmt.Sprintf("%s paid you ₹%s 💸 debt cleared fam", payerName, settlement.Amount.StringFixed(0))
	if err := s.notifications.Emit(ctx, settlement.ToUserID, models.NotificationPaymentSettled, message, &settlement.Amount, nil); err != nil {
		log.Printf("[LEDGER] Failed to insert settlement notification for user %s: %v", settlement.ToUserID, err)
	}
}

// GetBalancesForUser returns the caller-relative view of every pair the user
// is part of: positive amounts mean the caller owes the other user. Pairs
// within epsilon of zero are hidden.
func (s *BalanceLedgerService) GetBalancesForUser(ctx context.Context, userID string) ([]models.BalanceEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT b.user_a, b.user_b, b.net_amount, u.id, u.name, u.avatar
        FROM balances b
        JOIN users u ON u.id = CASE WHEN b.user_a = $1 THEN b.user_b ELSE b.user_a END
        WHERE b.user_a = $1 OR b.user_b = $1
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.BalanceEntry{}
	for rows.Next() {
		var userA, userB string
		var net decimal.Decimal
		var entry models.BalanceEntry
		if err := rows.Scan(&userA, &userB, &net, &entry.UserID, &entry.UserName, &entry.UserAvatar); err != nil {
			return nil, err
		}

		if net.Abs().LessThan(zeroEpsilon) {
			continue
		}

		if userA == userID {
			entry.Amount = net
		} else {
			entry.Amount = net.Neg()
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ScanAndRemind nudges every debtor with an outstanding non-zero balance,
// at most once per window. Safe to re-invoke on a schedule; a Redis lock
// keeps overlapping invocations (second scheduler, manual trigger) from
// double-sending within the lock TTL. Returns the number of reminders sent.
func (s *BalanceLedgerService) ScanAndRemind(ctx context.Context, window time.Duration) (int, error) {
	if s.redis != nil {
		acquired, err := s.redis.SetNX(ctx, reminderScanLockKey, 1, s.scanLockTTL).Result()
		if err != nil {
			log.Printf("[REMINDER] Scan lock check failed, proceeding without lock: %v", err)
		} else if !acquired {
			log.Printf("[REMINDER] Scan already in progress, skipping")
			return 0, nil
		}
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT b.user_a, b.user_b, b.net_amount, ua.name, ub.name
        FROM balances b
        JOIN users ua ON ua.id = b.user_a
        JOIN users ub ON ub.id = b.user_b
    `)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type pair struct {
		userA, userB string
		nameA, nameB string
		net          decimal.Decimal
	}
	pairs := []pair{}
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.userA, &p.userB, &p.net, &p.nameA, &p.nameB); err != nil {
			return 0, err
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	since := time.Now().Add(-window)
	sent := 0

	for _, p := range pairs {
		if p.net.Abs().LessThan(zeroEpsilon) {
			continue
		}

		debtorID, creditorName := p.userA, p.nameB
		if p.net.IsNegative() {
			debtorID, creditorName = p.userB, p.nameA
		}
		amount := p.net.Abs()

		var reminded bool
		err := s.db.QueryRowContext(ctx, `
            SELECT EXISTS(
                SELECT 1 FROM notifications
                WHERE user_id = $1 AND type = $2 AND created_at >= $3
            )
        `, debtorID, models.NotificationReminder, since).Scan(&reminded)
		if err != nil {
			return sent, err
		}
		if reminded {
			continue
		}

		message := fmt.Sprintf("yo you still owe ₹%s to %s 💀 settle up bestie", amount.StringFixed(0), creditorName)
		if err := s.notifications.Emit(ctx, debtorID, models.NotificationReminder, message, &amount, nil); err != nil {
			log.Printf("[REMINDER] Failed to send reminder to user %s: %v", debtorID, err)
			continue
		}
		sent++
	}

	log.Printf("[REMINDER] Scan complete, %d reminder(s) sent", sent)
	return sent, nil
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/grubtab/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func evenShares(amount int64, userIDs ...string) []models.SplitDetail {
	shares := make([]models.SplitDetail, 0, len(userIDs))
	for _, id := range userIDs {
		shares = append(shares, models.SplitDetail{UserID: id, Amount: decimal.NewFromInt(amount)})
	}
	return shares
}

func TestCanonicalPair(t *testing.T) {
	t.Run("already ordered", func(t *testing.T) {
		a, b := CanonicalPair("alice", "bob")
		assert.Equal(t, "alice", a)
		assert.Equal(t, "bob", b)
	})

	t.Run("reversed input", func(t *testing.T) {
		a, b := CanonicalPair("bob", "alice")
		assert.Equal(t, "alice", a)
		assert.Equal(t, "bob", b)
	})
}

func TestBalanceLedgerService_applyPairAdjustment(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBalanceLedgerService(db, nil, NewNotificationService(db, nil))

	t.Run("delta kept when userX is the smaller id", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO balances").
			WithArgs(sqlmock.AnyArg(), "alice", "bob", "50").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.applyPairAdjustmentTx(tx, "alice", "bob", decimal.NewFromInt(50))
		assert.NoError(t, err)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delta negated when userX is the larger id", func(t *testing.T) {
		// bob now owes alice 80, so the stored "alice owes bob" amount drops by 80
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO balances").
			WithArgs(sqlmock.AnyArg(), "alice", "bob", "-80").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.applyPairAdjustmentTx(tx, "bob", "alice", decimal.NewFromInt(80))
		assert.NoError(t, err)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self pair is a silent no-op", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.applyPairAdjustmentTx(tx, "alice", "alice", decimal.NewFromInt(999))
		assert.NoError(t, err)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBalanceLedgerService_RecordSplitTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBalanceLedgerService(db, nil, NewNotificationService(db, nil))

	t.Run("one adjustment per non-payer share", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO balances").
			WithArgs(sqlmock.AnyArg(), "alice", "carol", "100").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO balances").
			WithArgs(sqlmock.AnyArg(), "bob", "carol", "100").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.RecordSplitTx(tx, "carol", evenShares(100, "alice", "bob", "carol"))
		assert.NoError(t, err)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBalanceLedgerService_RecordSettlement(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBalanceLedgerService(db, nil, NewNotificationService(db, nil))
	ctx := context.Background()

	t.Run("negative amount rejected before any storage mutation", func(t *testing.T) {
		_, err := service.RecordSettlement(ctx, "alice", "carol", decimal.NewFromInt(-5))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		_, err := service.RecordSettlement(ctx, "alice", "carol", decimal.Zero)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self settlement rejected", func(t *testing.T) {
		_, err := service.RecordSettlement(ctx, "alice", "alice", decimal.NewFromInt(10))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "yourself")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("successful settlement reduces the debt by exactly the amount", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO settlements").
			WithArgs(sqlmock.AnyArg(), "alice", "carol", "100", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO balances").
			WithArgs(sqlmock.AnyArg(), "alice", "carol", "-100").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		// best-effort notification after commit
		mock.ExpectQuery("SELECT name FROM users").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Alice"))
		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(sqlmock.AnyArg(), "carol", "PAYMENT_SETTLED", sqlmock.AnyArg(), "100", nil).
			WillReturnResult(sqlmock.NewResult(1, 1))

		settlement, err := service.RecordSettlement(ctx, "alice", "carol", decimal.NewFromInt(100))
		assert.NoError(t, err)
		assert.Equal(t, "alice", settlement.FromUserID)
		assert.Equal(t, "carol", settlement.ToUserID)
		assert.True(t, settlement.Amount.Equal(decimal.NewFromInt(100)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("settlement from the larger id flips the stored sign", func(t *testing.T) {
		// carol pays alice 30: canonical pair is (alice, carol), stored delta is +30
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO settlements").
			WithArgs(sqlmock.AnyArg(), "carol", "alice", "30", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO balances").
			WithArgs(sqlmock.AnyArg(), "alice", "carol", "30").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		mock.ExpectQuery("SELECT name FROM users").
			WithArgs("carol").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Carol"))
		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(sqlmock.AnyArg(), "alice", "PAYMENT_SETTLED", sqlmock.AnyArg(), "30", nil).
			WillReturnResult(sqlmock.NewResult(1, 1))

		_, err := service.RecordSettlement(ctx, "carol", "alice", decimal.NewFromInt(30))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("notification failure does not undo the committed adjustment", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO settlements").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO balances").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		mock.ExpectQuery("SELECT name FROM users").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Alice"))
		mock.ExpectExec("INSERT INTO notifications").
			WillReturnError(assert.AnError)

		settlement, err := service.RecordSettlement(ctx, "alice", "carol", decimal.NewFromInt(20))
		assert.NoError(t, err)
		assert.NotNil(t, settlement)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBalanceLedgerService_GetBalancesForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBalanceLedgerService(db, nil, NewNotificationService(db, nil))
	ctx := context.Background()

	t.Run("caller-relative amounts", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"user_a", "user_b", "net_amount", "id", "name", "avatar"}).
			AddRow("alice", "bob", "50", "alice", "Alice", "🦊").
			AddRow("bob", "carol", "100", "carol", "Carol", "🐼")

		mock.ExpectQuery("SELECT b.user_a, b.user_b, b.net_amount").
			WithArgs("bob").
			WillReturnRows(rows)

		entries, err := service.GetBalancesForUser(ctx, "bob")
		assert.NoError(t, err)
		assert.Len(t, entries, 2)

		// bob is user_b of (alice, bob): +50 means alice owes bob
		assert.Equal(t, "alice", entries[0].UserID)
		assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(-50)))

		// bob is user_a of (bob, carol): +100 means bob owes carol
		assert.Equal(t, "carol", entries[1].UserID)
		assert.True(t, entries[1].Amount.Equal(decimal.NewFromInt(100)))
	})

	t.Run("near-zero pairs are hidden", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"user_a", "user_b", "net_amount", "id", "name", "avatar"}).
			AddRow("bob", "carol", "0.005", "carol", "Carol", "🐼").
			AddRow("bob", "dave", "-0.009", "dave", "Dave", "🦁")

		mock.ExpectQuery("SELECT b.user_a, b.user_b, b.net_amount").
			WithArgs("bob").
			WillReturnRows(rows)

		entries, err := service.GetBalancesForUser(ctx, "bob")
		assert.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("no pairs", func(t *testing.T) {
		mock.ExpectQuery("SELECT b.user_a, b.user_b, b.net_amount").
			WithArgs("bob").
			WillReturnRows(sqlmock.NewRows([]string{"user_a", "user_b", "net_amount", "id", "name", "avatar"}))

		entries, err := service.GetBalancesForUser(ctx, "bob")
		assert.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestBalanceLedgerService_ScanAndRemind(t *testing.T) {
	ctx := context.Background()

	balanceRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"user_a", "user_b", "net_amount", "name_a", "name_b"})
	}

	t.Run("reminds debtors on both sides of the sign", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewBalanceLedgerService(db, nil, NewNotificationService(db, nil))

		mock.ExpectQuery("SELECT b.user_a, b.user_b, b.net_amount, ua.name, ub.name").
			WillReturnRows(balanceRows().
				AddRow("alice", "bob", "100", "Alice", "Bob").
				AddRow("carol", "dave", "-30", "Carol", "Dave").
				AddRow("eve", "frank", "0.001", "Eve", "Frank"))

		// alice owes bob
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("alice", "REMINDER", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(sqlmock.AnyArg(), "alice", "REMINDER", sqlmock.AnyArg(), "100", nil).
			WillReturnResult(sqlmock.NewResult(1, 1))

		// negative net: dave owes carol
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("dave", "REMINDER", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(sqlmock.AnyArg(), "dave", "REMINDER", sqlmock.AnyArg(), "30", nil).
			WillReturnResult(sqlmock.NewResult(1, 1))

		sent, err := service.ScanAndRemind(ctx, 24*time.Hour)
		assert.NoError(t, err)
		assert.Equal(t, 2, sent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("debtor reminded within the window is skipped", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewBalanceLedgerService(db, nil, NewNotificationService(db, nil))

		mock.ExpectQuery("SELECT b.user_a, b.user_b, b.net_amount, ua.name, ub.name").
			WillReturnRows(balanceRows().AddRow("alice", "bob", "100", "Alice", "Bob"))

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("alice", "REMINDER", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		sent, err := service.ScanAndRemind(ctx, 24*time.Hour)
		assert.NoError(t, err)
		assert.Equal(t, 0, sent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent scan skipped while the lock is held", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		service := NewBalanceLedgerService(db, redisClient, NewNotificationService(db, redisClient))

		redisMock.ExpectSetNX(reminderScanLockKey, 1, service.scanLockTTL).SetVal(false)

		sent, err := service.ScanAndRemind(ctx, 24*time.Hour)
		assert.NoError(t, err)
		assert.Equal(t, 0, sent)
		assert.NoError(t, dbMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

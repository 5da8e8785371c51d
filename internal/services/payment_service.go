package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/grubtab/backend/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type PaymentService struct {
	db        *sql.DB
	ledger    *BalanceLedgerService
	notifier  *NotificationService
	validator *ValidationHelper
}

// SplitShare is one participant's share in a split request.
type SplitShare struct {
	UserID string  `json:"userId" validate:"required"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// SplitBillRequest is the payload for splitting a day's bill.
// @Description Split bill request structure
type SplitBillRequest struct {
	PaidBy      string       `json:"paidBy" validate:"required"`
	TotalAmount float64      `json:"totalAmount" validate:"required,gt=0"`
	Splits      []SplitShare `json:"splits" validate:"required,min=1,dive"`
}

func NewPaymentService(db *sql.DB, ledger *BalanceLedgerService, notifier *NotificationService) *PaymentService {
	return &PaymentService{
		db:        db,
		ledger:    ledger,
		notifier:  notifier,
		validator: NewValidationHelper(),
	}
}

// GetDayPayment returns the day's payment with its split details
// @Summary Get a day's payment
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} object{payment=models.DayPayment,splits=[]models.SplitDetail}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /payments/{date} [get]
func (s *PaymentService) GetDayPayment(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !isValidDate(date) {
		SendErrorResponse(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
		return
	}

	var payment models.DayPayment
	err := s.db.QueryRow(`
        SELECT p.id, p.date, p.paid_by, p.total_amount, p.created_at, u.name, u.avatar
        FROM day_payments p
        JOIN users u ON u.id = p.paid_by
        WHERE p.date = $1
    `, date).Scan(&payment.ID, &payment.Date, &payment.PaidBy, &payment.TotalAmount,
		&payment.CreatedAt, &payment.PayerName, &payment.PayerAvatar)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "No payment recorded for this date", http.StatusNotFound, nil)
		} else {
			log.Printf("[PAYMENT] Failed to fetch payment for %s: %v", date, err)
			SendErrorResponse(w, "Failed to fetch payment", http.StatusInternalServerError, nil)
		}
		return
	}

	rows, err := s.db.Query(`
        SELECT user_id, amount FROM split_details WHERE day_payment_id = $1
    `, payment.ID)
	if err != nil {
		log.Printf("[PAYMENT] Failed to fetch split details for %s: %v", payment.ID, err)
		SendErrorResponse(w, "Failed to fetch split details", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	splits := []models.SplitDetail{}
	for rows.Next() {
		var d models.SplitDetail
		if err := rows.Scan(&d.UserID, &d.Amount); err != nil {
			SendErrorResponse(w, "Failed to fetch split details", http.StatusInternalServerError, nil)
			return
		}
		splits = append(splits, d)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"payment": payment,
		"splits":  splits,
	})
}

// SplitBill records who paid the day's bill and how it divides
// @Summary Split a day's bill
// @Description Record the day's payment, its per-user shares, and apply the balance adjustments in one transaction
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param request body SplitBillRequest true "Split details"
// @Success 201 {object} object{success=bool,payment=models.DayPayment}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /payments/{date}/split [post]
func (s *PaymentService) SplitBill(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !isValidDate(date) {
		SendErrorResponse(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
		return
	}

	var req SplitBillRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	total := decimal.NewFromFloat(req.TotalAmount)
	shares := make([]models.SplitDetail, 0, len(req.Splits))
	sum := decimal.Zero
	for _, sp := range req.Splits {
		amount := decimal.NewFromFloat(sp.Amount)
		shares = append(shares, models.SplitDetail{UserID: sp.UserID, Amount: amount})
		sum = sum.Add(amount)
	}

	if !sum.Sub(total).Abs().LessThan(zeroEpsilon) {
		log.Printf("[PAYMENT] Split rejected for %s: shares sum %s != total %s", date, sum, total)
		SendErrorResponse(w, "Split amounts must sum to the total", http.StatusBadRequest, nil)
		return
	}

	payment := models.DayPayment{
		ID:          uuid.NewString(),
		Date:        date,
		PaidBy:      req.PaidBy,
		TotalAmount: total,
		CreatedAt:   time.Now(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[PAYMENT] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to record payment", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT INTO day_payments (id, date, paid_by, total_amount, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, payment.ID, payment.Date, payment.PaidBy, payment.TotalAmount, payment.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			SendErrorResponse(w, "Bill already split for this date", http.StatusConflict, nil)
			return
		}
		log.Printf("[PAYMENT] Failed to insert day payment for %s: %v", date, err)
		SendErrorResponse(w, "Failed to record payment", http.StatusInternalServerError, nil)
		return
	}

	for _, share := range shares {
		_, err = tx.Exec(`
            INSERT INTO split_details (id, day_payment_id, user_id, amount)
            VALUES ($1, $2, $3, $4)
        `, uuid.NewString(), payment.ID, share.UserID, share.Amount)
		if err != nil {
			log.Printf("[PAYMENT] Failed to insert split detail: %v", err)
			SendErrorResponse(w, "Failed to record split", http.StatusInternalServerError, nil)
			return
		}
	}

	if err := s.ledger.RecordSplitTx(tx, req.PaidBy, shares); err != nil {
		log.Printf("[PAYMENT] Failed to apply balance adjustments for %s: %v", date, err)
		SendErrorResponse(w, "Failed to update balances", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[PAYMENT] Failed to commit split for %s: %v", date, err)
		SendErrorResponse(w, "Failed to record payment", http.StatusInternalServerError, nil)
		return
	}

	// Notifications after commit: best-effort, never undoes the split.
	go s.notifySplit(context.Background(), payment, shares)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"payment": payment,
	})
}

func (s *PaymentService) notifySplit(ctx context.Context, payment models.DayPayment, shares []models.SplitDetail) {
	var payerName string
	err := s.db.QueryRow(`SELECT name FROM users WHERE id = $1`, payment.PaidBy).Scan(&payerName)
	if err != nil {
		log.Printf("[PAYMENT] Failed to resolve payer %s for split notifications: %v", payment.PaidBy, err)
		payerName = "Someone"
	}

	for _, share := range shares {
		if share.UserID == payment.PaidBy {
			continue
		}
		message := fmt.Sprintf("%s dropped ₹%s for %s 🍕 you owe ₹%s",
			payerName, payment.TotalAmount.StringFixed(0), payment.Date, share.Amount.StringFixed(0))
		amount := share.Amount
		date := payment.Date
		if err := s.notifier.Emit(ctx, share.UserID, models.NotificationBillSplit, message, &amount, &date); err != nil {
			log.Printf("[PAYMENT] Failed to insert split notification for user %s: %v", share.UserID, err)
		}
	}
}

func isValidDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

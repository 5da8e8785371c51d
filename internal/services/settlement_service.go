package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/grubtab/backend/internal/models"
	"github.com/shopspring/decimal"
)

type SettlementService struct {
	db        *sql.DB
	ledger    *BalanceLedgerService
	validator *ValidationHelper
}

// SettleRequest is the payload for settling a debt.
// @Description Settle request structure
type SettleRequest struct {
	ToUserID string  `json:"toUserId" validate:"required"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
}

func NewSettlementService(db *sql.DB, ledger *BalanceLedgerService) *SettlementService {
	return &SettlementService{
		db:        db,
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// SettleDebt records a payment from the current user to a creditor
// @Summary Settle a debt
// @Description Record a direct payment from the authenticated user to another user, reducing the pair's net debt
// @Tags settlements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SettleRequest true "Settlement details"
// @Success 201 {object} object{success=bool,settlement=models.Settlement}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /settlements [post]
func (s *SettlementService) SettleDebt(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req SettleRequest

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

	if req.ToUserID == userID {
		SendErrorResponse(w, "Cannot settle a debt with yourself", http.StatusBadRequest, nil)
		return
	}

	settlement, err := s.ledger.RecordSettlement(r.Context(), userID, req.ToUserID, decimal.NewFromFloat(req.Amount))
	if err != nil {
		log.Printf("[SETTLE] Settlement failed from %s to %s: %v", userID, req.ToUserID, err)
		SendErrorResponse(w, "Failed to record settlement", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[SETTLE] User %s settled ₹%s to %s", userID, settlement.Amount.StringFixed(0), req.ToUserID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":    true,
		"settlement": settlement,
	})
}

// ListSettlements returns recent settlements involving the current user
// @Summary List settlements
// @Tags settlements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{settlements=[]models.Settlement,count=int}
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /settlements [get]
func (s *SettlementService) ListSettlements(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
        SELECT id, from_user_id, to_user_id, amount, created_at
        FROM settlements
        WHERE from_user_id = $1 OR to_user_id = $1
        ORDER BY created_at DESC
        LIMIT 50
    `, userID)
	if err != nil {
		log.Printf("[SETTLE] Failed to fetch settlements for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch settlements", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	settlements := []models.Settlement{}
	for rows.Next() {
		var st models.Settlement
		if err := rows.Scan(&st.ID, &st.FromUserID, &st.ToUserID, &st.Amount, &st.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch settlements", http.StatusInternalServerError, nil)
			return
		}
		settlements = append(settlements, st)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"settlements": settlements,
		"count":       len(settlements),
	})
}

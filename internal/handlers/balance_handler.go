package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/grubtab/backend/internal/services"
)

type BalanceHandler struct {
	ledger *services.BalanceLedgerService
}

func NewBalanceHandler(ledger *services.BalanceLedgerService) *BalanceHandler {
	return &BalanceHandler{ledger: ledger}
}

// GetBalances returns who owes whom relative to the current user
// @Summary Get balances
// @Description List the authenticated user's non-zero pairwise balances; positive amounts are owed by the user, negative amounts are owed to the user
// @Tags balances
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{balances=[]models.BalanceEntry,count=int}
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /balances [get]
func (h *BalanceHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balances, err := h.ledger.GetBalancesForUser(r.Context(), userID)
	if err != nil {
		log.Printf("[BALANCE] Failed to fetch balances for user %s: %v", userID, err)
		services.SendErrorResponse(w, "Failed to fetch balances", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"balances": balances,
		"count":    len(balances),
	})
}

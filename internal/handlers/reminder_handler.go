package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/grubtab/backend/internal/config"
	"github.com/grubtab/backend/internal/services"
)

type ReminderHandler struct {
	ledger *services.BalanceLedgerService
	cfg    *config.ReminderConfig
}

func NewReminderHandler(ledger *services.BalanceLedgerService, cfg *config.ReminderConfig) *ReminderHandler {
	return &ReminderHandler{ledger: ledger, cfg: cfg}
}

// ScanAndRemind triggers a reminder sweep
// @Summary Run the reminder scan
// @Description Sweep all non-zero balances and nudge debtors not reminded within the window; idempotent within the window
// @Tags reminders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{sent=int}
// @Failure 500 {object} services.ErrorResponse
// @Router /reminders/scan [post]
func (h *ReminderHandler) ScanAndRemind(w http.ResponseWriter, r *http.Request) {
	sent, err := h.ledger.ScanAndRemind(r.Context(), h.cfg.Window)
	if err != nil {
		log.Printf("[REMINDER] Manual scan failed: %v", err)
		services.SendErrorResponse(w, "Reminder scan failed", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"sent": sent})
}

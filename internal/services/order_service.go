package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/grubtab/backend/internal/models"
)

type OrderService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewOrderService(db *sql.DB) *OrderService {
	return &OrderService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// ListOrders returns a day's orders with user names and avatars
// @Summary List a day's orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} object{orders=[]models.Order,count=int}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /orders/{date} [get]
func (s *OrderService) ListOrders(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !isValidDate(date) {
		SendErrorResponse(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
		return
	}

	orders, err := s.fetchOrders(date)
	if err != nil {
		log.Printf("[ORDERS] Failed to fetch orders for %s: %v", date, err)
		SendErrorResponse(w, "Failed to fetch orders", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"orders": orders,
		"count":  len(orders),
	})
}

// AddOrder adds the current user's food entry for a day
// @Summary Add an order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param request body object{foodItem=string} true "Order"
// @Success 201 {object} object{success=bool,order=models.Order}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /orders/{date} [post]
func (s *OrderService) AddOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	date := chi.URLParam(r, "date")
	if !isValidDate(date) {
		SendErrorResponse(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		FoodItem string `json:"foodItem" validate:"required,min=1,max=120"`
	}

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

	req.FoodItem = strings.TrimSpace(req.FoodItem)

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	order := models.Order{
		ID:        uuid.NewString(),
		Date:      date,
		UserID:    userID,
		FoodItem:  req.FoodItem,
		CreatedAt: time.Now(),
	}

	_, err := s.db.Exec(`
        INSERT INTO orders (id, date, user_id, food_item, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, order.ID, order.Date, order.UserID, order.FoodItem, order.CreatedAt)
	if err != nil {
		log.Printf("[ORDERS] Failed to insert order for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to add order", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"order":   order,
	})
}

// UpdateOrder changes the food item of one of the current user's orders
// @Summary Update an order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param request body object{foodItem=string} true "Order"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [put]
func (s *OrderService) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	orderID := chi.URLParam(r, "id")

	var req struct {
		FoodItem string `json:"foodItem" validate:"required,min=1,max=120"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	req.FoodItem = strings.TrimSpace(req.FoodItem)

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.db.Exec(`
        UPDATE orders SET food_item = $1 WHERE id = $2 AND user_id = $3
    `, req.FoodItem, orderID, userID)
	if err != nil {
		log.Printf("[ORDERS] Failed to update order %s: %v", orderID, err)
		SendErrorResponse(w, "Failed to update order", http.StatusInternalServerError, nil)
		return
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		SendErrorResponse(w, "Order not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// DeleteOrder removes one of the current user's orders
// @Summary Delete an order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [delete]
func (s *OrderService) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	orderID := chi.URLParam(r, "id")

	result, err := s.db.Exec(`
        DELETE FROM orders WHERE id = $1 AND user_id = $2
    `, orderID, userID)
	if err != nil {
		log.Printf("[ORDERS] Failed to delete order %s: %v", orderID, err)
		SendErrorResponse(w, "Failed to delete order", http.StatusInternalServerError, nil)
		return
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		SendErrorResponse(w, "Order not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// OrderSummary returns shareable text renderings of a day's orders
// @Summary Get a day's order summary
// @Description Grouped copy message and downloadable sheet for the day's orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} object{copyMessage=string,downloadContent=string}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /orders/{date}/summary [get]
func (s *OrderService) OrderSummary(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !isValidDate(date) {
		SendErrorResponse(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
		return
	}

	orders, err := s.fetchOrders(date)
	if err != nil {
		log.Printf("[ORDERS] Failed to fetch orders for %s: %v", date, err)
		SendErrorResponse(w, "Failed to fetch orders", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"copyMessage":     GenerateCopyMessage(orders),
		"downloadContent": GenerateDownloadContent(date, orders),
	})
}

func (s *OrderService) fetchOrders(date string) ([]models.Order, error) {
	rows, err := s.db.Query(`
        SELECT o.id, o.date, o.user_id, o.food_item, o.created_at, u.name, u.avatar
        FROM orders o
        JOIN users u ON u.id = o.user_id
        WHERE o.date = $1
        ORDER BY o.created_at
    `, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.Date, &o.UserID, &o.FoodItem, &o.CreatedAt, &o.UserName, &o.UserAvatar); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// groupedItem is a food item with its occurrence count, in first-seen order.
type groupedItem struct {
	Item  string
	Count int
}

// GroupOrders tallies orders by case-insensitive food item, preserving the
// order items first appear in.
func GroupOrders(orders []models.Order) []groupedItem {
	counts := map[string]int{}
	keys := []string{}
	for _, o := range orders {
		normalized := strings.ToLower(strings.TrimSpace(o.FoodItem))
		if _, seen := counts[normalized]; !seen {
			keys = append(keys, normalized)
		}
		counts[normalized]++
	}

	grouped := make([]groupedItem, 0, len(keys))
	for _, k := range keys {
		grouped = append(grouped, groupedItem{Item: k, Count: counts[k]})
	}
	return grouped
}

// GenerateCopyMessage renders the grouped order list for pasting into chat.
func GenerateCopyMessage(orders []models.Order) string {
	lines := []string{"Today's Order:", ""}
	for _, g := range GroupOrders(orders) {
		lines = append(lines, formatGroupedLine(g))
	}
	return strings.Join(lines, "\n")
}

// GenerateDownloadContent renders the per-user list plus a grouped summary.
func GenerateDownloadContent(date string, orders []models.Order) string {
	lines := []string{fmt.Sprintf("Date: %s", date), ""}

	for _, o := range orders {
		lines = append(lines, fmt.Sprintf("%s - %s", o.UserName, o.FoodItem))
	}

	lines = append(lines, "", "Grouped Summary:", "")

	for _, g := range GroupOrders(orders) {
		lines = append(lines, formatGroupedLine(g))
	}

	return strings.Join(lines, "\n")
}

func formatGroupedLine(g groupedItem) string {
	display := g.Item
	if len(display) > 0 {
		display = strings.ToUpper(display[:1]) + display[1:]
	}
	if g.Count > 1 {
		return fmt.Sprintf("%s *%d", display, g.Count)
	}
	return display
}

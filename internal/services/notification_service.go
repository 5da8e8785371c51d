package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/grubtab/backend/internal/models"
	"github.com/shopspring/decimal"
)

type NotificationService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewNotificationService(db *sql.DB, redisClient *redis.Client) *NotificationService {
	return &NotificationService{
		db:    db,
		redis: redisClient,
	}
}

// Emit inserts a notification for a user. Failures here must never undo a
// committed balance adjustment; callers log and move on.
func (s *NotificationService) Emit(ctx context.Context, userID, notifType, message string, amount *decimal.Decimal, relatedDate *string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO notifications (id, user_id, type, message, amount, related_date, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, false, NOW())
    `, uuid.NewString(), userID, notifType, message, amount, relatedDate)
	if err != nil {
		return err
	}

	s.publish(ctx, userID, notifType)
	return nil
}

// publish fans out a change signal so connected clients can refetch.
// Best-effort: a dead Redis never fails a notification insert.
func (s *NotificationService) publish(ctx context.Context, userID, notifType string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Publish(ctx, "notif:"+userID, notifType).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to publish notification for user %s: %v", userID, err)
	}
}

// ListNotifications returns the latest notifications for the current user
// @Summary List notifications
// @Description Get the latest 50 notifications for the authenticated user
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{notifications=[]models.Notification,unreadCount=int}
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /notifications [get]
func (s *NotificationService) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
        SELECT id, user_id, type, message, related_date, amount, is_read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT 50
    `, userID)
	if err != nil {
		log.Printf("[NOTIFY] Failed to fetch notifications for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch notifications", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	notifications := []models.Notification{}
	unread := 0
	for rows.Next() {
		var n models.Notification
		var relatedDate sql.NullString
		var amount sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &relatedDate, &amount, &n.IsRead, &createdAt); err != nil {
			SendErrorResponse(w, "Failed to fetch notifications", http.StatusInternalServerError, nil)
			return
		}
		if relatedDate.Valid {
			n.RelatedDate = &relatedDate.String
		}
		if amount.Valid {
			if d, err := decimal.NewFromString(amount.String); err == nil {
				n.Amount = &d
			}
		}
		n.CreatedAt = createdAt
		if !n.IsRead {
			unread++
		}
		notifications = append(notifications, n)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"notifications": notifications,
		"unreadCount":   unread,
	})
}

// MarkRead marks one notification as read
// @Summary Mark notification read
// @Description Mark a single notification as read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} object{success=bool}
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /notifications/{id}/read [put]
func (s *NotificationService) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	notifID := chi.URLParam(r, "id")

	result, err := s.db.Exec(`
        UPDATE notifications SET is_read = true
        WHERE id = $1 AND user_id = $2
    `, notifID, userID)
	if err != nil {
		log.Printf("[NOTIFY] Failed to mark notification %s read: %v", notifID, err)
		SendErrorResponse(w, "Failed to update notification", http.StatusInternalServerError, nil)
		return
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		SendErrorResponse(w, "Notification not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// MarkAllRead marks every unread notification for the current user as read
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,updated=int64}
// @Failure 401 {object} ErrorResponse
// @Router /notifications/read-all [put]
func (s *NotificationService) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	result, err := s.db.Exec(`
        UPDATE notifications SET is_read = true
        WHERE user_id = $1 AND is_read = false
    `, userID)
	if err != nil {
		log.Printf("[NOTIFY] Failed to mark all notifications read for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to update notifications", http.StatusInternalServerError, nil)
		return
	}

	updated, _ := result.RowsAffected()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true, "updated": updated})
}

package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/grubtab/backend/internal/models"
	"github.com/spf13/viper"
)

type UserService struct {
	db        *sql.DB
	validator *validator.Validate
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=40" example:"Priya"` // Display name
	Avatar string `json:"avatar" validate:"required" example:"🐼"`               // Avatar glyph
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	User  models.User `json:"user"`                                                    // User information
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{
		db:        db,
		validator: validator.New(),
	}
}

// Login finds or creates a user by case-insensitive name
// @Summary Log in by name
// @Description Find or create a user by case-insensitive display name and return a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (s *UserService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Login failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	req.Name = strings.TrimSpace(req.Name)

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var user models.User
	err := s.db.QueryRow(`
        SELECT id, name, avatar, created_at FROM users
        WHERE LOWER(name) = LOWER($1)
    `, req.Name).Scan(&user.ID, &user.Name, &user.Avatar, &user.CreatedAt)

	if err == sql.ErrNoRows {
		user = models.User{
			ID:        uuid.NewString(),
			Name:      req.Name,
			Avatar:    req.Avatar,
			CreatedAt: time.Now(),
		}
		_, err = s.db.Exec(`
            INSERT INTO users (id, name, avatar, created_at)
            VALUES ($1, $2, $3, $4)
        `, user.ID, user.Name, user.Avatar, user.CreatedAt)
		if err != nil {
			log.Printf("[AUTH] User creation failed for %s: %v", req.Name, err)
			SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
			return
		}
		log.Printf("[AUTH] User created - ID: %s, name: %s", user.ID, user.Name)
	} else if err != nil {
		log.Printf("[AUTH] User lookup failed for %s: %v", req.Name, err)
		SendErrorResponse(w, "Failed to look up user", http.StatusInternalServerError, nil)
		return
	}

	token, err := generateJWT(user.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %s: %v", user.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for user %s", user.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, User: user})
}

// GetCurrentUser resolves the authenticated user
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /auth/me [get]
func (s *UserService) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var user models.User
	err := s.db.QueryRow(`
        SELECT id, name, avatar, created_at FROM users WHERE id = $1
    `, userID).Scan(&user.ID, &user.Name, &user.Avatar, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch user", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// ListUsers returns every participant
// @Summary List users
// @Description List all participants, for the split dialog picker
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{users=[]models.User,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /users [get]
func (s *UserService) ListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
        SELECT id, name, avatar, created_at FROM users ORDER BY name
    `)
	if err != nil {
		log.Printf("[USERS] Failed to list users: %v", err)
		SendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Avatar, &u.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
			return
		}
		users = append(users, u)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"users": users,
		"count": len(users),
	})
}

func generateJWT(userID string) (string, error) {
	viper.SetDefault("jwt.expiry_hours", 720)

	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

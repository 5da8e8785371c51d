package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/grubtab/backend/docs"
	"github.com/grubtab/backend/internal/config"
	"github.com/grubtab/backend/internal/database"
	"github.com/grubtab/backend/internal/handlers"
	mW "github.com/grubtab/backend/internal/middleware"
	"github.com/grubtab/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title GrubTab Backend API
// @version 1.0
// @description API for the shared food-order and expense-splitting app
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "GrubTab Backend API"
	docs.SwaggerInfo.Description = "API for the shared food-order and expense-splitting app"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	reminderCfg := config.LoadReminderConfig()

	notificationService := services.NewNotificationService(db, redisClient)
	ledgerService := services.NewBalanceLedgerService(db, redisClient, notificationService)
	userService := services.NewUserService(db)
	paymentService := services.NewPaymentService(db, ledgerService, notificationService)
	settlementService := services.NewSettlementService(db, ledgerService)
	orderService := services.NewOrderService(db)
	balanceHandler := handlers.NewBalanceHandler(ledgerService)
	reminderHandler := handlers.NewReminderHandler(ledgerService, reminderCfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Web client
	r.Handle("/static/*", http.StripPrefix("/static/",
		mW.StaticFileServer("./static/web")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/login", userService.Login)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/me", userService.GetCurrentUser)
			r.Get("/users", userService.ListUsers)

			r.Get("/orders/{date}", orderService.ListOrders)
			r.Post("/orders/{date}", orderService.AddOrder)
			r.Get("/orders/{date}/summary", orderService.OrderSummary)
			r.Put("/orders/{id}", orderService.UpdateOrder)
			r.Delete("/orders/{id}", orderService.DeleteOrder)

			r.Get("/payments/{date}", paymentService.GetDayPayment)
			r.Post("/payments/{date}/split", paymentService.SplitBill)

			r.Get("/balances", balanceHandler.GetBalances)

			r.Post("/settlements", settlementService.SettleDebt)
			r.Get("/settlements", settlementService.ListSettlements)

			r.Get("/notifications", notificationService.ListNotifications)
			r.Put("/notifications/{id}/read", notificationService.MarkRead)
			r.Put("/notifications/read-all", notificationService.MarkAllRead)

			r.Post("/reminders/scan", reminderHandler.ScanAndRemind)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Periodic reminder scan
	scanCtx, stopScan := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(reminderCfg.ScanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := ledgerService.ScanAndRemind(scanCtx, reminderCfg.Window); err != nil {
					log.Printf("[REMINDER] Scheduled scan failed: %v", err)
				}
			case <-scanCtx.Done():
				return
			}
		}
	}()

	// Start server
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopScan()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

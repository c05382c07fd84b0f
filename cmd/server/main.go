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
	"github.com/motorent/backend/docs"
	"github.com/motorent/backend/internal/config"
	"github.com/motorent/backend/internal/database"
	"github.com/motorent/backend/internal/handlers"
	mW "github.com/motorent/backend/internal/middleware"
	"github.com/motorent/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title MotoRent Booking API
// @version 1.0
// @description Car-rental booking, payment and wallet API
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg := config.Load()

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

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "MotoRent Booking API"
	docs.SwaggerInfo.Description = "Car-rental booking, payment and wallet API"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:" + cfg.ServerPort
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize storage
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize services. The platform account is resolved once here, not
	// looked up per request.
	walletService := services.NewWalletService(db)
	carRegistry := services.NewCarRegistry(db)
	bookingService := services.NewBookingService(db, carRegistry)
	coordinator := services.NewBookingCoordinator(db, walletService, carRegistry,
		bookingService, cfg.PlatformAccountID, cfg.StorageTimeout)
	voucherService := services.NewVoucherService(redisClient, cfg.VoucherTTL)
	reviewService := services.NewReviewService(db, bookingService)

	bookingHandler := handlers.NewBookingHandler(bookingService, coordinator, voucherService)
	walletHandler := handlers.NewWalletHandler(walletService)
	reviewHandler := handlers.NewReviewHandler(reviewService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
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
		httpSwagger.URL("http://localhost:"+cfg.ServerPort+"/swagger/doc.json"),
	))

	// Static file server for car images
	r.Handle("/static/cars/*", http.StripPrefix("/static/cars/",
		mW.StaticFileServer(cfg.StaticDir)))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Reviews are public to read, like the catalog itself.
		r.Get("/cars/{id}/reviews", reviewHandler.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/cars/{id}/reviews", reviewHandler.CreateReview)
			r.Post("/bookings", bookingHandler.CreateBooking)
			r.Get("/bookings", bookingHandler.ListBookings)
			r.Get("/bookings/{id}", bookingHandler.GetBooking)
			r.Post("/bookings/{id}/pay", bookingHandler.PayBooking)
			r.Post("/bookings/{id}/cancel", bookingHandler.CancelBooking)
			r.Get("/bookings/{id}/voucher", bookingHandler.GetVoucher)

			r.Get("/wallet/{accountId}", walletHandler.GetWallet)

			// Back-office endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.AdminOnly)

				r.Post("/bookings/{id}/complete", bookingHandler.CompleteBooking)
				r.Post("/vouchers/redeem", bookingHandler.RedeemVoucher)
				r.Post("/wallet/{accountId}/deposit", walletHandler.Deposit)
				r.Post("/wallet/{accountId}/reconcile", walletHandler.Reconcile)
			})
		})
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

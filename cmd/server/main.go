package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/darkosells/gaming-marketplace-sub001/internal/blacklist"
	"github.com/darkosells/gaming-marketplace-sub001/internal/delivery"
	"github.com/darkosells/gaming-marketplace-sub001/internal/domain"
	"github.com/darkosells/gaming-marketplace-sub001/internal/fraud"
	"github.com/darkosells/gaming-marketplace-sub001/internal/handler"
	"github.com/darkosells/gaming-marketplace-sub001/internal/middleware"
	"github.com/darkosells/gaming-marketplace-sub001/internal/moderation"
	"github.com/darkosells/gaming-marketplace-sub001/internal/notification"
	"github.com/darkosells/gaming-marketplace-sub001/internal/order"
	"github.com/darkosells/gaming-marketplace-sub001/internal/payment"
	"github.com/darkosells/gaming-marketplace-sub001/internal/realtime"
	"github.com/darkosells/gaming-marketplace-sub001/internal/repository/postgres"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/config"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("marketplace")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting Marketplace Service", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)

	// Redis connection
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Redis connected", nil)

	// Initialize repositories
	orderRepo := postgres.NewOrderRepository(db)
	codeRepo := postgres.NewDeliveryCodeRepository(db)
	listingRepo := postgres.NewListingRepository(db)
	userRepo := postgres.NewUserRepository(db)
	flagRepo := postgres.NewFraudFlagRepository(db)
	scanRunRepo := postgres.NewScanRunRepository(db)
	blacklistRepo := postgres.NewBlacklistRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	// Initialize services
	bus := realtime.NewBus()
	hub := realtime.NewHub(log)
	// The websocket hub is one bus consumer; admin clients re-fetch on signal.
	defer bus.OnChange(realtime.TableOrders, hub.Publish)()
	defer bus.OnChange(realtime.TableFraudFlags, hub.Publish)()

	notifier := notification.NewService(log)

	claimer := delivery.NewClaimer(codeRepo, orderRepo, listingRepo, notifier, log)
	orderService := order.NewService(orderRepo, listingRepo, claimer, notifier, bus, log)

	checkoutClient := payment.NewCheckoutClient(cfg.Payment.CheckoutBaseURL, cfg.Payment.CheckoutAPIKey)
	cryptoClient := payment.NewCryptoClient(cfg.Payment.CryptoBaseURL, cfg.Payment.CryptoAPIKey)
	reconciler := payment.NewReconciler(checkoutClient, cryptoClient, orderService, orderRepo, cfg.Payment, log)

	scanner := fraud.NewScanner(userRepo, orderRepo, listingRepo, flagRepo, scanRunRepo, cfg.Fraud, log)
	moderationService := moderation.NewService(flagRepo, orderRepo, userRepo, messageRepo, notifier, bus, log)
	blacklistService := blacklist.NewService(blacklistRepo, userRepo, log)

	// Initialize handlers
	val := validator.New()
	orderHandler := handler.NewOrderHandler(orderService, val, log)
	paymentHandler := handler.NewPaymentHandler(reconciler, val, log)
	deliveryHandler := handler.NewDeliveryHandler(claimer, val, log)
	fraudHandler := handler.NewFraudHandler(scanner, scanRunRepo, log)
	moderationHandler := handler.NewModerationHandler(moderationService, val, log)
	blacklistHandler := handler.NewBlacklistHandler(blacklistService, val, log)
	systemHandler := handler.NewSystemHandler(db, redisClient, hub, log)

	// Setup router
	r := mux.NewRouter()

	// Middleware
	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(1 << 20)) // 1MB global cap
	r.Use(middleware.NewRateLimiter(redisClient, "edge", 150, time.Minute).Limit)

	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	idemMW := middleware.NewIdempotencyMiddleware(redisClient, 24*time.Hour)

	// Health check routes (no auth)
	r.HandleFunc("/health", systemHandler.Health).Methods("GET")
	r.HandleFunc("/ready", systemHandler.Ready).Methods("GET")

	// Processor callback (no auth; verified against the processor itself)
	r.HandleFunc("/webhooks/crypto", paymentHandler.CryptoWebhook).Methods("POST")

	// Protected routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Authenticate)
	api.Use(middleware.NewRateLimiter(redisClient, "api", 60, time.Minute).Limit)

	// Realtime order events
	api.HandleFunc("/events", systemHandler.Events).Methods("GET")

	// Checkout
	api.HandleFunc("/checkout/card", paymentHandler.OpenCardCheckout).Methods("POST")
	api.Handle("/checkout/card/capture", idemMW.Require(http.HandlerFunc(paymentHandler.CaptureCard))).Methods("POST")
	api.HandleFunc("/checkout/crypto", paymentHandler.OpenCryptoCheckout).Methods("POST")

	// Orders
	api.HandleFunc("/orders/purchases", orderHandler.ListPurchases).Methods("GET")
	api.HandleFunc("/orders/sales", orderHandler.ListSales).Methods("GET")
	api.HandleFunc("/orders/{id}", orderHandler.Get).Methods("GET")
	api.HandleFunc("/orders/{id}/cancel", orderHandler.Cancel).Methods("POST")
	api.HandleFunc("/orders/{id}/deliver", orderHandler.MarkDelivered).Methods("POST")
	api.HandleFunc("/orders/{id}/complete", orderHandler.Complete).Methods("POST")
	api.HandleFunc("/orders/{id}/dispute", orderHandler.OpenDispute).Methods("POST")
	api.HandleFunc("/orders/{id}/code", deliveryHandler.CodeForOrder).Methods("GET")

	// Delivery codes (seller)
	api.HandleFunc("/listings/{id}/codes", deliveryHandler.UploadCodes).Methods("POST")
	api.HandleFunc("/listings/{id}/codes", deliveryHandler.ListCodes).Methods("GET")
	api.HandleFunc("/listings/{id}/stock", deliveryHandler.Stock).Methods("GET")

	// Admin surface; handlers enforce the super-admin gate themselves, the
	// route group keeps non-admin tokens out early.
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMW.RequireRole(domain.UserRoleAdmin))
	admin.HandleFunc("/fraud/scan", fraudHandler.TriggerScan).Methods("POST")
	admin.HandleFunc("/fraud/scans", fraudHandler.ListScanRuns).Methods("GET")
	admin.HandleFunc("/fraud/flags", moderationHandler.ListFlags).Methods("GET")
	admin.HandleFunc("/fraud/flags", moderationHandler.CreateManualFlag).Methods("POST")
	admin.HandleFunc("/fraud/flags/{id}/review", moderationHandler.ReviewFlag).Methods("POST")
	admin.HandleFunc("/users/{id}/flags", moderationHandler.UserFlags).Methods("GET")
	admin.HandleFunc("/orders/{id}/resolve", moderationHandler.ResolveDispute).Methods("POST")
	admin.HandleFunc("/blacklist", blacklistHandler.Add).Methods("POST")
	admin.HandleFunc("/blacklist", blacklistHandler.List).Methods("GET")
	admin.HandleFunc("/blacklist/{id}", blacklistHandler.Remove).Methods("DELETE")

	// Background sweep for abandoned checkouts
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runStaleSweep(sweepCtx, orderService, cfg.Payment.StalePendingAfter, log)

	// Start server
	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("Marketplace service started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down marketplace service...", nil)
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Marketplace service forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Marketplace service stopped gracefully", nil)
}

// runStaleSweep periodically cancels pending orders whose checkout was
// abandoned.
func runStaleSweep(ctx context.Context, orders *order.Service, olderThan time.Duration, log logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if _, err := orders.SweepStalePending(sweepCtx, olderThan, 500); err != nil {
				log.Error("Stale pending sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

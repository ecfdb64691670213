package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/hotelhub/booking-api/internal/config"
	"github.com/hotelhub/booking-api/internal/database"
	"github.com/hotelhub/booking-api/internal/handler"
	"github.com/hotelhub/booking-api/internal/middleware"
	"github.com/hotelhub/booking-api/internal/model"
	"github.com/hotelhub/booking-api/internal/queue"
	"github.com/hotelhub/booking-api/internal/repository"
	"github.com/hotelhub/booking-api/internal/router"
	"github.com/hotelhub/booking-api/internal/service"
	"github.com/hotelhub/booking-api/internal/settlement"
)

func main() {
	// .env is optional; real deployments set variables in the environment.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	// Redis backs the rate limiter and the availability cache.  A nil
	// client disables both; the API keeps working without them.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; response cache and rate limiting disabled")
	}

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	reservations := repository.NewReservationRepo(db)
	rooms := repository.NewRoomRepo(db)
	assigned := repository.NewAssignedRoomRepo(db)
	invoices := repository.NewInvoiceRepo(db)
	intents := repository.NewPaymentIntentRepo(db)

	// Services.
	events := queue.NewAMQPPublisher()
	allocator := service.NewAllocator(rooms, assigned)
	bookings := service.NewBookingService(db, reservations, assigned, rooms, invoices, allocator, events)

	oracle := settlement.NewHTTPOracle(cfg.OracleURL, cfg.OracleKey)
	bank := model.BankDetails{
		BankName:      cfg.BankName,
		AccountNumber: cfg.BankAccount,
		AccountHolder: cfg.BankHolder,
	}
	payments := service.NewPaymentService(intents, invoices, reservations, oracle, events, bank, cfg.IntentTTL)

	poller, err := service.NewPollerRegistry(payments, cfg.PollInterval)
	if err != nil {
		log.Fatalf("scheduler init failed: %v", err)
	}
	defer func() { _ = poller.Shutdown() }()

	// Resume polling for intents that were PENDING when the process
	// last stopped.
	resumeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := poller.Resume(resumeCtx); err != nil {
		log.Printf("resume pending intents failed: %v", err)
	}
	cancel()

	// The audit consumer tails the broker and writes the durable audit
	// trail.  It reconnects forever on its own.
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterBooking(e,
		handler.NewBookingHandler(bookings, reservations, assigned, invoices, users, cfg.TaxRatePercent),
		handler.NewRoomHandler(rooms),
		cfg.JWTSecret, config.LoadCacheConfig(), rdb)
	router.RegisterPayments(e, handler.NewPaymentHandler(payments, poller), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

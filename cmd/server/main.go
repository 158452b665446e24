package main // Entry point package

import (
	"context" // Context for the background sweeper
	"log"     // Logging library

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/marketplace-reservation/internal/clock"      // Injected time source
	"github.com/iliyamo/marketplace-reservation/internal/config"     // Internal config loader
	"github.com/iliyamo/marketplace-reservation/internal/database"   // MySQL connector
	"github.com/iliyamo/marketplace-reservation/internal/handler"    // HTTP handlers
	"github.com/iliyamo/marketplace-reservation/internal/middleware" // Rate limiting and caching
	"github.com/iliyamo/marketplace-reservation/internal/otp"        // Handoff code source
	"github.com/iliyamo/marketplace-reservation/internal/queue"      // Sale event consumer
	"github.com/iliyamo/marketplace-reservation/internal/repository" // Data access layer
	"github.com/iliyamo/marketplace-reservation/internal/router"     // Route registration
	"github.com/iliyamo/marketplace-reservation/internal/service"    // Reservation/transaction services
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient() // nil when Redis is unreachable

	// Repositories own all SQL; services own all sequencing.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	items := repository.NewItemRepo(db)
	carts := repository.NewCartRepo(db)
	orders := repository.NewOrderRepo(db)
	reviews := repository.NewReviewRepo(db)

	clk := clock.NewSystem()
	codes := otp.NewSource()

	reservations := service.NewReservationService(items, carts, clk)
	transactions := service.NewTransactionService(items, carts, orders, codes, clk,
		service.WithCodeTTL(cfg.CodeTTL))
	sweeper := service.NewSweeper(items, carts, orders, clk,
		service.WithHoldTTL(cfg.HoldTTL))

	authH := handler.NewAuthHandler(cfg, users, tokens)
	itemH := handler.NewItemHandler(items)
	cartH := handler.NewCartHandler(reservations)
	orderH := handler.NewOrderHandler(transactions, reservations, orders, items, clk)
	profileH := handler.NewProfileHandler(cfg, users, items, reviews)

	e := echo.New()
	e.HideBanner = true

	// Token-bucket rate limiting applies to every route; the browse cache is
	// handed to the router for the public storefront only.  Both middlewares
	// degrade to pass-throughs when Redis is not configured.
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	browseCache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e) // Health check
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterMarket(e, itemH, cartH, orderH, profileH, cfg.JWTSecret, browseCache)

	// Expiry sweeper: resolves overdue pending lines and reclaims idle cart
	// holds.  Expiry is observed, so the exact cadence is not load-bearing.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Start(ctx, cfg.SweepInterval)

	// Sale notification consumer; failures here never affect request flow.
	go func() {
		if err := queue.StartSaleConsumer(); err != nil {
			log.Printf("queue: consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-engine/internal/api/handlers"
	"auction-engine/internal/config"
	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/leader"
	"auction-engine/internal/infrastructure/mysql"
	engineredis "auction-engine/internal/infrastructure/redis"
	"auction-engine/internal/infrastructure/websocket"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("starting auction engine")

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis", "address", cfg.Redis.Address)

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("failed to open mysql", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close mysql connection", "error", err)
		}
	}()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping mysql", "error", err)
		os.Exit(1)
	}
	log.Info("connected to mysql")

	// Stores
	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	intentRepo := mysql.NewMySQLPurchaseIntentRepository(db)

	// Redis-backed components
	snapshotCache := engineredis.NewSnapshotCache(rdb)
	eventPublisher := engineredis.NewEventPublisher(rdb)
	eventSubscriber := engineredis.NewEventSubscriber(rdb, log)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Engine services
	handoff := services.NewPurchaseHandoff(intentRepo, cfg.Engine.Currency, log)
	coordinator := services.NewBidCoordinator(
		auctionRepo, eventPublisher, snapshotCache, handoff,
		cfg.Engine.AntiSnipeWindow, log)
	scheduler := services.NewTimerClosureScheduler(
		coordinator, auctionRepo, leaderElection, cfg.Instance.ID,
		cfg.Engine.ResyncInterval, log)
	coordinator.SetScheduler(scheduler)

	manager := services.NewAuctionManager(
		auctionRepo, bidRepo, snapshotCache, cfg.Engine.DefaultIncrement, log)
	manager.SetScheduler(scheduler)

	// Fan-out
	connManager := websocket.NewConnectionManager(log)
	notifier := services.NewEventNotifier(log)

	subscriberCtx, stopSubscriber := context.WithCancel(context.Background())
	defer stopSubscriber()
	go func() {
		err := eventSubscriber.SubscribeToAuctionEvents(subscriberCtx, func(event *domain.AuctionEvent) error {
			connManager.BroadcastToAuction(event.AuctionID, event)
			if event.Type == domain.EventAuctionClosed {
				connManager.CloseAuction(event.AuctionID)
			}
			return notifier.Handle(event)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("event subscription ended", "error", err)
		}
	}()

	// Re-derive the closure schedule from the store, then keep sweeping.
	if err := scheduler.Start(context.Background()); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Keep contending for leadership so a fallen leader is replaced.
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("leadership attempt failed", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("became closure leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	// HTTP server
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
	}))

	auctionHandler := handlers.NewAuctionHandler(manager, coordinator, log)
	wsHandler := handlers.NewWebSocketHandler(auctionRepo, connManager, log)

	api := e.Group("/api/v1")
	api.POST("/auctions", auctionHandler.CreateAuction)
	api.GET("/auctions", auctionHandler.ListLiveAuctions)
	api.GET("/auctions/:id", auctionHandler.GetAuction)
	api.GET("/auctions/:id/snapshot", auctionHandler.GetSnapshot)
	api.POST("/auctions/:id/bids", auctionHandler.PlaceBid)
	api.GET("/auctions/:id/bids", auctionHandler.ListBids)
	api.POST("/auctions/:id/close", auctionHandler.CloseAuction)

	e.GET("/ws/auctions/:id", wsHandler.Subscribe)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-engine",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting http server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down auction engine")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopSubscriber()
	if err := scheduler.Stop(); err != nil {
		log.Error("failed to stop scheduler", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("failed to release leadership", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("auction engine stopped")
}

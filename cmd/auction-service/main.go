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

	"auction-core/internal/api/handlers"
	"auction-core/internal/config"
	"auction-core/internal/infrastructure/mysql"
	redisinfra "auction-core/internal/infrastructure/redis"
	wsinfra "auction-core/internal/infrastructure/websocket"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting auction core service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Repositories
	txManager := mysql.NewTxManager(db)
	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	balanceRepo := mysql.NewMySQLBalanceRepository(db)
	settlementRepo := mysql.NewMySQLSettlementRepository(db)

	// Redis based components
	eventPublisher := redisinfra.NewEventPublisher(rdb)
	eventSubscriber := redisinfra.NewEventSubscriber(rdb, log)
	leaderElection := redisinfra.NewLeaderElection(rdb, cfg.Leader.TTL)

	// Core services
	locks := services.NewAuctionLocks()
	settlement := services.NewSettlementService(settlementRepo, auctionRepo, bidRepo,
		txManager, log)
	scheduler := services.NewTimerScheduler(auctionRepo, cfg.Scheduler.Workers,
		cfg.Scheduler.ShutdownGrace, log)
	auctionService := services.NewAuctionService(auctionRepo, bidRepo, settlement,
		scheduler, eventPublisher, locks, txManager, log)
	scheduler.SetCloser(auctionService)
	bidService := services.NewBidService(auctionRepo, bidRepo, balanceRepo,
		eventPublisher, locks, txManager, log)

	settlementWorker := services.NewSettlementWorker(settlement, leaderElection,
		cfg.Instance.ID, cfg.Settlement.RetryInterval, cfg.Settlement.BatchSize, log)

	// Websocket fan-out
	connManager := wsinfra.NewConnectionManager(log)
	notifier := wsinfra.NewNotifier(connManager)
	wsHandler := wsinfra.NewHandler(auctionRepo, connManager, log)
	eventListener := services.NewEventListener(connManager, notifier, log)

	// Recover closure timers lost to the restart before accepting traffic.
	if err := scheduler.Recover(context.Background()); err != nil {
		log.Error("Failed to recover closure schedules", "error", err)
		os.Exit(1)
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	auctionHandler := handlers.NewAuctionHandler(auctionService, log)
	bidHandler := handlers.NewBidHandler(bidService, log)

	api := e.Group("/api/v1")
	api.POST("/auctions", auctionHandler.CreateAuction)
	api.GET("/auctions", auctionHandler.ListAuctions)
	api.GET("/auctions/:id", auctionHandler.GetAuction)
	api.POST("/auctions/:id/end", auctionHandler.EndAuction)
	api.DELETE("/auctions/:id", auctionHandler.DeleteAuction)
	api.POST("/auctions/:id/bids", bidHandler.PlaceBid)
	api.PUT("/auctions/:id/bids/:bidId", bidHandler.UpdateBid)
	api.DELETE("/auctions/:id/bids/:bidId", bidHandler.CancelBid)
	api.GET("/auctions/:id/bids", bidHandler.ListBids)
	api.GET("/auctions/:id/bids/highest", bidHandler.GetHighestBid)
	api.GET("/bids/:bidId", bidHandler.GetBid)
	api.GET("/users/me/bids", bidHandler.ListMyBids)

	e.GET("/ws/auctions/:id", func(c echo.Context) error {
		wsHandler.HandleConnection(c.Response(), c.Request(),
			c.Param("id"), c.QueryParam("user_id"))
		return nil
	})

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-core",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Background services
	listenerCtx, stopListener := context.WithCancel(context.Background())
	defer stopListener()
	go func() {
		if err := eventListener.Start(listenerCtx, eventSubscriber); err != nil &&
			!errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	go func() {
		if err := settlementWorker.Start(context.Background()); err != nil {
			log.Error("Failed to start settlement worker", "error", err)
		}
	}()

	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became settlement leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting HTTP server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction core service...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down scheduler", "error", err)
	}
	if err := settlementWorker.Stop(); err != nil {
		log.Error("Failed to stop settlement worker", "error", err)
	}
	stopListener()
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction core service stopped")
}

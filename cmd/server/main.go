package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GabrielChurchill/YudokuChallenge/internal/api/handlers"
	"github.com/GabrielChurchill/YudokuChallenge/internal/config"
	"github.com/GabrielChurchill/YudokuChallenge/internal/jobs"
	"github.com/GabrielChurchill/YudokuChallenge/internal/repository"
	"github.com/GabrielChurchill/YudokuChallenge/internal/service"
	"github.com/GabrielChurchill/YudokuChallenge/internal/websocket"
	"github.com/GabrielChurchill/YudokuChallenge/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var (
		store     repository.Store
		redisRepo *repository.RedisRepository
	)

	if cfg.UsesPostgres() {
		db, err := initPostgres(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		log.Println("✓ Connected to PostgreSQL")

		pgRepo := repository.NewPostgresRepository(db)
		if err := pgRepo.AutoMigrate(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("✓ Database migrations completed")
		store = pgRepo

		redisClient, err := initRedis(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Println("✓ Connected to Redis")
		redisRepo = repository.NewRedisRepository(redisClient)
	} else {
		log.Println("✓ Using in-memory store (no PostgreSQL/Redis)")
		store = repository.NewMemoryRepository()
	}

	// Seed the puzzle catalog; insert-if-absent, safe on every start
	if err := store.SeedPuzzles(context.Background()); err != nil {
		log.Fatalf("Failed to seed puzzles: %v", err)
	}
	log.Println("✓ Puzzle catalog seeded")

	// Anomaly audit pool: a couple of workers is plenty, anomalies are rare
	anomalyPool := worker.NewPool(2, 100, store)
	anomalyPool.Start()

	// WebSocket hub for live leaderboard updates
	hub := websocket.NewHub(redisRepo)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Game service
	gameService := service.NewGameService(store, redisRepo, anomalyPool, hub, service.Options{
		RejectResubmission:      cfg.Game.RejectResubmission,
		DefaultLeaderboardLimit: cfg.Game.LeaderboardLimit,
	})

	// Optional bot traffic for demos
	var simulator *jobs.SimulationManager
	if cfg.Game.SimulatorEnabled {
		simulator = jobs.NewSimulationManager(gameService, jobs.SimulatorConfig{})
		if err := simulator.Start(ctx); err != nil {
			log.Printf("Failed to start simulator: %v", err)
		}
	}

	// Handlers
	gameHandler := handlers.NewGameHandler(gameService, hub)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Yudoku Challenge",
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Routes
	api := app.Group("/api")
	api.Get("/puzzles", gameHandler.ListPuzzles)
	api.Post("/runs/start", gameHandler.StartRun)
	api.Post("/runs/submit", gameHandler.SubmitRun)
	api.Post("/validate", gameHandler.ValidateCell)
	api.Get("/leaderboard", gameHandler.GetLeaderboard)
	api.Get("/health", gameHandler.HealthCheck)

	admin := api.Group("/admin")
	admin.Post("/reset", gameHandler.Reset)
	admin.Get("/stats", gameHandler.Stats)

	// WebSocket route with upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/leaderboard", fiberws.New(func(c *fiberws.Conn) {
		gameHandler.HandleWebSocket(c)
	}))

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server...")

		if simulator != nil {
			simulator.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}

		if err := anomalyPool.Shutdown(10 * time.Second); err != nil {
			log.Printf("Anomaly pool shutdown error: %v", err)
		}

		cancel()

		if err := store.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
		if redisRepo != nil {
			if err := redisRepo.Close(); err != nil {
				log.Printf("Error closing Redis: %v", err)
			}
		}

		log.Println("✓ Server shutdown complete")
	}()

	// Start server
	port := cfg.Server.Port
	log.Printf("Server starting on port %d...", port)
	if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initPostgres initializes PostgreSQL connection with connection pooling
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.GetDSN()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   "Request failed",
		"message": err.Error(),
	})
}

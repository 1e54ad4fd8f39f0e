package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"wordlewise/config"
	"wordlewise/database"
	"wordlewise/handlers"
	"wordlewise/logger"
	"wordlewise/metrics"
	"wordlewise/middleware"
	"wordlewise/services"
)

func main() {
	cfg, err := config.Load(getEnv("CONFIG_FILE", "config.yaml"))
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.IsProduction())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := database.Open(cfg.Database, cfg.IsProduction(), log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}()

	if err := database.RunMigrations(db, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Services
	groups := services.NewGroupService(db, log)
	users := services.NewUserService(db, groups, log)
	tokens := services.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL)
	m := metrics.New()

	h := handlers.New(handlers.Deps{
		DB:      db,
		Groups:  groups,
		Scores:  services.NewScoreService(db, log),
		Users:   users,
		Scopes:  services.NewScopeResolver(groups),
		Tokens:  tokens,
		Metrics: m,
		Log:     log,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(cfg.IsProduction(), log),
		BodyLimit:    1 * 1024 * 1024,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// Global middleware
	app.Use(m.Middleware())
	app.Use(logger.RequestLogger(log))
	app.Use(logger.Recovery(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: cfg.App.CORSOrigins != "*",
	}))

	var authLimit fiber.Handler
	if cfg.RateLimit.Enabled {
		app.Use(middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)))
		authLimit = middleware.AuthRateLimit(middleware.NewIPRateLimiter(cfg.RateLimit.AuthRequestsPerMinute, cfg.RateLimit.AuthBurst))
	}

	if cfg.Metrics.Enabled {
		app.Get("/metrics", m.Handler())
	}
	h.SetupRoutes(app, middleware.NewAuth(tokens, users), authLimit)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	log.Info("HTTP server starting",
		zap.String("addr", cfg.ListenAddr()),
		zap.String("env", cfg.App.Env),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Bool("metrics", cfg.Metrics.Enabled),
	)
	if err := app.Listen(cfg.ListenAddr()); err != nil {
		log.Fatal("failed to start HTTP server", zap.Error(err))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

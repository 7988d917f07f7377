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
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tradewatch/backend/internal/config"
	"github.com/tradewatch/backend/internal/database"
	"github.com/tradewatch/backend/internal/handlers"
	"github.com/tradewatch/backend/internal/logger"
	mW "github.com/tradewatch/backend/internal/middleware"
	"github.com/tradewatch/backend/internal/poller"
	"github.com/tradewatch/backend/internal/scheduler"
	"github.com/tradewatch/backend/internal/services"
	"github.com/tradewatch/backend/internal/storage"
	"github.com/tradewatch/backend/internal/telegram"
)

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

	viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	zlog, err := logger.New(viper.GetString("log.level"))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	trackerCfg := config.LoadTrackerConfig()

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	tg, err := telegram.NewClient(viper.GetString("telegram.bot_token"), trackerCfg.PollTimeoutSeconds, zlog)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram client: %v", err)
	}

	store := storage.NewPostgresLedgerStore(db)
	cursors := storage.NewRedisCursorStore(redisClient)

	reminders := scheduler.New(tg, zlog.Named("scheduler"))
	defer reminders.StopAll()

	engine := services.NewSessionService(store, tg, reminders, zlog.Named("engine"))
	sessionHandler := handlers.NewSessionHandler(engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Restore reminder timers for sessions active before the restart.
	if err := engine.ResumeSessions(ctx); err != nil {
		zlog.Warn("failed to resume active sessions", zap.Error(err))
	}

	inbound := poller.New(tg, engine, tg, cursors, poller.Config{
		PollDelay: trackerCfg.PollDelay,
		Backoff:   trackerCfg.PollBackoff,
	}, zlog.Named("poller"))
	go inbound.Run(ctx)

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

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions/start", sessionHandler.StartSession)
		r.Post("/sessions/stop", sessionHandler.StopSession)
		r.Get("/sessions/{id}/summary", sessionHandler.GetSummary)
		r.Get("/sessions/{id}/entries", sessionHandler.GetEntries)
		r.Delete("/sessions/{id}/entries", sessionHandler.ClearEntries)
	})

	// Dashboard static files
	r.Handle("/*", mW.StaticFileServer("./public"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
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
	cancel() // stop the poller

	shCtx, shCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shCancel()

	if err := server.Shutdown(shCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

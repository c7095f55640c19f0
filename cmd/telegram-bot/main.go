package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wellness-meal-planner/internal/app"
	"wellness-meal-planner/internal/config"
	"wellness-meal-planner/internal/database"
	"wellness-meal-planner/internal/llm"
	"wellness-meal-planner/internal/logger"
	"wellness-meal-planner/internal/metrics"
	"wellness-meal-planner/internal/planner"
	"wellness-meal-planner/internal/profile"
	"wellness-meal-planner/internal/session"
	"wellness-meal-planner/internal/telegram"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	ctx := context.Background()

	// 2. Storage
	db, err := database.NewDB(cfg.DatabasePath, log)
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	defer db.Close()

	var store profile.Store = profile.NewSQLiteStore(db.SQL)
	if cfg.DatabaseURL != "" {
		pg, err := profile.OpenPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to postgres", "error", err)
		}
		defer pg.Close()
		store = pg
	}

	// 3. Generation
	client, err := llm.NewClient(ctx, cfg)
	if err != nil {
		log.Fatal("failed to create generation client", "error", err)
	}
	defer client.Close()

	metricsStore := metrics.NewStore(db.SQL)
	generator := planner.NewGenerator(client, log,
		planner.WithRecorder(metricsStore),
		planner.WithModel(cfg.GeminiModel),
	)

	// 4. Telegram Bot
	application := app.NewApp(store, generator, log)
	sessions := telegram.NewSessionRepository(db.SQL, telegram.DefaultSessionTTL)
	bot, err := telegram.NewBot(cfg, application, sessions, metricsStore, session.NewCache(), log)
	if err != nil {
		log.Fatal("failed to initialize telegram bot", "error", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", bot.HandleWebhook)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// 5. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("telegram bot server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	if n, err := sessions.CleanupExpired(ctxShutdown); err == nil && n > 0 {
		log.Info("removed expired bot sessions", "count", n)
	}
	log.Info("server exiting")
}

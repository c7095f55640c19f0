package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"wellness-meal-planner/internal/app"
	"wellness-meal-planner/internal/auth"
	"wellness-meal-planner/internal/config"
	"wellness-meal-planner/internal/database"
	"wellness-meal-planner/internal/llm"
	"wellness-meal-planner/internal/logger"
	"wellness-meal-planner/internal/metrics"
	"wellness-meal-planner/internal/planner"
	"wellness-meal-planner/internal/profile"
	"wellness-meal-planner/internal/server"
	"wellness-meal-planner/internal/session"
	"wellness-meal-planner/internal/telegram"
)

var (
	rootCmd = &cobra.Command{
		Use:          "meal-planner",
		Short:        "Personalized weekly meal plans from wellness preferences",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the Telegram webhook when configured)",
		RunE:  runServe,
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate a weekly plan for the given preferences and print it",
		RunE:  runGenerate,
	}
	genPrefs  profile.Preferences
	genAsJSON bool

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE:  runMigrate,
	}
	migrateDown int

	cleanupCmd = &cobra.Command{
		Use:   "metrics-cleanup",
		Short: "Delete generation metrics and expired bot sessions",
		RunE:  runCleanup,
	}
	cleanupDays int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&genPrefs.Name, "name", "", "name to greet")
	generateCmd.Flags().StringSliceVar(&genPrefs.DietType, "diet", nil, "diet types, e.g. vegan,gluten-free")
	generateCmd.Flags().StringSliceVar(&genPrefs.Goals, "goal", nil, "wellness goals, e.g. \"Weight Loss\"")
	generateCmd.Flags().StringVar(&genPrefs.Allergies, "allergies", "", "allergies")
	generateCmd.Flags().StringVar(&genPrefs.FavoriteFoods, "favorites", "", "favorite foods")
	generateCmd.Flags().StringVar(&genPrefs.Dislikes, "dislikes", "", "foods to avoid")
	generateCmd.Flags().StringVar(&genPrefs.CalorieTarget, "calories", "", "daily calorie target")
	generateCmd.Flags().BoolVar(&genAsJSON, "json", false, "print the plan as JSON")

	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().IntVar(&migrateDown, "down", 0, "roll back this many migrations instead of applying")

	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "keep metrics from the last N days")
}

// env is the wiring shared by the subcommands.
type env struct {
	cfg *config.Config
	log *logger.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openProfileStore picks Postgres when DATABASE_URL is set, SQLite otherwise.
func openProfileStore(ctx context.Context, e *env, db *database.DB) (profile.Store, func(), error) {
	if e.cfg.DatabaseURL == "" {
		return profile.NewSQLiteStore(db.SQL), func() {}, nil
	}
	pg, err := profile.OpenPostgresStore(ctx, e.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	e.log.Info("using postgres profile store")
	return pg, pg.Close, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	ctx, stop := signalContext()
	defer stop()

	db, err := database.NewDB(e.cfg.DatabasePath, e.log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	store, closeStore, err := openProfileStore(ctx, e, db)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := llm.NewClient(ctx, e.cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	metricsStore := metrics.NewStore(db.SQL)
	generator := planner.NewGenerator(client, e.log,
		planner.WithRecorder(metricsStore),
		planner.WithModel(e.cfg.GeminiModel),
	)
	if e.cfg.GeminiAPIKey == "" {
		e.log.Warn("GEMINI_API_KEY not set, every plan will be the fallback plan")
	}

	application := app.NewApp(store, generator, e.log)
	cache := session.NewCache()
	srv := server.NewServer(server.Deps{
		App:          application,
		Auth:         auth.NewService(db.SQL, e.log, e.cfg.JWTSecret, e.cfg.TokenTTL),
		Cache:        cache,
		DatabasePath: e.cfg.DatabasePath,
		Log:          e.log,
	})

	if e.cfg.TelegramBotToken != "" {
		bot, err := telegram.NewBot(e.cfg, application, telegram.NewSessionRepository(db.SQL, telegram.DefaultSessionTTL), metricsStore, cache, e.log)
		if err != nil {
			return err
		}
		srv.Engine.POST("/webhook", gin.WrapF(bot.HandleWebhook))
	}

	return srv.Run(ctx, ":"+e.cfg.Port)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	ctx, stop := signalContext()
	defer stop()

	client, err := llm.NewClient(ctx, e.cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	genPrefs.Name = strings.TrimSpace(genPrefs.Name)
	generator := planner.NewGenerator(client, e.log, planner.WithModel(e.cfg.GeminiModel))
	res := generator.Generate(ctx, genPrefs)

	if genAsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res.Plan)
	}
	app.PrintMealPlan(cmd.OutOrStdout(), res)
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	if err := os.MkdirAll(filepath.Dir(e.cfg.DatabasePath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	if migrateDown > 0 {
		return database.RollbackMigrations(e.cfg.DatabasePath, migrateDown, e.log)
	}
	return database.RunMigrations(e.cfg.DatabasePath, e.log)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	db, err := database.NewDB(e.cfg.DatabasePath, e.log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	deleted, err := metrics.NewStore(db.SQL).Cleanup(ctx, cleanupDays)
	if err != nil {
		return err
	}
	expired, err := telegram.NewSessionRepository(db.SQL, telegram.DefaultSessionTTL).CleanupExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d metric rows and %d expired bot sessions\n", deleted, expired)
	return nil
}

package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"       // loads .env in development
	"github.com/labstack/echo/v4"    // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/completion"
	"github.com/iliyamo/aether/internal/config" // Internal config loader
	"github.com/iliyamo/aether/internal/credit"
	"github.com/iliyamo/aether/internal/database"
	"github.com/iliyamo/aether/internal/handler"
	"github.com/iliyamo/aether/internal/ledger"
	"github.com/iliyamo/aether/internal/metrics"
	"github.com/iliyamo/aether/internal/middleware"
	"github.com/iliyamo/aether/internal/queue"
	"github.com/iliyamo/aether/internal/repository"
	"github.com/iliyamo/aether/internal/roster"
	"github.com/iliyamo/aether/internal/router" // Internal router setup
	"github.com/iliyamo/aether/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine outside development

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}
	log := newLogger(cfg)

	db, dialect, err := openDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, db, dialect); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("migrate database")
	}
	cancel()

	rdb := config.NewRedisClient() // nil when Redis is unreachable
	if rdb == nil {
		log.Warn().Msg("redis unavailable, rate limiting and site cache disabled")
	} else {
		defer rdb.Close()
	}

	aiCfg := config.LoadAIConfig()
	creditCfg := config.LoadCreditConfig()
	amqpCfg := config.LoadAMQPConfig()

	credits := credit.NewLedger(repository.NewUserRepo(db, dialect), creditCfg.Daily, log)
	history := ledger.New(db)
	models := roster.New(roster.Config{
		Enhance:  aiCfg.EnhanceModels,
		Generate: aiCfg.GenerateModels,
		Generic:  aiCfg.Models,
	})
	provider := completion.NewOpenRouter(aiCfg.APIKey, aiCfg.BaseURL, &http.Client{})
	engine := completion.NewEngine(provider, log)

	var events queue.Publisher = queue.NewNoopPublisher()
	if amqpCfg.Enabled {
		events = queue.NewAMQPPublisher(amqpCfg.URL, amqpCfg.Queue)
	}

	orch := service.NewOrchestrator(history, credits, engine, models, events, service.Options{
		Cost:          creditCfg.PerGeneration,
		MaxTokens:     aiCfg.MaxTokens,
		EnhanceTokens: aiCfg.EnhanceTokens,
		Timeout:       aiCfg.Timeout,
		HistoryLimit:  aiCfg.HistoryLimit,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if amqpCfg.Enabled && amqpCfg.AuditEnabled {
		consumer := queue.NewAuditConsumer(amqpCfg.URL, amqpCfg.Queue, amqpCfg.AuditLogPath, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}

	cache := middleware.NewSiteCache(config.LoadCacheConfig(), rdb, log)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(metrics.Middleware())
	e.Use(echomw.Recover())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins,
			AllowCredentials: true,
		}))
	}

	deps := router.Deps{
		DB:            db,
		SessionSecret: cfg.SessionSecret,
		Accounts:      credits,
		Limiter:       middleware.GenerationLimit(config.LoadRateLimitConfig(), rdb, log),
		Cache:         cache,
		Projects:      handler.NewProjectHandler(orch, history, cache, log),
		Credits:       handler.NewCreditHandler(credits, log),
		Published:     handler.NewPublishedHandler(history, log),
		Log:           log,
	}
	router.RegisterRoutes(e, db)
	router.RegisterUser(e, deps)
	router.RegisterPublished(e, deps)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("db", string(dialect)).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := orch.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("background generations still running at exit")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	var log zerolog.Logger
	if cfg.IsDev() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.Level(level).With().Timestamp().Str("service", "aether").Logger()
}

func openDB(cfg config.Config) (*sql.DB, database.Dialect, error) {
	if cfg.DBDriver == "sqlite" {
		db, err := database.OpenSQLite(cfg.DBPath)
		return db, database.SQLite, err
	}
	db, err := database.OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	return db, database.MySQL, err
}

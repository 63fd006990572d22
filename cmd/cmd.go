package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memoryland-backend/internal/broker"
	"memoryland-backend/internal/config"
	"memoryland-backend/internal/handlers"
	"memoryland-backend/internal/repository"
	"memoryland-backend/internal/services"
	"memoryland-backend/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "memoryland",
	Short: "Photo albums and memoryland displays backend",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if cfg.Database.Driver != config.DatabaseDriverPostgres {
			log.Fatal().Str("driver", cfg.Database.Driver).Msg("Nothing to migrate")
		}

		db := connectDB(cfg)
		defer db.Close()

		if err := repository.Migrate(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
		log.Info().Msg("Database schema applied")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// Execute runs the command line
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads and validates configuration. A bad configuration stops
// the process before anything is served.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatal().Str("field", cfgErr.Field).Msg(cfgErr.Reason)
		}
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg
}

func connectDB(cfg *config.Config) *pgxpool.Pool {
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")
	return db
}

func serve() {
	cfg := loadConfig()
	ctx := context.Background()

	// Initialize repositories
	var stores *repository.Stores
	switch cfg.Database.Driver {
	case config.DatabaseDriverMemory:
		log.Warn().Msg("Using in-memory database, data is lost on restart")
		stores = repository.NewMemoryStores()
	default:
		db := connectDB(cfg)
		defer db.Close()
		if err := repository.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
		stores = repository.NewPostgresStores(db)
	}

	// Object storage and the signed URL cache
	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to create object store")
	}

	var cache broker.URLCache
	if cfg.Cache.RedisAddr != "" {
		redisCache := broker.NewRedisURLCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			// the cache is best effort; a down Redis only costs re-signing
			log.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis unreachable, continuing")
		}
		cache = redisCache
	} else {
		cache = broker.NewMemoryURLCache()
	}

	photoBroker := broker.New(objects, cache, broker.Options{
		URLLifetime:  cfg.Storage.URLLifetime,
		CacheTTL:     cfg.Cache.URLTTL,
		MaxDimension: cfg.Images.MaxDimension,
	})

	// Initialize services
	fanOut := cfg.Server.AssemblyFanOut
	hub := services.NewDisplayHub()
	authz := services.NewAuthorizer(stores)
	slots := services.NewSlotEngine(stores)
	tokens := services.NewTokenService(stores, hub)
	photos := services.NewPhotoService(stores, authz, photoBroker, hub, fanOut)

	router := handlers.NewRouter(handlers.Services{
		Verifier:       services.NewClaimsVerifier(cfg.JWT.Secret, cfg.JWT.Issuer),
		Identity:       services.NewIdentityResolver(stores.Users),
		Displays:       services.NewDisplayService(stores, authz, slots, tokens, photoBroker, hub, fanOut),
		Tokens:         tokens,
		Albums:         services.NewAlbumService(stores, authz, photoBroker, hub, fanOut),
		Photos:         photos,
		Transactions:   services.NewTransactionService(stores, authz, photos),
		Hub:            hub,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("database", cfg.Database.Driver).
			Str("storage", cfg.Storage.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown
	srv.RegisterOnShutdown(hub.CloseAll)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

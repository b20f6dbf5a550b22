package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/norruva/dpp-service/internal"
	"github.com/norruva/dpp-service/internal/anchoring"
	"github.com/norruva/dpp-service/internal/audit"
	auditpg "github.com/norruva/dpp-service/internal/audit/postgres"
	"github.com/norruva/dpp-service/internal/auth"
	authpg "github.com/norruva/dpp-service/internal/auth/postgres"
	"github.com/norruva/dpp-service/internal/company"
	companypg "github.com/norruva/dpp-service/internal/company/postgres"
	"github.com/norruva/dpp-service/internal/core/events"
	"github.com/norruva/dpp-service/internal/metrics"
	"github.com/norruva/dpp-service/internal/oracle"
	platformredis "github.com/norruva/dpp-service/internal/platform/redis"
	"github.com/norruva/dpp-service/internal/product"
	productpg "github.com/norruva/dpp-service/internal/product/postgres"
	"github.com/norruva/dpp-service/internal/transport/rest"
	"github.com/norruva/dpp-service/internal/webhook"
	webhookpg "github.com/norruva/dpp-service/internal/webhook/postgres"
	"github.com/norruva/dpp-service/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config    *internal.Config
	DB        *sqlx.DB
	Gorm      *gorm.DB
	Redis     *platformredis.Client
	Router    *chi.Mux
	Anchoring *anchoring.Processor
	Logger    *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		deps.Anchoring.Shutdown()
		if deps.Redis != nil {
			if err := deps.Redis.Close(); err != nil {
				deps.Logger.Error("redis close error", "error", err)
			}
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	log := logger.Default()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	redisClient, err := platformredis.New(config.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Repositories
	userRepo := authpg.NewUserRepository(gormDB)
	companyRepo := companypg.NewCompanyRepository(gormDB)
	productRepo := productpg.NewProductRepository(gormDB)
	auditRepo := auditpg.NewAuditRepository(gormDB)
	webhookRepo := webhookpg.NewWebhookRepository(gormDB)

	// Core collaborators
	eventBus := events.NewEventBus(log)
	auditService := audit.NewService(auditRepo, log)
	oracleClient := oracle.NewClient(config.Oracle, log)

	anchoringProcessor := anchoring.NewProcessor(
		config.Anchoring, productRepo, oracleClient, auditService, eventBus, log)

	var passportCache product.PassportCache
	if redisClient != nil {
		passportCache = platformredis.NewPassportCache(redisClient, config.Redis.PassportTTL)
	}

	// Services
	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(userRepo, tokenGen, config.Security.BCryptCost)
	companyService := company.NewService(companyRepo, log)
	productService := product.NewService(
		productRepo, userRepo, oracleClient, anchoringProcessor, passportCache,
		auditService, eventBus, log)
	webhookService := webhook.NewService(webhookRepo, log)

	// Event subscribers
	webhook.NewDispatcher(webhookRepo, companyRepo, auditService, log).SubscribeAll(eventBus)
	metrics.NewCollector().Subscribe(eventBus)

	// HTTP layer
	router := chi.NewRouter()
	handlers := rest.Handlers{
		Auth:    auth.NewHandler(authService),
		Product: product.NewHandler(productService),
		Company: company.NewHandler(companyService),
		Webhook: webhook.NewHandler(webhookService),
		Audit:   audit.NewHandler(auditService),
	}
	rbac := auth.NewRBACAuthorization(log)

	var cachePinger rest.Pinger
	if redisClient != nil {
		cachePinger = redisClient
	}

	rest.RegisterAllRoutes(router, db.DB, handlers, rbac, rest.Options{
		AllowedOrigins: config.Server.AllowedOrigins,
		MetricsEnabled: config.Observability.Metrics.Enabled,
		MetricsPath:    config.Observability.Metrics.Path,
		Cache:          cachePinger,
	}, log)

	return &Dependencies{
		Config:    config,
		DB:        db,
		Gorm:      gormDB,
		Redis:     redisClient,
		Router:    router,
		Anchoring: anchoringProcessor,
		Logger:    log,
	}, nil
}

// initDB opens the pgx-backed connection pool used for health checks,
// migrations and as the underlying connection for GORM.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
